package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"snackstand/backend/internal/availability"
	"snackstand/backend/internal/cache"
	"snackstand/backend/internal/domain"
	"snackstand/backend/internal/notify"
	"snackstand/backend/internal/report"
	"snackstand/backend/internal/store"
	"snackstand/backend/internal/xid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyCart    = errors.New("cart is empty")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// cartLine is one product in an employee's cart. Lines keep the order the
// products were first added in; that order carries through to the cart
// response and into the settled sale's items.
type cartLine struct {
	productID string
	quantity  int
}

type Service struct {
	repo              store.Repository
	reports           cache.ReportCache
	notifier          notify.Notifier
	reportTTL         time.Duration
	lowStockThreshold int

	// Carts live in memory only, one per employee. Losing them on restart
	// is fine: nothing is committed until the sale settles.
	cartMu sync.Mutex
	carts  map[string][]cartLine
}

func New(repo store.Repository, reports cache.ReportCache, notifier notify.Notifier, reportTTL time.Duration, lowStockThreshold int) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if reportTTL <= 0 {
		reportTTL = 15 * time.Second
	}
	if lowStockThreshold < 0 {
		lowStockThreshold = 5
	}

	return &Service{
		repo:              repo,
		reports:           reports,
		notifier:          notifier,
		reportTTL:         reportTTL,
		lowStockThreshold: lowStockThreshold,
		carts:             make(map[string][]cartLine),
	}
}

func (s *Service) ListProducts(ctx context.Context, at time.Time) (domain.ProductListResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ProductListResponse{}, err
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		warnings, err := availability.ValidateWindows(p.FirstWindow, p.SecondWindow)
		if err != nil {
			// Windows written outside the API can be malformed; a product
			// is still listed, but the broken window must not go unnoticed.
			warnings = append(warnings, err.Error())
		}
		views = append(views, domain.ProductView{
			Product:   p,
			Available: availability.Available(p, at),
			Warnings:  warnings,
		})
	}
	return domain.ProductListResponse{Products: views}, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.ProductResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Category == "" {
		req.Category = domain.CategoryOther
	}

	if req.Name == "" || !domain.ValidCategory(req.Category) {
		return domain.ProductResponse{}, ErrInvalidInput
	}
	if req.PriceCents < 1 || req.UnitCostCents < 0 || req.Quantity < 0 {
		return domain.ProductResponse{}, ErrInvalidInput
	}

	warnings, err := availability.ValidateWindows(req.FirstWindow, req.SecondWindow)
	if err != nil {
		return domain.ProductResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	product := domain.Product{
		Name:          req.Name,
		Category:      req.Category,
		PriceCents:    req.PriceCents,
		UnitCostCents: req.UnitCostCents,
		Quantity:      req.Quantity,
		FirstWindow:   normalizeWindow(req.FirstWindow),
		SecondWindow:  normalizeWindow(req.SecondWindow),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.ProductResponse{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,qty=%d", created.Name, created.PriceCents, created.Quantity))
	s.afterWrite(ctx, notify.TableProducts, "insert", created.ID)

	return domain.ProductResponse{Product: *created, Warnings: warnings}, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.ProductResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ProductResponse{}, ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.ProductResponse{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ProductResponse{}, ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		if !domain.ValidCategory(*req.Category) {
			return domain.ProductResponse{}, ErrInvalidInput
		}
		updated.Category = *req.Category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.ProductResponse{}, ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.UnitCostCents != nil {
		if *req.UnitCostCents < 0 {
			return domain.ProductResponse{}, ErrInvalidInput
		}
		updated.UnitCostCents = *req.UnitCostCents
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.ProductResponse{}, ErrInvalidInput
		}
		updated.Quantity = *req.Quantity
	}
	if req.ClearWindows {
		updated.FirstWindow = nil
		updated.SecondWindow = nil
	}
	if req.FirstWindow != nil {
		updated.FirstWindow = normalizeWindow(req.FirstWindow)
	}
	if req.SecondWindow != nil {
		updated.SecondWindow = normalizeWindow(req.SecondWindow)
	}

	warnings, err := availability.ValidateWindows(updated.FirstWindow, updated.SecondWindow)
	if err != nil {
		return domain.ProductResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.ProductResponse{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%d,cost=%d,qty=%d", saved.PriceCents, saved.UnitCostCents, saved.Quantity))
	s.afterWrite(ctx, notify.TableProducts, "update", saved.ID)

	return domain.ProductResponse{Product: *saved, Warnings: warnings}, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	s.afterWrite(ctx, notify.TableProducts, "delete", id)
	return nil
}

func (s *Service) CategoryStats(ctx context.Context) (domain.CategoryStatsResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.CategoryStatsResponse{}, err
	}

	byCategory := make(map[string]*domain.CategoryStats, 4)
	for _, category := range domain.Categories() {
		byCategory[category] = &domain.CategoryStats{Category: category}
	}
	for _, p := range products {
		stats, ok := byCategory[p.Category]
		if !ok {
			stats = byCategory[domain.CategoryOther]
		}
		stats.Total++
		if p.Quantity == 0 {
			stats.OutOfStock++
		} else if p.Quantity <= s.lowStockThreshold {
			stats.LowStock++
		}
	}

	resp := domain.CategoryStatsResponse{Stats: make([]domain.CategoryStats, 0, 4)}
	for _, category := range domain.Categories() {
		resp.Stats = append(resp.Stats, *byCategory[category])
	}
	return resp, nil
}

func (s *Service) AssignCategory(ctx context.Context, req domain.BulkCategoryRequest) (domain.BulkCategoryResponse, error) {
	if len(req.ProductIDs) == 0 || !domain.ValidCategory(req.Category) {
		return domain.BulkCategoryResponse{}, ErrInvalidInput
	}

	updated, err := s.repo.AssignCategory(ctx, req.ProductIDs, req.Category)
	if err != nil {
		return domain.BulkCategoryResponse{}, err
	}

	s.logAudit(ctx, "product_bulk_category", "product", "", fmt.Sprintf("category=%s,updated=%d", req.Category, updated))
	s.afterWrite(ctx, notify.TableProducts, "update", "")
	return domain.BulkCategoryResponse{Updated: updated}, nil
}

// AddToCart puts one more unit of the product in the actor's cart, clamped
// at the product's current stock. Hitting the ceiling is a silent no-op so
// repeated taps on the sales screen never error.
func (s *Service) AddToCart(ctx context.Context, productID string) (domain.CartResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CartResponse{}, ErrInvalidInput
	}

	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.CartResponse{}, err
	}

	s.cartMu.Lock()
	cart := s.carts[actor.EmployeeID]
	found := false
	for i := range cart {
		if cart[i].productID == product.ID {
			if cart[i].quantity < product.Quantity {
				cart[i].quantity++
			}
			found = true
			break
		}
	}
	if !found && product.Quantity > 0 {
		cart = append(cart, cartLine{productID: product.ID, quantity: 1})
	}
	s.carts[actor.EmployeeID] = cart
	s.cartMu.Unlock()

	return s.cartResponse(ctx, actor.EmployeeID)
}

// RemoveFromCart takes one unit out; the line disappears at zero. The
// other lines keep their positions.
func (s *Service) RemoveFromCart(ctx context.Context, productID string) (domain.CartResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CartResponse{}, ErrInvalidInput
	}

	s.cartMu.Lock()
	cart := s.carts[actor.EmployeeID]
	for i := range cart {
		if cart[i].productID != productID {
			continue
		}
		if cart[i].quantity <= 1 {
			cart = append(cart[:i], cart[i+1:]...)
		} else {
			cart[i].quantity--
		}
		break
	}
	s.carts[actor.EmployeeID] = cart
	s.cartMu.Unlock()

	return s.cartResponse(ctx, actor.EmployeeID)
}

func (s *Service) ClearCart(ctx context.Context) (domain.CartResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CartResponse{}, ErrInvalidInput
	}

	s.cartMu.Lock()
	delete(s.carts, actor.EmployeeID)
	s.cartMu.Unlock()

	return domain.CartResponse{Lines: []domain.CartLine{}}, nil
}

func (s *Service) GetCart(ctx context.Context) (domain.CartResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CartResponse{}, ErrInvalidInput
	}
	return s.cartResponse(ctx, actor.EmployeeID)
}

func (s *Service) cartSnapshot(employeeID string) []cartLine {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart := s.carts[employeeID]
	snapshot := make([]cartLine, len(cart))
	copy(snapshot, cart)
	return snapshot
}

func cartProductIDs(lines []cartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.productID)
	}
	return ids
}

func (s *Service) cartResponse(ctx context.Context, employeeID string) (domain.CartResponse, error) {
	snapshot := s.cartSnapshot(employeeID)

	products, err := s.repo.GetProductsByIDs(ctx, cartProductIDs(snapshot))
	if err != nil {
		return domain.CartResponse{}, err
	}

	resp := domain.CartResponse{Lines: make([]domain.CartLine, 0, len(snapshot))}
	for _, line := range snapshot {
		product, exists := products[line.productID]
		if !exists {
			// Product removed from catalog while sitting in the cart.
			continue
		}
		resp.Lines = append(resp.Lines, domain.CartLine{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Quantity:   line.quantity,
		})
		resp.TotalCents += product.PriceCents * int64(line.quantity)
		resp.ItemCount += line.quantity
	}
	return resp, nil
}

// buildSettlement is the pure settlement core: it only computes, never
// writes. Sale items come out in the cart's line order, and the register
// moves by the cart total on cash sales and not at all on school-cash.
func buildSettlement(cart []cartLine, products map[string]domain.Product, paymentMethod string, employeeID string, now time.Time) (domain.Settlement, error) {
	if len(cart) == 0 {
		return domain.Settlement{}, ErrEmptyCart
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		EmployeeID:    employeeID,
		Items:         make([]domain.SaleLine, 0, len(cart)),
		PaymentMethod: paymentMethod,
		CreatedAt:     now,
	}
	deltas := make([]domain.StockDelta, 0, len(cart))

	for _, line := range cart {
		if line.quantity < 1 {
			continue
		}
		product, exists := products[line.productID]
		if !exists {
			return domain.Settlement{}, store.ErrNotFound
		}
		if product.Quantity < line.quantity {
			return domain.Settlement{}, store.ErrInsufficientStock
		}

		sale.Items = append(sale.Items, domain.SaleLine{
			Product: domain.SaleLineProduct{
				ID:         product.ID,
				Name:       product.Name,
				PriceCents: product.PriceCents,
			},
			Quantity: line.quantity,
		})
		sale.TotalCents += product.PriceCents * int64(line.quantity)
		deltas = append(deltas, domain.StockDelta{ProductID: line.productID, Quantity: line.quantity})
	}

	if len(sale.Items) == 0 {
		return domain.Settlement{}, ErrEmptyCart
	}

	settlement := domain.Settlement{Sale: sale, StockDeltas: deltas}
	if paymentMethod == domain.PaymentCash {
		settlement.RegisterDeltaCents = sale.TotalCents
	}
	return settlement, nil
}

func (s *Service) CompleteSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleResponse{}, ErrInvalidInput
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return domain.SaleResponse{}, ErrInvalidInput
	}

	cart := s.cartSnapshot(actor.EmployeeID)
	if len(cart) == 0 {
		return domain.SaleResponse{}, ErrEmptyCart
	}

	products, err := s.repo.GetProductsByIDs(ctx, cartProductIDs(cart))
	if err != nil {
		return domain.SaleResponse{}, err
	}

	settlement, err := buildSettlement(cart, products, req.PaymentMethod, actor.EmployeeID, time.Now().UTC())
	if err != nil {
		return domain.SaleResponse{}, err
	}

	saved, err := s.repo.ApplySettlement(ctx, settlement)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.cartMu.Lock()
	delete(s.carts, actor.EmployeeID)
	s.cartMu.Unlock()

	s.logAudit(ctx, "sale_complete", "sale", saved.ID, fmt.Sprintf("method=%s,total=%d,items=%d", saved.PaymentMethod, saved.TotalCents, len(saved.Items)))
	s.afterWrite(ctx, notify.TableSales, "insert", saved.ID)
	s.notifier.Publish(ctx, notify.TableProducts, "update", "")
	if settlement.RegisterDeltaCents != 0 {
		s.notifier.Publish(ctx, notify.TableCashRegister, "update", "")
	}

	return domain.SaleResponse{Sale: *saved}, nil
}

func (s *Service) ListSales(ctx context.Context) (domain.SaleListResponse, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

func (s *Service) GetRegister(ctx context.Context) (domain.RegisterResponse, error) {
	register, err := s.repo.GetRegister(ctx)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	return domain.RegisterResponse{Register: *register}, nil
}

// OpenRegister sets both the starting and current amount; only employees
// with the opener role may do it.
func (s *Service) OpenRegister(ctx context.Context, req domain.RegisterOpenRequest) (domain.RegisterResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOpener {
		return domain.RegisterResponse{}, fmt.Errorf("opener role required")
	}
	if req.StartingCents < 0 {
		return domain.RegisterResponse{}, ErrInvalidInput
	}

	starting := req.StartingCents
	register, err := s.repo.SetRegister(ctx, req.StartingCents, &starting, actor.EmployeeID)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	s.logAudit(ctx, "register_open", "cash_register", register.ID, fmt.Sprintf("starting=%d", req.StartingCents))
	s.afterWrite(ctx, notify.TableCashRegister, "update", register.ID)
	return domain.RegisterResponse{Register: *register}, nil
}

// CloseRegister records the counted drawer amount; closer role only.
func (s *Service) CloseRegister(ctx context.Context, req domain.RegisterCloseRequest) (domain.RegisterResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleCloser {
		return domain.RegisterResponse{}, fmt.Errorf("closer role required")
	}
	if req.CountedCents < 0 {
		return domain.RegisterResponse{}, ErrInvalidInput
	}

	register, err := s.repo.SetRegister(ctx, req.CountedCents, nil, actor.EmployeeID)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	s.logAudit(ctx, "register_close", "cash_register", register.ID, fmt.Sprintf("counted=%d", req.CountedCents))
	s.afterWrite(ctx, notify.TableCashRegister, "update", register.ID)
	return domain.RegisterResponse{Register: *register}, nil
}

// AdjustRegister overwrites the current amount with a hand count.
func (s *Service) AdjustRegister(ctx context.Context, req domain.RegisterAdjustRequest) (domain.RegisterResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.RegisterResponse{}, ErrInvalidInput
	}
	if req.CurrentCents < 0 {
		return domain.RegisterResponse{}, ErrInvalidInput
	}

	register, err := s.repo.SetRegister(ctx, req.CurrentCents, nil, actor.EmployeeID)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	s.logAudit(ctx, "register_adjust", "cash_register", register.ID, fmt.Sprintf("current=%d", req.CurrentCents))
	s.afterWrite(ctx, notify.TableCashRegister, "update", register.ID)
	return domain.RegisterResponse{Register: *register}, nil
}

func (s *Service) ReportSummary(ctx context.Context, period string) (domain.ReportSummary, error) {
	switch period {
	case "":
		period = domain.PeriodToday
	case domain.PeriodToday, domain.PeriodWeek, domain.PeriodMonth:
	default:
		return domain.ReportSummary{}, ErrInvalidInput
	}

	if cached, ok, err := s.reports.Get(ctx, period); err == nil && ok {
		return *cached, nil
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	register, err := s.repo.GetRegister(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrRegisterMissing) {
			return domain.ReportSummary{}, err
		}
		register = &domain.CashRegister{}
	}

	summary := report.Build(period, sales, products, *register, time.Now())
	if err := s.reports.Set(ctx, period, &summary, s.reportTTL); err != nil {
		log.Printf("[service] WARN: failed to cache report summary period=%s: %v", period, err)
	}
	return summary, nil
}

// MonthlyReset wipes every sale and zeroes the register. The manager PIN
// gate lives in the HTTP layer; by the time this runs the caller is
// already trusted.
func (s *Service) MonthlyReset(ctx context.Context) (domain.MonthlyResetResponse, error) {
	deleted, err := s.repo.ResetMonth(ctx, domain.MonthlyResetActor)
	if err != nil {
		return domain.MonthlyResetResponse{}, err
	}

	s.logAudit(ctx, "monthly_reset", "sales", "", fmt.Sprintf("deleted=%d", deleted))
	s.afterWrite(ctx, notify.TableSales, "delete", "")
	s.notifier.Publish(ctx, notify.TableCashRegister, "update", "")

	return domain.MonthlyResetResponse{
		SalesDeleted: deleted,
		ResetAt:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) (domain.AuditListResponse, error) {
	if limit < 1 {
		limit = 100
	}
	logs, err := s.repo.ListAuditLogs(ctx, limit)
	if err != nil {
		return domain.AuditListResponse{}, err
	}
	return domain.AuditListResponse{Items: logs}, nil
}

// afterWrite drops stale report summaries and tells terminals to re-fetch.
func (s *Service) afterWrite(ctx context.Context, table string, op string, id string) {
	if err := s.reports.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache: %v", err)
	}
	s.notifier.Publish(ctx, table, op, id)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{EmployeeID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.EmployeeID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeWindow(w *domain.AvailabilityWindow) *domain.AvailabilityWindow {
	if w == nil {
		return nil
	}
	trimmed := domain.AvailabilityWindow{
		Start: strings.TrimSpace(w.Start),
		End:   strings.TrimSpace(w.End),
	}
	if trimmed.Start == "" && trimmed.End == "" {
		return nil
	}
	return &trimmed
}
