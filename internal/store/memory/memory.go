package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"snackstand/backend/internal/domain"
	"snackstand/backend/internal/store"
	"snackstand/backend/internal/xid"
)

type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	salesByID map[string]domain.Sale
	register  domain.CashRegister
	auditLogs []domain.AuditLog
	usersByID map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory employee accounts for dev/demo
// mode. Credentials come from SEED_GENERAL_PASSWORD, SEED_OPENER_PASSWORD
// and SEED_CLOSER_PASSWORD. If unset, hardcoded dev defaults are used with
// a warning printed to stdout. These credentials are never used in
// production (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	generalPwd := envOr("SEED_GENERAL_PASSWORD", "general123")
	openerPwd := envOr("SEED_OPENER_PASSWORD", "opener123")
	closerPwd := envOr("SEED_CLOSER_PASSWORD", "closer123")
	if os.Getenv("SEED_GENERAL_PASSWORD") == "" || os.Getenv("SEED_OPENER_PASSWORD") == "" || os.Getenv("SEED_CLOSER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_GENERAL_PASSWORD, SEED_OPENER_PASSWORD and SEED_CLOSER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		employeeID string
		password   string
		role       string
	}{
		{"emp-general", generalPwd, domain.RoleGeneral},
		{"emp-opener", openerPwd, domain.RoleOpener},
		{"emp-closer", closerPwd, domain.RoleCloser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.employeeID, err)
		}
		users[u.employeeID] = domain.UserAccount{
			EmployeeID: u.employeeID,
			Password:   string(hash),
			Role:       u.role,
			Active:     true,
			CreatedAt:  now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	window := func(start, end string) *domain.AvailabilityWindow {
		return &domain.AvailabilityWindow{Start: start, End: end}
	}

	products := []domain.Product{
		{ID: "prd-chips-classic", Name: "Classic Chips", Category: domain.CategoryChips, PriceCents: 250, UnitCostCents: 110, Quantity: 40},
		{ID: "prd-chips-bbq", Name: "BBQ Chips", Category: domain.CategoryChips, PriceCents: 250, UnitCostCents: 115, Quantity: 32},
		{ID: "prd-drink-cola", Name: "Cola Can", Category: domain.CategoryDrinks, PriceCents: 150, UnitCostCents: 60, Quantity: 60},
		{ID: "prd-drink-water", Name: "Water Bottle", Category: domain.CategoryDrinks, PriceCents: 100, UnitCostCents: 35, Quantity: 80},
		{ID: "prd-candy-gummy", Name: "Gummy Bears", Category: domain.CategoryCandy, PriceCents: 175, UnitCostCents: 70, Quantity: 50,
			FirstWindow: window("11:30", "13:00"), SecondWindow: window("15:00", "16:30")},
		{ID: "prd-candy-choc", Name: "Chocolate Bar", Category: domain.CategoryCandy, PriceCents: 200, UnitCostCents: 90, Quantity: 45,
			FirstWindow: window("11:30", "13:00")},
		{ID: "prd-other-granola", Name: "Granola Bar", Category: domain.CategoryOther, PriceCents: 225, UnitCostCents: 0, Quantity: 25},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:  productMap,
		salesByID: make(map[string]domain.Sale),
		register: domain.CashRegister{
			ID:        uuid.NewString(),
			UpdatedAt: now,
			UpdatedBy: "seed",
		},
		auditLogs: make([]domain.AuditLog, 0, 128),
		usersByID: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, exists := s.products[id]; exists {
			result[id] = cloneProduct(product)
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AssignCategory(_ context.Context, productIDs []string, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	now := time.Now().UTC()
	for _, id := range productIDs {
		product, exists := s.products[id]
		if !exists {
			continue
		}
		product.Category = category
		product.UpdatedAt = now
		s.products[id] = product
		updated++
	}
	return updated, nil
}

func (s *Store) ApplySettlement(_ context.Context, settlement domain.Settlement) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check every delta before touching anything so a failure leaves the
	// store unchanged.
	for _, delta := range settlement.StockDeltas {
		product, exists := s.products[delta.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.Quantity < delta.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	for _, delta := range settlement.StockDeltas {
		product := s.products[delta.ProductID]
		product.Quantity -= delta.Quantity
		product.UpdatedAt = now
		s.products[delta.ProductID] = product
	}

	sale := settlement.Sale
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	s.salesByID[sale.ID] = cloneSale(sale)

	if settlement.RegisterDeltaCents != 0 {
		s.register.CurrentCents += settlement.RegisterDeltaCents
		s.register.UpdatedAt = now
		s.register.UpdatedBy = sale.EmployeeID
	}

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) GetRegister(_ context.Context) (*domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	register := s.register
	return &register, nil
}

func (s *Store) SetRegister(_ context.Context, currentCents int64, startingCents *int64, updatedBy string) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.register.CurrentCents = currentCents
	if startingCents != nil {
		s.register.StartingCents = *startingCents
	}
	s.register.UpdatedAt = time.Now().UTC()
	s.register.UpdatedBy = updatedBy

	register := s.register
	return &register, nil
}

func (s *Store) ResetMonth(_ context.Context, updatedBy string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := len(s.salesByID)
	s.salesByID = make(map[string]domain.Sale)
	s.register.CurrentCents = 0
	s.register.StartingCents = 0
	s.register.UpdatedAt = time.Now().UTC()
	s.register.UpdatedBy = updatedBy
	return deleted, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, len(s.auditLogs))
	copy(result, s.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByID[user.EmployeeID]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByID[user.EmployeeID] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.EmployeeID, b.EmployeeID)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, employeeID string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[employeeID]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByID[employeeID] = user
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	copied := p
	if p.FirstWindow != nil {
		w := *p.FirstWindow
		copied.FirstWindow = &w
	}
	if p.SecondWindow != nil {
		w := *p.SecondWindow
		copied.SecondWindow = &w
	}
	return copied
}

func cloneSale(s domain.Sale) domain.Sale {
	copied := s
	copied.Items = make([]domain.SaleLine, len(s.Items))
	copy(copied.Items, s.Items)
	return copied
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
