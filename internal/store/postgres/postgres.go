package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"snackstand/backend/internal/domain"
	"snackstand/backend/internal/store"
	"snackstand/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, category, price_cents, unit_cost_cents, quantity,
		first_window_start, first_window_end, second_window_start, second_window_end,
		created_at, updated_at`

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var p domain.Product
	var firstStart, firstEnd, secondStart, secondEnd sql.NullString
	err := scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.UnitCostCents, &p.Quantity,
		&firstStart, &firstEnd, &secondStart, &secondEnd, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.FirstWindow = windowFromNullable(firstStart, firstEnd)
	p.SecondWindow = windowFromNullable(secondStart, secondEnd)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, unit_cost_cents, quantity,
			first_window_start, first_window_end, second_window_start, second_window_end,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.UnitCostCents, product.Quantity,
		windowStart(product.FirstWindow), windowEnd(product.FirstWindow),
		windowStart(product.SecondWindow), windowEnd(product.SecondWindow),
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, unit_cost_cents = $5, quantity = $6,
			first_window_start = $7, first_window_end = $8,
			second_window_start = $9, second_window_end = $10,
			updated_at = $11
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.UnitCostCents, product.Quantity,
		windowStart(product.FirstWindow), windowEnd(product.FirstWindow),
		windowStart(product.SecondWindow), windowEnd(product.SecondWindow),
		product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AssignCategory(ctx context.Context, productIDs []string, category string) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET category = $2, updated_at = now()
		WHERE id = ANY($1)
	`, productIDs, category)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ApplySettlement runs the whole settlement in one serializable
// transaction: every touched product row and the register row are locked
// FOR UPDATE, stock is re-checked against the locked rows, and the sale,
// stock writes and register movement commit together or not at all.
func (s *Store) ApplySettlement(ctx context.Context, settlement domain.Settlement) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := make([]string, 0, len(settlement.StockDeltas))
	for _, delta := range settlement.StockDeltas {
		ids = append(ids, delta.ProductID)
	}

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, quantity
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	stockMap := make(map[string]int, len(ids))
	for stockRows.Next() {
		var id string
		var qty int
		if err := stockRows.Scan(&id, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[id] = qty
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for _, delta := range settlement.StockDeltas {
		qty, exists := stockMap[delta.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if qty < delta.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	for _, delta := range settlement.StockDeltas {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2, updated_at = now()
			WHERE id = $1
		`, delta.ProductID, delta.Quantity); err != nil {
			return nil, err
		}
	}

	sale := settlement.Sale
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, employee_id, items, total_cents, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, sale.EmployeeID, itemsJSON, sale.TotalCents, sale.PaymentMethod, sale.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if settlement.RegisterDeltaCents != 0 {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE cash_register
			SET current_cents = current_cents + $1, updated_at = now(), updated_by = $2
			WHERE id = (SELECT id FROM cash_register ORDER BY id LIMIT 1 FOR UPDATE)
		`, settlement.RegisterDeltaCents, sale.EmployeeID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrRegisterMissing
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, items, total_cents, payment_method, created_at
		FROM sales
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		var sale domain.Sale
		var itemsJSON []byte
		if err := rows.Scan(&sale.ID, &sale.EmployeeID, &itemsJSON, &sale.TotalCents, &sale.PaymentMethod, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetRegister(ctx context.Context) (*domain.CashRegister, error) {
	var register domain.CashRegister
	err := s.db.QueryRowContext(ctx, `
		SELECT id, current_cents, starting_cents, updated_at, updated_by
		FROM cash_register
		ORDER BY id
		LIMIT 1
	`).Scan(&register.ID, &register.CurrentCents, &register.StartingCents, &register.UpdatedAt, &register.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRegisterMissing
		}
		return nil, err
	}
	register.UpdatedAt = register.UpdatedAt.UTC()
	return &register, nil
}

func (s *Store) SetRegister(ctx context.Context, currentCents int64, startingCents *int64, updatedBy string) (*domain.CashRegister, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var register domain.CashRegister
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, starting_cents
		FROM cash_register
		ORDER BY id
		LIMIT 1
		FOR UPDATE
	`).Scan(&register.ID, &register.StartingCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRegisterMissing
		}
		return nil, err
	}

	if startingCents != nil {
		register.StartingCents = *startingCents
	}
	register.CurrentCents = currentCents
	register.UpdatedBy = updatedBy
	register.UpdatedAt = time.Now().UTC()

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE cash_register
		SET current_cents = $2, starting_cents = $3, updated_at = $4, updated_by = $5
		WHERE id = $1
	`, register.ID, register.CurrentCents, register.StartingCents, register.UpdatedAt, register.UpdatedBy); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &register, nil
}

func (s *Store) ResetMonth(ctx context.Context, updatedBy string) (int, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = pgTx.Rollback() }()

	res, err := pgTx.ExecContext(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE cash_register
		SET current_cents = 0, starting_cents = 0, updated_at = now(), updated_by = $1
	`, updatedBy); err != nil {
		return 0, err
	}

	if err := pgTx.Commit(); err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, nullIfEmpty(entry.EntityID), entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, action, entity_type, COALESCE(entity_id, ''), detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (employee_id, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
	`, user.EmployeeID, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, password, role, active, created_at
		FROM app_users
		ORDER BY employee_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.EmployeeID, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, employeeID string, password string) error {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" || strings.TrimSpace(password) == "" {
		return store.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE employee_id = $1
	`, employeeID, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func windowFromNullable(start, end sql.NullString) *domain.AvailabilityWindow {
	if !start.Valid && !end.Valid {
		return nil
	}
	w := domain.AvailabilityWindow{}
	if start.Valid {
		w.Start = start.String
	}
	if end.Valid {
		w.End = end.String
	}
	return &w
}

func windowStart(w *domain.AvailabilityWindow) any {
	if w == nil || w.Start == "" {
		return nil
	}
	return w.Start
}

func windowEnd(w *domain.AvailabilityWindow) any {
	if w == nil || w.End == "" {
		return nil
	}
	return w.End
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
