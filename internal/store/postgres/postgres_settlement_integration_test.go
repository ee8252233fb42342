package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"snackstand/backend/internal/domain"
)

func TestApplySettlementDecrementsStockAndMovesRegister(t *testing.T) {
	databaseURL := os.Getenv("SNACKSTAND_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SNACKSTAND_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-settle-it-%d", stamp)
	saleID := uuid.NewString()

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, unit_cost_cents, quantity, created_at, updated_at)
		VALUES ($1, 'Settlement IT Chips', 'chips', 250, 100, 10, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	registerBefore, err := s.GetRegister(ctx)
	if err != nil {
		t.Fatalf("get register: %v", err)
	}

	settlement := domain.Settlement{
		Sale: domain.Sale{
			ID:         saleID,
			EmployeeID: "it-employee",
			Items: []domain.SaleLine{
				{Product: domain.SaleLineProduct{ID: productID, Name: "Settlement IT Chips", PriceCents: 250}, Quantity: 3},
			},
			TotalCents:    750,
			PaymentMethod: domain.PaymentCash,
			CreatedAt:     time.Now().UTC(),
		},
		StockDeltas:        []domain.StockDelta{{ProductID: productID, Quantity: 3}},
		RegisterDeltaCents: 750,
	}

	if _, err := s.ApplySettlement(ctx, settlement); err != nil {
		t.Fatalf("apply settlement: %v", err)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity
		FROM products
		WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected stock 7 after settlement, got %d", qty)
	}

	registerAfter, err := s.GetRegister(ctx)
	if err != nil {
		t.Fatalf("get register after: %v", err)
	}
	if registerAfter.CurrentCents != registerBefore.CurrentCents+750 {
		t.Fatalf("expected register %d, got %d", registerBefore.CurrentCents+750, registerAfter.CurrentCents)
	}
	if registerAfter.UpdatedBy != "it-employee" {
		t.Fatalf("expected updated_by it-employee, got %s", registerAfter.UpdatedBy)
	}

	// School-cash must leave the register untouched.
	saleID2 := uuid.NewString()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID2)
	})
	settlement.Sale.ID = saleID2
	settlement.Sale.PaymentMethod = domain.PaymentSchoolCash
	settlement.RegisterDeltaCents = 0
	if _, err := s.ApplySettlement(ctx, settlement); err != nil {
		t.Fatalf("apply school-cash settlement: %v", err)
	}
	registerFinal, err := s.GetRegister(ctx)
	if err != nil {
		t.Fatalf("get register final: %v", err)
	}
	if registerFinal.CurrentCents != registerAfter.CurrentCents {
		t.Fatalf("school-cash moved the register: %d -> %d", registerAfter.CurrentCents, registerFinal.CurrentCents)
	}
}
