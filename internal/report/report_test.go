package report

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"snackstand/backend/internal/domain"
)

var testNow = time.Date(2026, 3, 18, 14, 30, 0, 0, time.Local)

func sale(id string, createdAt time.Time, method string, lines ...domain.SaleLine) domain.Sale {
	var total int64
	for _, l := range lines {
		total += l.Product.PriceCents * int64(l.Quantity)
	}
	return domain.Sale{
		ID:            id,
		EmployeeID:    "emp-1",
		Items:         lines,
		TotalCents:    total,
		PaymentMethod: method,
		CreatedAt:     createdAt,
	}
}

func line(productID, name string, price int64, qty int) domain.SaleLine {
	return domain.SaleLine{
		Product:  domain.SaleLineProduct{ID: productID, Name: name, PriceCents: price},
		Quantity: qty,
	}
}

func TestFilterSalesPeriods(t *testing.T) {
	today := sale("s1", testNow.Add(-2*time.Hour), domain.PaymentCash)
	yesterday := sale("s2", testNow.Add(-26*time.Hour), domain.PaymentCash)
	lastWeek := sale("s3", testNow.Add(-9*24*time.Hour), domain.PaymentCash)
	firstOfMonth := sale("s4", time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local), domain.PaymentCash)
	lastMonth := sale("s5", time.Date(2026, 2, 27, 9, 0, 0, 0, time.Local), domain.PaymentCash)

	all := []domain.Sale{today, yesterday, lastWeek, firstOfMonth, lastMonth}

	if got := FilterSales(all, domain.PeriodToday, testNow); len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("today: got %v", ids(got))
	}
	if got := FilterSales(all, domain.PeriodWeek, testNow); len(got) != 2 {
		t.Fatalf("week: got %v", ids(got))
	}
	if got := FilterSales(all, domain.PeriodMonth, testNow); len(got) != 4 {
		t.Fatalf("month: got %v", ids(got))
	}
}

func ids(sales []domain.Sale) []string {
	out := make([]string, 0, len(sales))
	for _, s := range sales {
		out = append(out, s.ID)
	}
	return out
}

func TestBuildPaymentSplitAndAverages(t *testing.T) {
	sales := []domain.Sale{
		sale("s1", testNow.Add(-time.Hour), domain.PaymentCash, line("p1", "Chips", 250, 2)),
		sale("s2", testNow.Add(-time.Hour), domain.PaymentSchoolCash, line("p2", "Cola", 150, 1)),
		sale("s3", testNow.Add(-time.Hour), domain.PaymentCash, line("p2", "Cola", 150, 3)),
	}
	register := domain.CashRegister{CurrentCents: 5000, StartingCents: 2000}

	summary := Build(domain.PeriodToday, sales, nil, register, testNow)

	if summary.TotalSalesCents != 500+150+450 {
		t.Fatalf("total = %d", summary.TotalSalesCents)
	}
	if summary.Transactions != 3 {
		t.Fatalf("transactions = %d", summary.Transactions)
	}
	if summary.AvgTransactionCents != 1100/3 {
		t.Fatalf("avg = %d", summary.AvgTransactionCents)
	}
	if summary.Cash.AmountCents != 950 || summary.Cash.Transactions != 2 {
		t.Fatalf("cash split = %+v", summary.Cash)
	}
	if summary.SchoolCash.AmountCents != 150 || summary.SchoolCash.Transactions != 1 {
		t.Fatalf("school-cash split = %+v", summary.SchoolCash)
	}
	if summary.RegisterCurrent != 5000 || summary.RegisterStarting != 2000 {
		t.Fatalf("register = %d/%d", summary.RegisterCurrent, summary.RegisterStarting)
	}
	if summary.HasCostData {
		t.Fatal("no products, no cost data")
	}
	if summary.TotalProfitCents != 0 || summary.ProfitMarginPct != 0 {
		t.Fatal("profit figures must stay zeroed without cost data")
	}
}

func TestBuildProfitWithCurrentCosts(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "Chips", PriceCents: 250, UnitCostCents: 100},
		{ID: "p2", Name: "Cola", PriceCents: 150, UnitCostCents: 0},
	}
	sales := []domain.Sale{
		sale("s1", testNow.Add(-time.Hour), domain.PaymentCash,
			line("p1", "Chips", 250, 2), // revenue 500, cost 200
			line("p2", "Cola", 150, 1),  // revenue 150, cost 0 (unknown)
		),
	}

	summary := Build(domain.PeriodToday, sales, products, domain.CashRegister{}, testNow)

	if !summary.HasCostData {
		t.Fatal("expected cost data")
	}
	if summary.TotalCostCents != 200 {
		t.Fatalf("cost = %d", summary.TotalCostCents)
	}
	if summary.TotalProfitCents != 450 {
		t.Fatalf("profit = %d", summary.TotalProfitCents)
	}
	// 450/650 = 69.23% -> 69.2
	if summary.ProfitMarginPct != 69.2 {
		t.Fatalf("margin = %v", summary.ProfitMarginPct)
	}
	// 200/650 = 30.77% -> 30.8
	if summary.CostRatioPct != 30.8 {
		t.Fatalf("cost ratio = %v", summary.CostRatioPct)
	}
	if summary.AvgProfitCents != 450 {
		t.Fatalf("avg profit = %d", summary.AvgProfitCents)
	}
}

func TestBuildDeletedProductCountsZeroCost(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "Chips", UnitCostCents: 100},
	}
	sales := []domain.Sale{
		sale("s1", testNow.Add(-time.Hour), domain.PaymentCash,
			line("gone", "Retired Snack", 300, 2),
		),
	}

	summary := Build(domain.PeriodToday, sales, products, domain.CashRegister{}, testNow)
	if summary.TotalCostCents != 0 {
		t.Fatalf("deleted product should contribute zero cost, got %d", summary.TotalCostCents)
	}
	if summary.TotalProfitCents != 600 {
		t.Fatalf("profit = %d", summary.TotalProfitCents)
	}
}

func TestRankingsTopFive(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "A", UnitCostCents: 10},
	}
	var sales []domain.Sale
	// Seven products: quantities 1..7, profit inverse to quantity.
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("p%d", i)
		name := fmt.Sprintf("Snack %d", i)
		price := int64(100 * (8 - i))
		sales = append(sales, sale(id, testNow.Add(-time.Hour), domain.PaymentCash, line(id, name, price, i)))
	}

	summary := Build(domain.PeriodToday, sales, products, domain.CashRegister{}, testNow)

	if len(summary.TopSelling) != 5 {
		t.Fatalf("top selling len = %d", len(summary.TopSelling))
	}
	if summary.TopSelling[0].Name != "Snack 7" || summary.TopSelling[0].Quantity != 7 {
		t.Fatalf("top selling head = %+v", summary.TopSelling[0])
	}
	if len(summary.MostProfitable) != 5 {
		t.Fatalf("most profitable len = %d", len(summary.MostProfitable))
	}
	if summary.MostProfitable[0].ProfitCents < summary.MostProfitable[1].ProfitCents {
		t.Fatalf("most profitable not sorted: %+v", summary.MostProfitable)
	}
}

func TestRankingsTiesKeepFirstSeenOrder(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "Zebra Gum", UnitCostCents: 50},
		{ID: "p2", Name: "Apple Chips", UnitCostCents: 50},
	}
	// Same quantity, same price, same cost: a full tie on both rankings.
	// Zebra sells first, so it must rank first despite sorting after Apple
	// alphabetically.
	sales := []domain.Sale{
		sale("s1", testNow.Add(-2*time.Hour), domain.PaymentCash, line("p1", "Zebra Gum", 200, 2)),
		sale("s2", testNow.Add(-time.Hour), domain.PaymentCash, line("p2", "Apple Chips", 200, 2)),
	}

	summary := Build(domain.PeriodToday, sales, products, domain.CashRegister{}, testNow)

	if len(summary.TopSelling) != 2 {
		t.Fatalf("top selling len = %d", len(summary.TopSelling))
	}
	if summary.TopSelling[0].Name != "Zebra Gum" || summary.TopSelling[1].Name != "Apple Chips" {
		t.Fatalf("top selling tie order = [%s, %s]", summary.TopSelling[0].Name, summary.TopSelling[1].Name)
	}
	if summary.MostProfitable[0].Name != "Zebra Gum" || summary.MostProfitable[1].Name != "Apple Chips" {
		t.Fatalf("most profitable tie order = [%s, %s]", summary.MostProfitable[0].Name, summary.MostProfitable[1].Name)
	}

	// Rebuilding from the same inputs yields the same summary.
	again := Build(domain.PeriodToday, sales, products, domain.CashRegister{}, testNow)
	if !reflect.DeepEqual(summary, again) {
		t.Fatalf("rebuild differs:\n%+v\n%+v", summary, again)
	}
}

func TestRankingsAggregateByName(t *testing.T) {
	sales := []domain.Sale{
		sale("s1", testNow.Add(-time.Hour), domain.PaymentCash, line("p1", "Chips", 250, 1)),
		sale("s2", testNow.Add(-time.Hour), domain.PaymentCash, line("p1", "Chips", 250, 2)),
	}
	summary := Build(domain.PeriodToday, sales, nil, domain.CashRegister{}, testNow)
	if len(summary.TopSelling) != 1 {
		t.Fatalf("expected one rollup, got %v", summary.TopSelling)
	}
	if summary.TopSelling[0].Quantity != 3 || summary.TopSelling[0].RevenueCents != 750 {
		t.Fatalf("rollup = %+v", summary.TopSelling[0])
	}
}

func TestRecentSalesMostRecentFirstCapped(t *testing.T) {
	var sales []domain.Sale
	for i := 0; i < 12; i++ {
		sales = append(sales, sale(fmt.Sprintf("s%d", i), testNow.Add(-time.Duration(i)*time.Minute), domain.PaymentCash))
	}
	summary := Build(domain.PeriodToday, sales, nil, domain.CashRegister{}, testNow)
	if len(summary.RecentSales) != 10 {
		t.Fatalf("recent len = %d", len(summary.RecentSales))
	}
	if summary.RecentSales[0].Sale.ID != "s0" {
		t.Fatalf("most recent first, got %s", summary.RecentSales[0].Sale.ID)
	}
	if summary.RecentSales[9].Sale.ID != "s9" {
		t.Fatalf("cap order wrong, got %s", summary.RecentSales[9].Sale.ID)
	}
}
