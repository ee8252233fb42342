// Package report rolls sales up into period summaries: revenue, payment
// split, profit figures, and per-product rankings.
package report

import (
	"math"
	"slices"
	"time"

	"snackstand/backend/internal/domain"
)

const (
	topN           = 5
	recentSalesCap = 10
)

// PeriodStart returns the inclusive lower bound for a reporting period,
// relative to now: today is the current calendar day, week is a rolling
// seven days, month starts on the 1st.
func PeriodStart(period string, now time.Time) time.Time {
	switch period {
	case domain.PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case domain.PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default: // today
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
}

// FilterSales keeps the sales that fall inside the period ending at now.
func FilterSales(sales []domain.Sale, period string, now time.Time) []domain.Sale {
	start := PeriodStart(period, now)
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.CreatedAt.Before(start) || sale.CreatedAt.After(now) {
			continue
		}
		filtered = append(filtered, sale)
	}
	return filtered
}

// HasCostData reports whether any product carries a known unit cost. With
// no cost data the profit figures are meaningless and stay zeroed.
func HasCostData(products []domain.Product) bool {
	for _, p := range products {
		if p.UnitCostCents > 0 {
			return true
		}
	}
	return false
}

type rollupKey struct {
	name  string
	order int
}

// Build computes the full summary for one period. Line revenue comes from
// the frozen sale snapshots; cost attribution uses the product's CURRENT
// unit cost (zero when the product was deleted or has no cost recorded),
// so historical profit shifts when costs are edited. That trade-off is
// accepted: there are no cost snapshots in the sale record.
func Build(period string, sales []domain.Sale, products []domain.Product, register domain.CashRegister, now time.Time) domain.ReportSummary {
	filtered := FilterSales(sales, period, now)
	hasCost := HasCostData(products)

	costByID := make(map[string]int64, len(products))
	for _, p := range products {
		costByID[p.ID] = p.UnitCostCents
	}

	summary := domain.ReportSummary{
		Period:           period,
		GeneratedAt:      now.Format(time.RFC3339),
		HasCostData:      hasCost,
		RegisterCurrent:  register.CurrentCents,
		RegisterStarting: register.StartingCents,
	}

	rollups := make(map[string]*domain.ProductRollup)
	var order []rollupKey

	for _, sale := range filtered {
		summary.Transactions++
		summary.TotalSalesCents += sale.TotalCents

		switch sale.PaymentMethod {
		case domain.PaymentCash:
			summary.Cash.AmountCents += sale.TotalCents
			summary.Cash.Transactions++
		case domain.PaymentSchoolCash:
			summary.SchoolCash.AmountCents += sale.TotalCents
			summary.SchoolCash.Transactions++
		}

		for _, line := range sale.Items {
			revenue := line.Product.PriceCents * int64(line.Quantity)
			cost := costByID[line.Product.ID] * int64(line.Quantity)

			if hasCost {
				summary.TotalCostCents += cost
				summary.TotalProfitCents += revenue - cost
			}

			r, ok := rollups[line.Product.Name]
			if !ok {
				r = &domain.ProductRollup{Name: line.Product.Name}
				rollups[line.Product.Name] = r
				order = append(order, rollupKey{name: line.Product.Name, order: len(order)})
			}
			r.Quantity += line.Quantity
			r.RevenueCents += revenue
			r.CostCents += cost
			r.ProfitCents += revenue - cost
		}
	}

	if summary.Transactions > 0 {
		summary.AvgTransactionCents = summary.TotalSalesCents / int64(summary.Transactions)
	}
	if hasCost {
		if summary.TotalSalesCents > 0 {
			summary.ProfitMarginPct = round1(float64(summary.TotalProfitCents) / float64(summary.TotalSalesCents) * 100)
			summary.CostRatioPct = round1(float64(summary.TotalCostCents) / float64(summary.TotalSalesCents) * 100)
		}
		if summary.Transactions > 0 {
			summary.AvgProfitCents = summary.TotalProfitCents / int64(summary.Transactions)
		}
	}

	summary.TopSelling = rank(rollups, order, func(a, b *domain.ProductRollup) int {
		if a.Quantity != b.Quantity {
			if a.Quantity > b.Quantity {
				return -1
			}
			return 1
		}
		return 0
	})
	summary.MostProfitable = rank(rollups, order, func(a, b *domain.ProductRollup) int {
		if a.ProfitCents != b.ProfitCents {
			if a.ProfitCents > b.ProfitCents {
				return -1
			}
			return 1
		}
		return 0
	})

	summary.RecentSales = recentSales(filtered, costByID, hasCost)
	return summary
}

// rank sorts descending by cmp and keeps first-seen order for ties.
func rank(rollups map[string]*domain.ProductRollup, order []rollupKey, cmp func(a, b *domain.ProductRollup) int) []domain.ProductRollup {
	keys := slices.Clone(order)
	slices.SortStableFunc(keys, func(a, b rollupKey) int {
		if c := cmp(rollups[a.name], rollups[b.name]); c != 0 {
			return c
		}
		return a.order - b.order
	})

	limit := min(topN, len(keys))
	out := make([]domain.ProductRollup, 0, limit)
	for _, k := range keys[:limit] {
		out = append(out, *rollups[k.name])
	}
	return out
}

// SaleProfit recomputes profit for one sale with current unit costs.
func SaleProfit(sale domain.Sale, costByID map[string]int64) int64 {
	var profit int64
	for _, line := range sale.Items {
		profit += (line.Product.PriceCents - costByID[line.Product.ID]) * int64(line.Quantity)
	}
	return profit
}

func recentSales(sales []domain.Sale, costByID map[string]int64, hasCost bool) []domain.SaleSummary {
	sorted := slices.Clone(sales)
	slices.SortStableFunc(sorted, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	limit := min(recentSalesCap, len(sorted))
	out := make([]domain.SaleSummary, 0, limit)
	for _, sale := range sorted[:limit] {
		s := domain.SaleSummary{Sale: sale}
		if hasCost {
			s.ProfitCents = SaleProfit(sale, costByID)
		}
		out = append(out, s)
	}
	return out
}

func round1(val float64) float64 {
	return math.Round(val*10) / 10
}
