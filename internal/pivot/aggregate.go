package pivot

import (
	"github.com/shopspring/decimal"

	"credit-exposure-reconciler/internal/models"
)

// Aggregate is the collateral ledger pivoted on collateral category for
// both measures
type Aggregate struct {
	Balance    *Table
	Collateral *Table
}

// Collateral pivots drawn exposure. Guarantee and letter-of-credit rows are
// left out; they are aggregated separately during reconciliation.
func Collateral(rows []models.CollateralRow) Aggregate {
	balances := make([]Entry, 0, len(rows))
	values := make([]Entry, 0, len(rows))
	for _, r := range rows {
		if r.Product.IsContingent() {
			continue
		}
		balances = append(balances, Entry{Key: r.CustomerKey, Category: r.Category, Amount: r.Balance})
		values = append(values, Entry{Key: r.CustomerKey, Category: r.Category, Amount: r.CollateralValue})
	}
	return Aggregate{
		Balance:    Build("balance", "", balances),
		Collateral: Build("collateral value", CollateralValueSuffix, values),
	}
}

// Purpose pivots the purpose ledger balance on purpose group
func Purpose(rows []models.PurposeRow) *Table {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Key: r.CustomerKey, Category: r.PurposeGroup, Amount: r.Balance})
	}
	return Build("purpose balance", "", entries)
}

// SumBy totals amount per customer over the rows keep selects, in
// first-appearance order
func SumBy(rows []models.CollateralRow, keep func(models.CollateralRow) bool) (map[string]decimal.Decimal, []string) {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, r := range rows {
		if !keep(r) {
			continue
		}
		if _, ok := sums[r.CustomerKey]; !ok {
			order = append(order, r.CustomerKey)
		}
		sums[r.CustomerKey] = sums[r.CustomerKey].Add(r.Balance)
	}
	return sums, order
}
