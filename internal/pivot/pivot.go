// Package pivot aggregates labelled ledger rows into one row per customer
// with one column per category.
package pivot

import (
	"sort"

	"github.com/shopspring/decimal"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
)

// CollateralValueSuffix distinguishes collateral-value columns from balance
// columns carrying the same category label
const CollateralValueSuffix = " (collateral value)"

// Entry is one measure contribution to a customer and category
type Entry struct {
	Key      string
	Category string
	Amount   decimal.Decimal
}

// Table is a sum pivot: customers down, categories across
type Table struct {
	Measure    string
	Suffix     string
	Keys       []string
	Categories []string

	cells  map[string]map[string]decimal.Decimal
	totals map[string]decimal.Decimal
}

// Build sums entries per customer and category. Customers keep their
// first-appearance order, categories are sorted, and an unset category is
// collected under models.LabelUnmapped. Totals are the row sums of the
// category cells.
func Build(measure, suffix string, entries []Entry) *Table {
	p := &Table{
		Measure: measure,
		Suffix:  suffix,
		cells:   make(map[string]map[string]decimal.Decimal),
		totals:  make(map[string]decimal.Decimal),
	}

	seenCategory := make(map[string]bool)
	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = models.LabelUnmapped
		}
		row, ok := p.cells[e.Key]
		if !ok {
			row = make(map[string]decimal.Decimal)
			p.cells[e.Key] = row
			p.Keys = append(p.Keys, e.Key)
		}
		row[category] = row[category].Add(e.Amount)
		if !seenCategory[category] {
			seenCategory[category] = true
			p.Categories = append(p.Categories, category)
		}
	}
	sort.Strings(p.Categories)

	for key, row := range p.cells {
		total := decimal.Zero
		for _, category := range p.Categories {
			total = total.Add(row[category])
		}
		p.totals[key] = total
	}
	return p
}

// Len returns the number of customers
func (p *Table) Len() int {
	return len(p.Keys)
}

// Has reports whether the customer appears in the pivot
func (p *Table) Has(key string) bool {
	_, ok := p.cells[key]
	return ok
}

// Column returns the output column name of a category
func (p *Table) Column(category string) string {
	return category + p.Suffix
}

// Columns returns every category column name in order
func (p *Table) Columns() []string {
	out := make([]string, len(p.Categories))
	for i, c := range p.Categories {
		out[i] = p.Column(c)
	}
	return out
}

// Value returns a cell, zero when the customer or category is absent
func (p *Table) Value(key, category string) decimal.Decimal {
	return p.cells[key][category]
}

// Total returns the customer's row sum, zero when absent
func (p *Table) Total(key string) decimal.Decimal {
	return p.totals[key]
}

// ToTable renders the pivot for export with the key column first and the
// total column last
func (p *Table) ToTable(name, keyColumn, totalColumn string) *table.Table {
	columns := append([]string{keyColumn}, p.Columns()...)
	columns = append(columns, totalColumn)

	out := table.New(name, columns, nil)
	for _, key := range p.Keys {
		row := make([]string, 0, len(columns))
		row = append(row, key)
		for _, c := range p.Categories {
			row = append(row, p.Value(key, c).String())
		}
		row = append(row, p.Total(key).String())
		out.AddRow(row...)
	}
	return out
}
