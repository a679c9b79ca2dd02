// Package table holds the in-memory tabular form every pipeline stage reads.
//
// Cells are kept as trimmed strings exactly as the source produced them;
// typed coercion happens in the ledger package. A nil *Table is valid and
// behaves as an empty table with no columns, which is how absent optional
// inputs are represented.
package table

import (
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// Table is a named, column-addressed set of string rows
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	index  map[string]int
	folded map[string]int
}

// New creates a table. Headers are normalized and every row is padded or
// truncated to the header width.
func New(name string, columns []string, rows [][]string) *Table {
	t := &Table{Name: name}
	t.Columns = make([]string, len(columns))
	for i, c := range columns {
		t.Columns[i] = NormalizeHeader(c)
	}
	t.reindex()

	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.AddRow(r...)
	}
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	t.folded = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
		f := fold.String(c)
		if _, ok := t.folded[f]; !ok {
			t.folded[f] = i
		}
	}
}

// NormalizeHeader trims a header and collapses internal whitespace runs
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(h), " ")
}

// AddRow appends a row, normalizing its width and trimming cells
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.Columns))
	for i := 0; i < len(row) && i < len(values); i++ {
		row[i] = strings.TrimSpace(values[i])
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, matching exactly first and then
// case-insensitively. It returns -1 when the column is absent.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	column = NormalizeHeader(column)
	if i, ok := t.index[column]; ok {
		return i
	}
	if i, ok := t.folded[fold.String(column)]; ok {
		return i
	}
	return -1
}

// Has reports whether the column is present
func (t *Table) Has(column string) bool {
	return t.Index(column) >= 0
}

// Value returns a cell, or "" when the column is absent
func (t *Table) Value(row int, column string) string {
	i := t.Index(column)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Column returns every value of a column, or nil when it is absent
func (t *Table) Column(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Filter returns a new table with the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) *Table {
	if t == nil {
		return nil
	}
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	out.reindex()
	for r, row := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Concat stacks tables under the union of their columns, in first-seen
// column order. Cells for columns a table lacks are empty.
func Concat(name string, tables ...*Table) *Table {
	var columns []string
	seen := make(map[string]bool)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	out := New(name, columns, nil)
	for _, t := range tables {
		if t == nil {
			continue
		}
		positions := make([]int, len(columns))
		for i, c := range columns {
			positions[i] = -1
			for j, tc := range t.Columns {
				if tc == c {
					positions[i] = j
					break
				}
			}
		}
		for _, row := range t.Rows {
			merged := make([]string, len(columns))
			for i, p := range positions {
				if p >= 0 {
					merged[i] = row[p]
				}
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}
