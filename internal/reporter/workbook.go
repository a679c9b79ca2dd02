package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/reconciler"
	"credit-exposure-reconciler/internal/table"
)

const maxSheetName = 31

// textColumns hold identifiers that must keep their exact text in the
// workbook even when they look numeric
var textColumns = map[string]bool{
	reconciler.ColCustomerKey: true,
	"security id":             true,
	"contract id":             true,
	"collateral code":         true,
	"purpose code":            true,
	"approval level":          true,
	"approval code":           true,
	"scheme code":             true,
	"setting":                 true,
	"value":                   true,
}

func (rg *ReportGenerator) generateXLSXReport(result *reconciler.Result, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	tables := []*table.Table{result.CustomerTable()}
	if rg.config.IncludeAuditTables {
		tables = append(tables, result.AuditTables()...)
	} else if rg.config.IncludeWarnings {
		tables = append(tables, result.DiagnosticsTable())
	}

	used := make(map[string]bool)
	for i, t := range tables {
		name := uniqueSheetName(t.Name, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, t, header); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.Write(writer)
}

func writeSheet(f *excelize.File, sheet string, t *table.Table, headerStyle int) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c
	}
	if err := sw.SetRow("A1", headers, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = cellValue(t.Columns[i], v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// cellValue writes numeric cells as numbers so spreadsheet sums work.
// Identifiers, values with leading zeros and values beyond float precision
// stay text.
func cellValue(column, v string) interface{} {
	if isBlank(v) || textColumns[column] {
		return v
	}
	digits := strings.TrimPrefix(v, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return v
	}
	if len(strings.ReplaceAll(digits, ".", "")) > 15 {
		return v
	}
	d, ok := models.ParseNumber(v)
	if !ok {
		return v
	}
	return d.InexactFloat64()
}

// uniqueSheetName fits a table name to the workbook's sheet-name rules
func uniqueSheetName(name string, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if isBlank(name) {
		name = "sheet"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
