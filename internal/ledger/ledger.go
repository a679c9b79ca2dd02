// Package ledger turns raw input tables into typed ledger rows.
//
// Every extractor checks the columns it needs once, on entry. Columns a
// pivot cannot do without are fatal; everything else degrades to an
// empty value and is reported to the run diagnostics.
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

var fold = cases.Fold()

// CollateralLedger is the typed collateral ledger with the optional
// columns it was able to read
type CollateralLedger struct {
	Rows []models.CollateralRow

	HasCollateralCode bool
	HasCustomerInfo   bool
	HasDebtGroup      bool
	HasSecurityID     bool
	HasValuationDate  bool
}

// PurposeLedger is the typed purpose ledger with the optional columns it was able to read
type PurposeLedger struct {
	Rows []models.PurposeRow

	HasApprovalLevel bool
	HasPurposeCode   bool
	HasContractID    bool
	HasSchemeCode    bool
}

// FilterBranch keeps the rows whose branch column contains filter,
// case-insensitively. An empty filter keeps everything. A table without
// the branch column is returned unfiltered with a warning.
func FilterBranch(t *table.Table, column, filter string, diag *errors.Collector) *table.Table {
	filter = strings.TrimSpace(filter)
	if filter == "" || t == nil {
		return t
	}

	log := logger.GetGlobalLogger().WithComponent("ledger")
	if !t.Has(column) {
		diag.Add(table.SchemaCheck{Table: t.Name, Missing: []string{column}}.Err().
			WithContext("effect", "branch filter skipped for this ledger"))
		log.WithField("table", t.Name).Warnf("Column %s missing, branch filter skipped", column)
		return t
	}

	needle := fold.String(filter)
	i := t.Index(column)
	out := t.Filter(func(r int) bool {
		return strings.Contains(fold.String(t.Rows[r][i]), needle)
	})

	log.WithFields(logger.Fields{
		"table":  t.Name,
		"filter": filter,
		"before": t.Len(),
		"after":  out.Len(),
	}).Info("Branch filter applied")
	return out
}

// ExtractCollateral reads the collateral ledger. Missing key, product or
// measure columns are fatal.
func ExtractCollateral(t *table.Table, cols CollateralColumns, diag *errors.Collector) (*CollateralLedger, error) {
	if check := t.Check(cols.Required()...); !check.OK() {
		return nil, check.Err()
	}

	led := &CollateralLedger{
		HasCollateralCode: t.Has(cols.CollateralCode),
		HasCustomerInfo:   t.Has(cols.CustomerName) && t.Has(cols.CustomerType),
		HasDebtGroup:      t.Has(cols.DebtGroup),
		HasSecurityID:     t.Has(cols.SecurityID),
		HasValuationDate:  t.Has(cols.ValuationDate),
	}
	warnMissing(t, diag, "dependent fields left empty",
		cols.CollateralCode, cols.CustomerName, cols.CustomerType, cols.DebtGroup, cols.SecurityID, cols.ValuationDate)

	var badAmounts, emptyKeys int
	led.Rows = make([]models.CollateralRow, 0, t.Len())
	for r := range t.Rows {
		balance, okB := parseMeasure(t.Value(r, cols.Balance))
		value, okV := parseMeasure(t.Value(r, cols.CollateralValue))
		if !okB {
			badAmounts++
		}
		if !okV {
			badAmounts++
		}

		row := models.CollateralRow{
			Line:            r + 1,
			CustomerKey:     models.NormalizeCustomerKey(t.Value(r, cols.CustomerKey)),
			Product:         models.ParseProductType(t.Value(r, cols.Product)),
			CollateralCode:  t.Value(r, cols.CollateralCode),
			Balance:         balance,
			CollateralValue: value,
			CustomerName:    t.Value(r, cols.CustomerName),
			CustomerType:    t.Value(r, cols.CustomerType),
			DebtGroup:       models.ParseDebtGroup(t.Value(r, cols.DebtGroup)),
			SecurityID:      t.Value(r, cols.SecurityID),
		}
		if d, ok := models.ParseDate(t.Value(r, cols.ValuationDate)); ok {
			row.ValuationDate = d
		}
		if row.CustomerKey == "" {
			emptyKeys++
		}
		led.Rows = append(led.Rows, row)
	}

	reportCoercions(t.Name, badAmounts, emptyKeys, diag)
	return led, nil
}

// ExtractPurpose reads the purpose ledger. Missing key or balance columns are fatal.
func ExtractPurpose(t *table.Table, cols PurposeColumns, diag *errors.Collector) (*PurposeLedger, error) {
	if check := t.Check(cols.Required()...); !check.OK() {
		return nil, check.Err()
	}

	led := &PurposeLedger{
		HasApprovalLevel: t.Has(cols.ApprovalLevel),
		HasPurposeCode:   t.Has(cols.PurposeCode),
		HasContractID:    t.Has(cols.ContractID),
		HasSchemeCode:    t.Has(cols.SchemeCode),
	}
	warnMissing(t, diag, "dependent fields left empty",
		cols.ApprovalLevel, cols.PurposeCode, cols.ContractID, cols.SchemeCode)

	var badAmounts, emptyKeys int
	led.Rows = make([]models.PurposeRow, 0, t.Len())
	for r := range t.Rows {
		balance, ok := parseMeasure(t.Value(r, cols.Balance))
		if !ok {
			badAmounts++
		}
		row := models.PurposeRow{
			Line:          r + 1,
			CustomerKey:   models.NormalizeCustomerKey(t.Value(r, cols.CustomerKey)),
			ApprovalLevel: t.Value(r, cols.ApprovalLevel),
			PurposeCode:   t.Value(r, cols.PurposeCode),
			Balance:       balance,
			ContractID:    t.Value(r, cols.ContractID),
			SchemeCode:    strings.TrimSpace(t.Value(r, cols.SchemeCode)),
		}
		if row.CustomerKey == "" {
			emptyKeys++
		}
		led.Rows = append(led.Rows, row)
	}

	reportCoercions(t.Name, badAmounts, emptyKeys, diag)
	return led, nil
}

// parseMeasure treats an empty cell as a valid zero; only non-empty
// unreadable cells count as coercions.
func parseMeasure(s string) (decimal.Decimal, bool) {
	amount, parsed := models.ParseAmount(s)
	return amount, parsed || strings.TrimSpace(s) == ""
}

func warnMissing(t *table.Table, diag *errors.Collector, effect string, optional ...string) {
	check := t.Check(optional...)
	if check.OK() {
		return
	}
	diag.Add(check.Err().WithContext("effect", effect))
	logger.GetGlobalLogger().WithComponent("ledger").
		WithFields(logger.Fields{"table": t.Name, "missing": check.Missing}).
		Warn("Optional columns missing")
}

func reportCoercions(name string, badAmounts, emptyKeys int, diag *errors.Collector) {
	if badAmounts > 0 {
		diag.Add(errors.ValidationError(errors.CodeInvalidAmount, name+" amounts",
			fmt.Sprintf("%d unreadable cell(s)", badAmounts), nil).
			WithSuggestion("unreadable amounts were counted as zero"))
	}
	if emptyKeys > 0 {
		diag.Add(errors.ValidationError(errors.CodeMissingField, name+" customer key",
			fmt.Sprintf("%d row(s)", emptyKeys), nil).
			WithSuggestion("rows with an empty customer key are grouped under an empty key"))
	}
}
