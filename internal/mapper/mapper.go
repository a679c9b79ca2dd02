// Package mapper attaches category labels to ledger rows from small code tables.
package mapper

import (
	"strings"

	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// Policy decides the label of rows the code table cannot resolve
type Policy struct {
	// EmptyLabel is forced on rows whose code is empty, whatever the table says
	EmptyLabel string
	// UnmappedLabel is given to non-empty codes missing from the table.
	// Empty leaves the label unset.
	UnmappedLabel string
}

// CollateralPolicy leaves unmapped collateral codes unlabelled
var CollateralPolicy = Policy{EmptyLabel: models.LabelNoCollateral}

// PurposePolicy buckets unmapped purpose codes with the blank ones
var PurposePolicy = Policy{EmptyLabel: models.LabelBlankPurpose, UnmappedLabel: models.LabelBlankPurpose}

// Mapper resolves raw codes to labels
type Mapper struct {
	name    string
	labels  map[string]string
	policy  Policy
	enabled bool
	logger  logger.Logger
}

// Stats summarizes one mapping pass
type Stats struct {
	Mapped        int      `json:"mapped"`
	Defaulted     int      `json:"defaulted"`
	Unmapped      int      `json:"unmapped"`
	UnmappedCodes []string `json:"unmapped_codes,omitempty"`
}

// New builds a mapper from a code table. The table is deduplicated on code,
// the first occurrence winning. A table without the code or label column
// yields a disabled mapper that labels every row with the empty-code
// default; the condition is reported to diag.
func New(codes *table.Table, cols ledger.CodeTableColumns, policy Policy, diag *errors.Collector) *Mapper {
	m := &Mapper{
		labels: make(map[string]string),
		policy: policy,
		logger: logger.GetGlobalLogger().WithComponent("mapper"),
	}
	if codes != nil {
		m.name = codes.Name
	}

	check := codes.Check(cols.Code, cols.Label)
	if !check.OK() {
		diag.Add(check.Err().WithContext("effect", "every row labelled "+policy.EmptyLabel))
		m.logger.WithField("missing", check.Missing).Warn("Code table unusable, mapping skipped")
		return m
	}

	m.enabled = true
	for r := range codes.Rows {
		code := codes.Value(r, cols.Code)
		if _, dup := m.labels[code]; dup {
			continue
		}
		m.labels[code] = codes.Value(r, cols.Label)
	}

	m.logger.WithFields(logger.Fields{"table": m.name, "codes": len(m.labels)}).Debug("Code table loaded")
	return m
}

// Enabled reports whether the code table was usable
func (m *Mapper) Enabled() bool {
	return m.enabled
}

// Lookup returns the label and the review marker for a raw code
func (m *Mapper) Lookup(code string) (label, marker string) {
	code = strings.TrimSpace(code)
	if code == "" || !m.enabled {
		return m.policy.EmptyLabel, ""
	}
	if label, ok := m.labels[code]; ok {
		return label, ""
	}
	return m.policy.UnmappedLabel, models.MarkerNeedsMapping
}

func (m *Mapper) resolve(code string, present bool, stats *Stats, seen map[string]bool) (string, string) {
	if !present {
		stats.Defaulted++
		return m.policy.EmptyLabel, ""
	}
	label, marker := m.Lookup(code)
	switch {
	case marker != "":
		stats.Unmapped++
		code = strings.TrimSpace(code)
		if !seen[code] {
			seen[code] = true
			stats.UnmappedCodes = append(stats.UnmappedCodes, code)
		}
	case !m.enabled || strings.TrimSpace(code) == "":
		stats.Defaulted++
	default:
		stats.Mapped++
	}
	return label, marker
}

func (m *Mapper) report(field string, stats Stats, diag *errors.Collector) {
	if len(stats.UnmappedCodes) > 0 {
		diag.Add(errors.ValidationError(errors.CodeUnmappedCode, field, stats.UnmappedCodes, nil).
			WithContext("rows", stats.Unmapped))
	}
	m.logger.WithFields(logger.Fields{
		"field":     field,
		"mapped":    stats.Mapped,
		"defaulted": stats.Defaulted,
		"unmapped":  stats.Unmapped,
	}).Info("Codes mapped")
}

// MapCollateral sets Category and Marker on every collateral row
func MapCollateral(led *ledger.CollateralLedger, m *Mapper, diag *errors.Collector) Stats {
	var stats Stats
	seen := make(map[string]bool)
	for i := range led.Rows {
		row := &led.Rows[i]
		row.Category, row.Marker = m.resolve(row.CollateralCode, led.HasCollateralCode, &stats, seen)
	}
	m.report("collateral code", stats, diag)
	return stats
}

// MapPurpose sets PurposeGroup and Marker on every purpose row
func MapPurpose(led *ledger.PurposeLedger, m *Mapper, diag *errors.Collector) Stats {
	var stats Stats
	seen := make(map[string]bool)
	for i := range led.Rows {
		row := &led.Rows[i]
		row.PurposeGroup, row.Marker = m.resolve(row.PurposeCode, led.HasPurposeCode, &stats, seen)
	}
	m.report("purpose code", stats, diag)
	return stats
}
