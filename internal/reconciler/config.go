package reconciler

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"credit-exposure-reconciler/internal/flags"
	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
)

// DefaultEvaluationDate is the reference date of the audit programme
var DefaultEvaluationDate = time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)

// RunConfig is the immutable parameter set of one reconciliation run
type RunConfig struct {
	// BranchFilter keeps ledger rows whose branch code contains it,
	// case-insensitively. Empty keeps everything.
	BranchFilter   string        `mapstructure:"branch" json:"branch_filter"`
	EvaluationDate time.Time     `mapstructure:"evaluation_date" json:"evaluation_date"`
	HomeProvinces  []string      `mapstructure:"home_provinces" json:"home_provinces"`
	Layout         ledger.Layout `mapstructure:"layout" json:"layout"`
	Rules          flags.Config  `mapstructure:"rules" json:"rules"`

	// MaxWarnings caps the diagnostics kept for one run, 0 keeps all
	MaxWarnings int `mapstructure:"max_warnings" json:"max_warnings"`
}

// DefaultRunConfig returns a configuration for the default source layout
func DefaultRunConfig() RunConfig {
	return RunConfig{
		EvaluationDate: DefaultEvaluationDate,
		Layout:         ledger.DefaultLayout(),
		Rules:          flags.DefaultConfig(),
		MaxWarnings:    1000,
	}
}

// Validate reports every invalid setting at once
func (c RunConfig) Validate() error {
	var err error
	if c.EvaluationDate.IsZero() {
		err = multierr.Append(err, fmt.Errorf("evaluation date is required"))
	}
	if c.MaxWarnings < 0 {
		err = multierr.Append(err, fmt.Errorf("max warnings cannot be negative, got %d", c.MaxWarnings))
	}
	err = multierr.Append(err, c.Layout.Validate())
	err = multierr.Append(err, c.Rules.Validate())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "run_config", err.Error(), err)
	}
	return nil
}

// ParseHomeProvinces splits a comma-separated province list, dropping blanks
func ParseHomeProvinces(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// Inputs are the tables of one run. Collateral and Purpose are required;
// every other table may be nil.
type Inputs struct {
	Collateral      *table.Table
	Purpose         *table.Table
	CollateralCodes *table.Table
	PurposeCodes    *table.Table

	CashDisbursements *table.Table
	AssetLocations    *table.Table
	Settlements       *table.Table
	Disbursements     *table.Table
	Delays            *table.Table

	// Sources lists the files read for each input, for the run log
	Sources map[string][]string
}
