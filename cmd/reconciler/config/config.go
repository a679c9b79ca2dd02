// Package config turns command-line flags, environment variables and the
// optional config file into the configuration values of a run.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"credit-exposure-reconciler/internal/parsers"
	"credit-exposure-reconciler/internal/reconciler"
	"credit-exposure-reconciler/internal/reporter"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// Input names, used as table names and in the run log
const (
	InputCollateral        = "collateral"
	InputPurpose           = "purpose"
	InputCollateralCodes   = "collateral codes"
	InputPurposeCodes      = "purpose codes"
	InputCashDisbursements = "cash disbursements"
	InputAssetLocations    = "asset locations"
	InputSettlements       = "settlements"
	InputDisbursements     = "disbursements"
	InputDelays            = "delays"
)

// Evaluation dates are accepted ISO or day-first
var evaluationDateLayouts = []string{"2006-01-02", "02/01/2006"}

// InputFiles lists the files of every input table. Each entry may be a
// local path or an http(s) URL.
type InputFiles struct {
	Collateral        []string
	Purpose           []string
	CollateralCodes   []string
	PurposeCodes      []string
	CashDisbursements []string
	AssetLocations    []string
	Settlements       []string
	Disbursements     []string
	Delays            []string
}

// InputFilesFrom reads the input flags
func InputFilesFrom(v *viper.Viper) InputFiles {
	get := func(key string) []string {
		var out []string
		for _, p := range listSetting(v, key) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return InputFiles{
		Collateral:        get("collateral"),
		Purpose:           get("purpose"),
		CollateralCodes:   get("collateral-codes"),
		PurposeCodes:      get("purpose-codes"),
		CashDisbursements: get("cash-disbursements"),
		AssetLocations:    get("asset-locations"),
		Settlements:       get("settlements"),
		Disbursements:     get("disbursements"),
		Delays:            get("delays"),
	}
}

// Validate checks the two primary ledgers were given
func (f InputFiles) Validate() error {
	var err error
	if len(f.Collateral) == 0 {
		err = multierr.Append(err, fmt.Errorf("collateral is required"))
	}
	if len(f.Purpose) == 0 {
		err = multierr.Append(err, fmt.Errorf("purpose is required"))
	}
	return err
}

// Named pairs every input name with its files, in reading order
func (f InputFiles) Named() []NamedFiles {
	return []NamedFiles{
		{InputCollateral, f.Collateral},
		{InputPurpose, f.Purpose},
		{InputCollateralCodes, f.CollateralCodes},
		{InputPurposeCodes, f.PurposeCodes},
		{InputCashDisbursements, f.CashDisbursements},
		{InputAssetLocations, f.AssetLocations},
		{InputSettlements, f.Settlements},
		{InputDisbursements, f.Disbursements},
		{InputDelays, f.Delays},
	}
}

// Sources maps every supplied input to its files
func (f InputFiles) Sources() map[string][]string {
	out := make(map[string][]string)
	for _, n := range f.Named() {
		if len(n.Paths) > 0 {
			out[n.Name] = n.Paths
		}
	}
	return out
}

// listSetting reads a list that may arrive as a comma-separated string
// from the environment or as a list from flags and the config file
func listSetting(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return strings.Split(s, ",")
	}
	return v.GetStringSlice(key)
}

// NamedFiles is one input and its files
type NamedFiles struct {
	Name  string
	Paths []string
}

// ParseEvaluationDate reads the evaluation date flag. Empty means the
// default evaluation date.
func ParseEvaluationDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reconciler.DefaultEvaluationDate, nil
	}
	for _, layout := range evaluationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid evaluation date %q, use YYYY-MM-DD", raw)
}

// CreateRunConfig builds the run configuration. Column layouts and rule
// parameters come from the "layout" and "rules" sections of the config
// file; every other setting has a flag.
func CreateRunConfig(v *viper.Viper) (reconciler.RunConfig, error) {
	cfg := reconciler.DefaultRunConfig()

	if err := v.UnmarshalKey("layout", &cfg.Layout); err != nil {
		return cfg, errors.ConfigurationError(errors.CodeInvalidConfig, "layout", nil, err)
	}
	if err := v.UnmarshalKey("rules", &cfg.Rules); err != nil {
		return cfg, errors.ConfigurationError(errors.CodeInvalidConfig, "rules", nil, err)
	}

	cfg.BranchFilter = strings.TrimSpace(v.GetString("branch"))
	cfg.HomeProvinces = reconciler.ParseHomeProvinces(strings.Join(listSetting(v, "home-provinces"), ","))

	raw := v.GetString("evaluation-date")
	date, err := ParseEvaluationDate(raw)
	if err != nil {
		return cfg, errors.ConfigurationError(errors.CodeInvalidConfig, "evaluation-date", raw, err)
	}
	cfg.EvaluationDate = date

	if v.IsSet("max-warnings") {
		cfg.MaxWarnings = v.GetInt("max-warnings")
	}

	return cfg, cfg.Validate()
}

// CreateParseConfig builds the input reader configuration
func CreateParseConfig(v *viper.Viper) *parsers.ParseConfig {
	config := parsers.DefaultParseConfig()
	config.Sheet = strings.TrimSpace(v.GetString("sheet"))
	if v.IsSet("fetch-timeout") {
		config.FetchTimeout = v.GetDuration("fetch-timeout")
	}
	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludeAuditTables = false
	case reporter.FormatCSV:
		config.IncludeAuditTables = false
		config.IncludeWarnings = false
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, err).
			WithSuggestion("use one of: console, json, csv, xlsx")
	}
	return config, nil
}

// CreateLoggerConfig maps the logging flags to a logger configuration
func CreateLoggerConfig(verbose bool, format string) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log-format", format, err).
			WithSuggestion("use text or json")
	}
	return config, nil
}
