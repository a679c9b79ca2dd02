// Package reporter renders reconciliation results.
//
// Supported output formats:
//   - Console: headline figures, flag counts and the largest variances
//   - JSON: summary plus the customer table, and optionally every audit table
//   - CSV: the customer table
//   - XLSX: a workbook with the customer table on the first sheet and one
//     sheet per audit table
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(result, file)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/reconciler"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Audit tables go to JSON and XLSX output; the console always omits them
	IncludeAuditTables bool `json:"include_audit_tables" mapstructure:"include_audit_tables"`
	IncludeWarnings    bool `json:"include_warnings" mapstructure:"include_warnings"`

	// MaxConsoleRows caps the variance listing of the console report
	MaxConsoleRows int `json:"max_console_rows" mapstructure:"max_console_rows"`

	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeAuditTables: true,
		IncludeWarnings:    true,
		MaxConsoleRows:     20,
		CSVDelimiter:       ',',
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative, got %d", c.MaxConsoleRows)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid csv delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	summary := result.Summary()

	fmt.Fprintf(writer, "CREDIT EXPOSURE RECONCILIATION\n")
	fmt.Fprintf(writer, "Run:             %s\n", result.RunID)
	fmt.Fprintf(writer, "Evaluation date: %s\n", result.Config.EvaluationDate.Format("2006-01-02"))
	if result.Config.BranchFilter != "" {
		fmt.Fprintf(writer, "Branch filter:   %s\n", result.Config.BranchFilter)
	}
	fmt.Fprintf(writer, "Duration:        %v\n\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FLAGS ===\n")
	rg.printFlagCounts(summary, writer)
	fmt.Fprintf(writer, "\n")

	if summary.WithVariance > 0 {
		fmt.Fprintf(writer, "=== VARIANCES ===\n")
		if err := rg.printVariances(result.Customers, writer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "=== WARNINGS ===\n")
		fmt.Fprintf(writer, "%s\n", errors.FormatForUser(result.Warnings))
	}
	return nil
}

func (rg *ReportGenerator) printSummary(summary reconciler.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Customers:            %d\n", summary.Customers)
	fmt.Fprintf(writer, "  Collateral only:    %d\n", summary.CollateralOnly)
	fmt.Fprintf(writer, "  Purpose only:       %d\n", summary.PurposeOnly)
	fmt.Fprintf(writer, "  With variance:      %d (%.1f%%)\n",
		summary.WithVariance, calculatePercentage(summary.WithVariance, summary.Customers))
	fmt.Fprintf(writer, "Total balance:        %s\n", summary.TotalBalance.StringFixed(2))
	fmt.Fprintf(writer, "Total purpose:        %s\n", summary.TotalPurpose.StringFixed(2))
	fmt.Fprintf(writer, "Net variance:         %s\n", summary.TotalVariance.StringFixed(2))
	fmt.Fprintf(writer, "Warnings:             %d\n", summary.Warnings)
}

func (rg *ReportGenerator) printFlagCounts(summary reconciler.Summary, writer io.Writer) {
	for _, f := range models.AllFlags {
		fmt.Fprintf(writer, "%-38s %d\n", string(f)+":", summary.FlagCounts[f])
	}
}

// printVariances lists the customers with the largest absolute variance
func (rg *ReportGenerator) printVariances(records []*models.CustomerRecord, writer io.Writer) error {
	var withVariance []*models.CustomerRecord
	for _, rec := range records {
		if !rec.Variance.IsZero() {
			withVariance = append(withVariance, rec)
		}
	}
	sort.SliceStable(withVariance, func(i, j int) bool {
		return withVariance[i].Variance.Abs().GreaterThan(withVariance[j].Variance.Abs())
	})

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Customer\tName\tBalance\tPurpose total\tUnclassified\tVariance\t\n")
	for i, rec := range withVariance {
		if rg.config.MaxConsoleRows > 0 && i >= rg.config.MaxConsoleRows {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			rec.CustomerKey,
			rec.CustomerName,
			rec.Balance.StringFixed(2),
			rec.PurposeTotal.StringFixed(2),
			rec.Unclassified.StringFixed(2),
			rec.Variance.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if rg.config.MaxConsoleRows > 0 && len(withVariance) > rg.config.MaxConsoleRows {
		fmt.Fprintf(writer, "... and %d more\n", len(withVariance)-rg.config.MaxConsoleRows)
	}
	return nil
}

// tableJSON is the JSON form of a table
type tableJSON struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func toTableJSON(t *table.Table) tableJSON {
	rows := t.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return tableJSON{Name: t.Name, Columns: t.Columns, Rows: rows}
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":             result.RunID,
		"started_at":         result.StartedAt,
		"finished_at":        result.FinishedAt,
		"summary":            result.Summary(),
		"collateral_mapping": result.CollateralMapping,
		"purpose_mapping":    result.PurposeMapping,
		"customers":          toTableJSON(result.CustomerTable()),
	}
	if len(result.Sources) > 0 {
		output["sources"] = result.Sources
	}
	if rg.config.IncludeWarnings {
		output["warnings"] = result.Warnings
	}
	if rg.config.IncludeAuditTables {
		audit := make([]tableJSON, 0)
		for _, t := range result.AuditTables() {
			audit = append(audit, toTableJSON(t))
		}
		output["audit_tables"] = audit
	}
	return output
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	customers := result.CustomerTable()
	if err := csvWriter.Write(customers.Columns); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i, row := range customers.Rows {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write customer row %d: %w", i+1, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
