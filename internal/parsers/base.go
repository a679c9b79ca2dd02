// Package parsers reads ledger and code-table files into tables.
//
// Supported inputs:
//   - .xlsx workbooks (first sheet unless configured otherwise)
//   - .csv files, UTF-8 or Windows-1258 encoded
//   - http:// and https:// URLs pointing at either of the above
//
// The first row of every input is the header row. Cells are kept as raw
// strings; numbers and dates are read as stored, without display
// formatting, and typed coercion happens later in the ledger package.
//
// Example usage:
//
//	parser, err := parsers.NewParser(parsers.DefaultParseConfig())
//	collateral, err := parser.ParseFiles(ctx, "collateral", []string{"crm4_a.xlsx", "crm4_b.xlsx"})
package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// Parser reads tabular input files
type Parser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewParser creates a parser with the given configuration
func NewParser(config *ParseConfig) (*Parser, error) {
	if config == nil {
		config = DefaultParseConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parse_config", "", err)
	}

	log := logger.GetGlobalLogger().WithComponent("parser")
	log.WithFields(logger.Fields{
		"sheet":             config.Sheet,
		"delimiter":         string(config.Delimiter),
		"fallback_encoding": config.FallbackEncoding,
		"fetch_timeout":     config.FetchTimeout.String(),
	}).Debug("Created parser")

	return &Parser{config: config, logger: log}, nil
}

// Parse reads one file or URL into a table called name
func (p *Parser) Parse(ctx context.Context, name, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryReconciliation, errors.CodeProcessingError, "reading cancelled").
			WithContext("file_path", path)
	}

	if IsRemote(path) {
		local, cleanup, err := p.fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return p.parseLocal(name, local, path)
	}
	return p.parseLocal(name, path, path)
}

// parseLocal dispatches on the file extension. source is the path reported
// in errors, which differs from path for downloaded files.
func (p *Parser) parseLocal(name, path, source string) (*table.Table, error) {
	log := p.logger.WithFields(logger.Fields{"table": name, "file_path": source})

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = p.readWorkbook(path, source)
	case ".csv", ".txt":
		rows, err = p.readCSV(path, source)
	default:
		err = errors.FileError(errors.CodeUnsupportedFile, source, nil).WithContext("extension", ext)
	}
	if err != nil {
		log.WithError(err).Error("Failed to read input file")
		return nil, err
	}

	t := p.buildTable(name, rows)
	log.WithFields(logger.Fields{
		"columns": len(t.Columns),
		"rows":    t.Len(),
	}).Debug("Read input file")
	return t, nil
}

// buildTable uses the first row as headers. A file without any rows yields
// a table with no columns.
func (p *Parser) buildTable(name string, rows [][]string) *table.Table {
	if len(rows) == 0 {
		return table.New(name, nil, nil)
	}
	t := table.New(name, rows[0], nil)
	for _, row := range rows[1:] {
		if p.config.SkipEmptyRows && isEmptyRecord(row) {
			continue
		}
		t.AddRow(row...)
	}
	return t
}

// openError maps an os error to the matching file error
func openError(path string, err error) *errors.ReconcilerError {
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return errors.FileError(errors.CodeFileCorrupted, path, err)
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
