package parsers

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// ParseFiles reads several files concurrently and stacks them into one
// table in the order given. Any failing file fails the whole read.
// An empty path list yields a nil table, which downstream stages treat as
// an input that was not supplied.
func (p *Parser) ParseFiles(ctx context.Context, name string, paths []string) (*table.Table, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	mapper := iter.Mapper[string, *table.Table]{MaxGoroutines: p.config.MaxConcurrency}
	tables, err := mapper.MapErr(paths, func(path *string) (*table.Table, error) {
		return p.Parse(ctx, name, *path)
	})
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryFile, errors.CodeFileCorrupted, "reading "+name+" failed")
	}

	combined := table.Concat(name, tables...)
	p.logger.WithFields(logger.Fields{
		"table": name,
		"files": len(paths),
		"rows":  combined.Len(),
	}).Info("Read input files")
	return combined, nil
}
