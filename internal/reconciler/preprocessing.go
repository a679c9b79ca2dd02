package reconciler

import (
	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
)

// Ledger names used in messages and exported sheets
const (
	CollateralLedgerName = "collateral ledger"
	PurposeLedgerName    = "purpose ledger"
)

// Preprocessor filters the primary ledgers by branch and extracts typed rows
type Preprocessor struct {
	config RunConfig
	diag   *errors.Collector
}

// NewPreprocessor creates a preprocessor for one run
func NewPreprocessor(config RunConfig, diag *errors.Collector) *Preprocessor {
	return &Preprocessor{config: config, diag: diag}
}

// filter applies the branch filter and fails when nothing is left
func (p *Preprocessor) filter(t *table.Table, name, branchColumn string) (*table.Table, error) {
	if t.Len() == 0 {
		return nil, errors.EmptyLedgerError(name, "")
	}
	filtered := ledger.FilterBranch(t, branchColumn, p.config.BranchFilter, p.diag)
	if filtered.Len() == 0 {
		return nil, errors.EmptyLedgerError(name, p.config.BranchFilter)
	}
	return filtered, nil
}

// Collateral filters and extracts the collateral ledger
func (p *Preprocessor) Collateral(t *table.Table) (*ledger.CollateralLedger, error) {
	filtered, err := p.filter(t, CollateralLedgerName, p.config.Layout.Collateral.Branch)
	if err != nil {
		return nil, err
	}
	return ledger.ExtractCollateral(named(filtered, CollateralLedgerName), p.config.Layout.Collateral, p.diag)
}

// Purpose filters and extracts the purpose ledger
func (p *Preprocessor) Purpose(t *table.Table) (*ledger.PurposeLedger, error) {
	filtered, err := p.filter(t, PurposeLedgerName, p.config.Layout.Purpose.Branch)
	if err != nil {
		return nil, err
	}
	return ledger.ExtractPurpose(named(filtered, PurposeLedgerName), p.config.Layout.Purpose, p.diag)
}

// named gives an unnamed table the ledger's name so schema errors identify it
func named(t *table.Table, name string) *table.Table {
	if t.Name == "" {
		t.Name = name
	}
	return t
}
