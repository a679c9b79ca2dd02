// Package flags derives the audit risk flags of the reconciled customer table.
//
// Every rule reads the finished customer records plus the typed ledgers
// and zero or more optional inputs. A rule whose input is missing leaves
// its flag lowered for every customer.
package flags

import (
	"time"

	"golang.org/x/text/cases"

	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

var fold = cases.Fold()

// Inputs are the typed tables the rules read. Optional inputs carry an
// availability bit; a false bit lowers the dependent flag for everyone.
type Inputs struct {
	Collateral *ledger.CollateralLedger
	Purpose    *ledger.PurposeLedger

	CashContracts    map[string]bool
	HasCashContracts bool

	Assets    []models.AssetLocation
	HasAssets bool

	Settlements      []models.Event
	HasSettlements   bool
	Disbursements    []models.Event
	HasDisbursements bool

	Delays    []models.DelayRecord
	HasDelays bool
}

// Params are the per-run scalars the rules depend on
type Params struct {
	EvaluationDate time.Time
	HomeProvinces  []string
}

// Detail holds the intermediate tables the rules produce for the audit trail
type Detail struct {
	Valuations    []ValuationRow
	MatchedAssets []AssetMatch
	EventLog      []models.Event
	EventCounts   []EventCount
	Delays        []models.DelayRecord
}

// Engine applies the flag rules in a fixed order
type Engine struct {
	config Config
	rules  []rule
	logger logger.Logger
}

type rule struct {
	name  string
	apply func(*run)
}

// run is the state shared by the rules of one Apply call
type run struct {
	config  Config
	records []*models.CustomerRecord
	byKey   map[string]*models.CustomerRecord
	in      Inputs
	params  Params
	diag    *errors.Collector
	detail  *Detail
	logger  logger.Logger
}

// NewEngine creates an engine with the given rule parameters
func NewEngine(config Config) *Engine {
	e := &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("flags"),
	}
	e.rules = []rule{
		{name: "debt group", apply: debtGroupRule},
		{name: "senior approval", apply: seniorApprovalRule},
		{name: "restructuring", apply: restructuringRule},
		{name: "cash disbursement", apply: cashDisbursementRule},
		{name: "pledged elsewhere", apply: pledgedElsewhereRule},
		{name: "top exposure", apply: topExposureRule},
		{name: "overdue valuation", apply: overdueValuationRule},
		{name: "off territory", apply: offTerritoryRule},
		{name: "same-day events", apply: sameDayEventsRule},
		{name: "late repayment", apply: lateRepaymentRule},
	}
	return e
}

// Apply raises flags on records and returns the audit detail. Records
// must be fully reconciled; the rules read their balances and debt groups.
func (e *Engine) Apply(records []*models.CustomerRecord, in Inputs, params Params, diag *errors.Collector) *Detail {
	r := &run{
		config:  e.config,
		records: records,
		byKey:   make(map[string]*models.CustomerRecord, len(records)),
		in:      in,
		params:  params,
		diag:    diag,
		detail:  &Detail{},
		logger:  e.logger,
	}
	for _, rec := range records {
		r.byKey[rec.CustomerKey] = rec
	}

	for _, rl := range e.rules {
		before := r.raised()
		rl.apply(r)
		e.logger.WithFields(logger.Fields{
			"rule":    rl.name,
			"flagged": r.raised() - before,
		}).Debug("Rule applied")
	}
	return r.detail
}

// raise sets f on the customer if the key belongs to the reconciled table
func (r *run) raise(key string, f models.Flag) {
	if rec, ok := r.byKey[key]; ok {
		rec.Raise(f)
	}
}

func (r *run) raised() int {
	n := 0
	for _, rec := range r.records {
		n += len(rec.Flags)
	}
	return n
}

func (r *run) collateralRows() []models.CollateralRow {
	if r.in.Collateral == nil {
		return nil
	}
	return r.in.Collateral.Rows
}

func (r *run) purposeRows() []models.PurposeRow {
	if r.in.Purpose == nil {
		return nil
	}
	return r.in.Purpose.Rows
}

func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[fold.String(v)] = true
	}
	return set
}
