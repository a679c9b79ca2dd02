// Package reconciler runs the credit-exposure reconciliation.
//
// The Pipeline coordinates one run end to end:
//   - branch filtering and typed extraction of both ledgers
//   - code-table mapping of collateral categories and purpose groups
//   - per-customer pivots of both ledgers
//   - the outer join with residual redistribution
//   - flag derivation over the finished records
//
// Stages run one after another; each consumes the complete output of the
// previous one. Conditions with a safe default are collected as warnings on
// the Result; only a missing pivot column or an empty primary ledger aborts
// the run.
//
// Example usage:
//
//	pipeline, err := reconciler.NewPipeline(reconciler.DefaultRunConfig())
//	pipeline.AddProgressCallback(func(p *reconciler.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	result, err := pipeline.Run(ctx, inputs)
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"credit-exposure-reconciler/internal/flags"
	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/mapper"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

const totalSteps = 6

// Progress tracks the stages of a run
type Progress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called when a stage starts and when the run completes
type ProgressCallback func(*Progress)

// Pipeline executes reconciliation runs with a fixed configuration
type Pipeline struct {
	config RunConfig
	engine *flags.Engine
	logger logger.Logger
	runLog *logger.RunLog

	progressCallbacks []ProgressCallback
	progress          *Progress
	progressMutex     sync.RWMutex
}

// NewPipeline validates config and creates a pipeline
func NewPipeline(config RunConfig) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("reconciler")
	log.WithFields(logger.Fields{
		"branch_filter":   config.BranchFilter,
		"evaluation_date": formatDate(config.EvaluationDate),
		"home_provinces":  config.HomeProvinces,
	}).Debug("Pipeline created")

	return &Pipeline{
		config:   config,
		engine:   flags.NewEngine(config.Rules),
		logger:   log,
		progress: &Progress{TotalSteps: totalSteps},
	}, nil
}

// AddProgressCallback registers a progress callback
func (p *Pipeline) AddProgressCallback(callback ProgressCallback) {
	p.progressCallbacks = append(p.progressCallbacks, callback)
}

// WithRunLog attaches a run log whose entries are copied onto the result.
// The hook itself must already be installed on the logger.
func (p *Pipeline) WithRunLog(runLog *logger.RunLog) *Pipeline {
	p.runLog = runLog
	return p
}

// Run reconciles one set of inputs
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Config:    p.config,
		Sources:   in.Sources,
	}
	log := p.logger.WithField("run_id", result.RunID)
	diag := errors.NewCollector(p.config.MaxWarnings)

	p.initializeProgress(result.StartedAt)
	log.Info("Starting reconciliation run")

	// Step 1: filter and extract the primary ledgers
	p.updateProgress("Preprocessing ledgers", 0)
	stage := logger.StartStage("preprocess", log)
	pre := NewPreprocessor(p.config, diag)
	collateral, err := pre.Collateral(in.Collateral)
	if err != nil {
		stage.Fail(err)
		return nil, err
	}
	purpose, err := pre.Purpose(in.Purpose)
	if err != nil {
		stage.Fail(err)
		return nil, err
	}
	stage.WithField("collateral_rows", len(collateral.Rows)).
		WithField("purpose_rows", len(purpose.Rows)).Done()
	result.Collateral, result.Purpose = collateral, purpose

	if err := checkCancelled(ctx, "mapping"); err != nil {
		return nil, err
	}

	// Step 2: attach labels from the code tables
	p.updateProgress("Mapping codes", 1)
	stage = logger.StartStage("map", log)
	aux := p.config.Layout.Auxiliary
	result.CollateralMapping = mapper.MapCollateral(collateral,
		mapper.New(in.CollateralCodes, aux.CollateralCodes, mapper.CollateralPolicy, diag), diag)
	result.PurposeMapping = mapper.MapPurpose(purpose,
		mapper.New(in.PurposeCodes, aux.PurposeCodes, mapper.PurposePolicy, diag), diag)
	stage.WithField("collateral_unmapped", result.CollateralMapping.Unmapped).
		WithField("purpose_unmapped", result.PurposeMapping.Unmapped).Done()

	if err := checkCancelled(ctx, "pivot"); err != nil {
		return nil, err
	}

	// Step 3: pivot both ledgers
	p.updateProgress("Building pivots", 2)
	stage = logger.StartStage("pivot", log)
	result.Pivots = BuildPivots(collateral, purpose)
	stage.WithField("collateral_customers", result.Pivots.Collateral.Balance.Len()).
		WithField("purpose_customers", result.Pivots.Purpose.Len()).Done()

	// Step 4: outer join and redistribution
	p.updateProgress("Reconciling", 3)
	stage = logger.StartStage("reconcile", log)
	result.Customers = Reconcile(collateral, purpose, result.Pivots)
	stage.WithField("customers", len(result.Customers)).Done()

	if err := checkCancelled(ctx, "flags"); err != nil {
		return nil, err
	}

	// Step 5: read the optional inputs
	p.updateProgress("Reading auxiliary inputs", 4)
	stage = logger.StartStage("auxiliary", log)
	fin := readAuxiliary(in, aux, diag)
	fin.Collateral, fin.Purpose = collateral, purpose
	stage.Done()

	// Step 6: derive flags on the finished records
	p.updateProgress("Deriving flags", 5)
	stage = logger.StartStage("flags", log)
	result.Detail = p.engine.Apply(result.Customers, fin, flags.Params{
		EvaluationDate: p.config.EvaluationDate,
		HomeProvinces:  p.config.HomeProvinces,
	}, diag)
	stage.Done()

	result.Warnings = diag.Errors()
	result.FinishedAt = time.Now()
	p.updateProgress("Completed", totalSteps)
	log.WithFields(logger.Fields{
		"customers":    len(result.Customers),
		"warnings":     len(result.Warnings),
		"elapsed_time": result.FinishedAt.Sub(result.StartedAt).String(),
	}).Info("Reconciliation run completed")

	if p.runLog != nil {
		result.RunLog = p.runLog.Entries()
	}
	return result, nil
}

func readAuxiliary(in Inputs, aux ledger.AuxiliaryColumns, diag *errors.Collector) flags.Inputs {
	var fin flags.Inputs
	fin.CashContracts, fin.HasCashContracts = ledger.ReadContractIDs(in.CashDisbursements, aux, diag)
	fin.Assets, fin.HasAssets = ledger.ReadAssetLocations(in.AssetLocations, aux, diag)
	fin.Settlements, fin.HasSettlements = ledger.ReadSettlements(in.Settlements, aux, diag)
	fin.Disbursements, fin.HasDisbursements = ledger.ReadDisbursements(in.Disbursements, aux, diag)
	fin.Delays, fin.HasDelays = ledger.ReadDelays(in.Delays, aux, diag)
	return fin
}

func checkCancelled(ctx context.Context, next string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryReconciliation, errors.CodeProcessingError,
			"reconciliation cancelled before "+next).WithContext("stage", next)
	}
	return nil
}

// CurrentProgress returns a copy of the progress of the latest run
func (p *Pipeline) CurrentProgress() Progress {
	p.progressMutex.RLock()
	defer p.progressMutex.RUnlock()
	return *p.progress
}

func (p *Pipeline) initializeProgress(start time.Time) {
	p.progressMutex.Lock()
	defer p.progressMutex.Unlock()

	p.progress = &Progress{
		TotalSteps: totalSteps,
		StartTime:  start,
	}
}

func (p *Pipeline) updateProgress(step string, completed int) {
	p.progressMutex.Lock()
	defer p.progressMutex.Unlock()

	p.progress.CurrentStep = step
	p.progress.CompletedSteps = completed
	p.progress.ElapsedTime = time.Since(p.progress.StartTime)
	p.progress.PercentComplete = float64(completed) / float64(p.progress.TotalSteps) * 100

	for _, callback := range p.progressCallbacks {
		callback(p.progress)
	}
}
