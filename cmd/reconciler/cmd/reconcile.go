package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"credit-exposure-reconciler/cmd/reconciler/config"
	"credit-exposure-reconciler/internal/parsers"
	"credit-exposure-reconciler/internal/reconciler"
	"credit-exposure-reconciler/internal/reporter"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// maxParallelInputs bounds how many input tables are read at once
const maxParallelInputs = 4

func newReconcileCmd(v *viper.Viper) *cobra.Command {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the collateral ledger with the loan-purpose ledger",
		Long: `Reconcile classifies every customer's outstanding balance by collateral
type and by loan purpose, compares the two ledgers and raises the risk flags.

This command requires:
- One or more collateral-allocated ledger files (CRM4)
- One or more loan-purpose ledger files (CRM32)

Code tables and the auxiliary inputs are optional; each missing one is
reported as a warning and the rules that need it are skipped. Every input
accepts .xlsx, .xlsm and .csv files, or http(s) URLs of them.

Examples:
  # Basic reconciliation
  reconciler reconcile --collateral crm4_a.xlsx,crm4_b.xlsx --purpose crm32.xlsx \
    --collateral-codes codes_crm4.xlsx --purpose-codes codes_crm32.xlsx

  # One branch, fixed evaluation date, workbook output
  reconciler reconcile --collateral crm4.xlsx --purpose crm32.xlsx \
    --branch HANOI --evaluation-date 2025-08-31 \
    --output-format xlsx --output-file result.xlsx

  # Risk rules with their auxiliary inputs
  reconciler reconcile --collateral crm4.xlsx --purpose crm32.xlsx \
    --cash-disbursements cash.xlsx --asset-locations locations.xlsx \
    --settlements settle.xlsx --disbursements disb.xlsx --delays delays.xlsx \
    --home-provinces "Ha Noi,Hai Phong"`,

		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateReconcileFlags(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, v)
		},
	}

	flags := reconcileCmd.Flags()

	// Inputs
	flags.StringSlice("collateral", nil, "collateral-allocated ledger files (required)")
	flags.StringSlice("purpose", nil, "loan-purpose ledger files (required)")
	flags.StringSlice("collateral-codes", nil, "collateral code table")
	flags.StringSlice("purpose-codes", nil, "loan-purpose code table")
	flags.StringSlice("cash-disbursements", nil, "cash disbursement records")
	flags.StringSlice("asset-locations", nil, "collateral location records")
	flags.StringSlice("settlements", nil, "settlement records")
	flags.StringSlice("disbursements", nil, "disbursement records")
	flags.StringSlice("delays", nil, "payment delay records")

	// Run settings
	flags.String("branch", "", "keep only rows whose branch code contains this text")
	flags.String("evaluation-date", "", "evaluation date, YYYY-MM-DD (default 2025-08-31)")
	flags.StringSlice("home-provinces", nil, "provinces considered local for the out-of-area rule")
	flags.Int("max-warnings", reconciler.DefaultRunConfig().MaxWarnings, "cap on recorded warnings, 0 for no cap")

	// Readers
	flags.String("sheet", "", "worksheet to read from workbook inputs (default: first sheet)")
	flags.Duration("fetch-timeout", parsers.DefaultParseConfig().FetchTimeout, "timeout for inputs given as URLs")

	// Output
	flags.StringP("output-format", "f", string(reporter.FormatConsole), "output format: console, json, csv, xlsx")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")
	flags.Bool("progress", false, "show progress indicators")

	_ = v.BindPFlags(flags)

	return reconcileCmd
}

func validateReconcileFlags(v *viper.Viper) error {
	inputs := config.InputFilesFrom(v)
	if err := inputs.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "inputs", err.Error(), err).
			WithSuggestion("pass --collateral and --purpose")
	}

	var err error
	for _, named := range inputs.Named() {
		for _, path := range named.Paths {
			if parsers.IsRemote(path) {
				continue
			}
			err = multierr.Append(err, validateFileExists(path, named.Name+" file"))
		}
	}
	if err != nil {
		return err
	}

	format := reporter.OutputFormat(strings.ToLower(v.GetString("output-format")))
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format,
			fmt.Errorf("invalid output format '%s'", format)).
			WithSuggestion("use one of: console, json, csv, xlsx")
	}

	outputFile := v.GetString("output-file")
	if format.IsBinary() && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil,
			fmt.Errorf("%s output must be written to a file", format)).
			WithSuggestion("pass --output-file")
	}
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return errors.FileError(errors.CodeFileNotFound, dir, statErr).
				WithSuggestion("create the output directory first")
		}
	}

	if v.GetInt("max-warnings") < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max-warnings", v.GetInt("max-warnings"),
			fmt.Errorf("max warnings cannot be negative"))
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil,
			fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()
	verbose := v.GetBool("verbose")

	runConfig, err := config.CreateRunConfig(v)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(v.GetString("output-format"))
	if err != nil {
		return err
	}

	logConfig, err := config.CreateLoggerConfig(verbose, v.GetString("log-format"))
	if err != nil {
		return err
	}
	if logFile := v.GetString("log-file"); logFile != "" {
		logConfig.Output = logger.FileOutput
		logConfig.File = logFile
	} else {
		logConfig.Writer = stderr
	}
	runLog := logger.NewRunLog(logger.InfoLevel)
	log, err := logger.NewWithHooks(logConfig, runLog)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log-file", v.GetString("log-file"), err)
	}
	logger.SetGlobalLogger(log)

	inputs := config.InputFilesFrom(v)
	if verbose {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		for _, named := range inputs.Named() {
			if len(named.Paths) > 0 {
				fmt.Fprintf(stderr, "%s: %s\n", named.Name, strings.Join(named.Paths, ", "))
			}
		}
		fmt.Fprintf(stderr, "Output format: %s\n", reportConfig.Format)
	}

	parser, err := parsers.NewParser(config.CreateParseConfig(v))
	if err != nil {
		return err
	}
	in, err := readInputs(ctx, parser, inputs)
	if err != nil {
		return err
	}

	pipeline, err := reconciler.NewPipeline(runConfig)
	if err != nil {
		return err
	}
	pipeline.WithRunLog(runLog)

	showProgress := v.GetBool("progress")
	if showProgress {
		pipeline.AddProgressCallback(func(progress *reconciler.Progress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := pipeline.Run(ctx, in)
	if showProgress {
		fmt.Fprintf(stderr, "\n")
	}
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if outputFile := v.GetString("output-file"); outputFile != "" {
		written, err := generator.WriteReportFile(result, outputFile)
		if err != nil {
			return err
		}
		if written != outputFile {
			fmt.Fprintf(stderr, "Could not write %s, report saved to %s\n", outputFile, written)
		}
	} else if err := generator.GenerateReportSafely(result, cmd.OutOrStdout()); err != nil {
		return err
	}

	if verbose {
		summary := result.Summary()
		fmt.Fprintf(stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(stderr, "Reconciled %d customers, %d with a variance.\n",
			summary.Customers, summary.WithVariance)
		fmt.Fprintf(stderr, "%d collateral only, %d purpose only.\n",
			summary.CollateralOnly, summary.PurposeOnly)
		if summary.Warnings > 0 {
			fmt.Fprintf(stderr, "Recorded %d warnings.\n", summary.Warnings)
		}
		fmt.Fprintf(stderr, "Processing time: %v\n", result.FinishedAt.Sub(result.StartedAt))
	}

	return nil
}

// readInputs reads every supplied input table concurrently. The first
// failure cancels the remaining reads.
func readInputs(ctx context.Context, parser *parsers.Parser, files config.InputFiles) (reconciler.Inputs, error) {
	in := reconciler.Inputs{Sources: files.Sources()}
	targets := map[string]**table.Table{
		config.InputCollateral:        &in.Collateral,
		config.InputPurpose:           &in.Purpose,
		config.InputCollateralCodes:   &in.CollateralCodes,
		config.InputPurposeCodes:      &in.PurposeCodes,
		config.InputCashDisbursements: &in.CashDisbursements,
		config.InputAssetLocations:    &in.AssetLocations,
		config.InputSettlements:       &in.Settlements,
		config.InputDisbursements:     &in.Disbursements,
		config.InputDelays:            &in.Delays,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(maxParallelInputs)
	for _, named := range files.Named() {
		if len(named.Paths) == 0 {
			continue
		}
		named, target := named, targets[named.Name]
		p.Go(func(ctx context.Context) error {
			t, err := parser.ParseFiles(ctx, named.Name, named.Paths)
			if err != nil {
				return err
			}
			*target = t
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return reconciler.Inputs{}, err
	}
	return in, nil
}
