package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/multierr"

	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer, verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.WithComponent("cli"),
		out:     out,
		verbose: verbose,
	}
}

// HandleError prints err for the user and returns the exit code. When
// err joins several errors each is printed and the highest exit code wins.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	errs := multierr.Errors(err)
	if len(errs) > 1 {
		fmt.Fprintf(h.out, "%s\n", FormatValidationErrors(errs))
	}

	exitCode := 0
	var last *errors.ReconcilerError
	for _, e := range errs {
		code := 0
		if reconcilerErr, ok := errors.AsReconcilerError(e); ok {
			if len(errs) == 1 {
				code = h.handleReconcilerError(reconcilerErr)
			} else {
				code = reconcilerErr.GetExitCode()
			}
			last = reconcilerErr
		} else if len(errs) == 1 {
			code = h.handleGenericError(e)
		} else {
			code = 1
		}
		if code > exitCode {
			exitCode = code
		}
	}

	if h.verbose && last != nil {
		h.SuggestRecoveryActions(last.Category)
	}
	return exitCode
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "Run with --help for usage, or --verbose for more detail\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Inputs must be .xlsx, .xlsm or .csv files, or http(s) URLs of them
• Save legacy .xls workbooks as .xlsx first
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Check the file opens in a spreadsheet program
• The first row of every sheet must hold the column headers
• CSV files should be UTF-8; Windows-1258 is read as a fallback`

	case errors.CategorySchema:
		return `Schema error help:
• Check the sheet holds the export you meant to pass (CRM4 or CRM32)
• Use --sheet when the data is not on the first sheet
• Column names can be remapped in the "layout" section of the config file`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Amounts must be plain numbers without currency symbols
• Dates must be day-first (DD/MM/YYYY), ISO, or spreadsheet dates`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check the ledgers hold rows for the branch given with --branch
• Verify both ledgers come from the same reporting date`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler reconcile --help' for command-specific help`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatValidationErrors formats a list of errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Error: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d errors:", len(errs)))

	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}

	return strings.Join(lines, "\n")
}

// SuggestRecoveryActions suggests actions the user can take to recover from errors
func (h *CLIErrorHandler) SuggestRecoveryActions(category errors.ErrorCategory) {
	fmt.Fprintf(h.out, "\nRecovery suggestions:\n")

	switch category {
	case errors.CategoryFile:
		fmt.Fprintf(h.out, "• Verify file paths and permissions\n")
		fmt.Fprintf(h.out, "• Re-export the ledger from the core banking system\n")
		fmt.Fprintf(h.out, "• Check available disk space\n")

	case errors.CategoryParse, errors.CategorySchema:
		fmt.Fprintf(h.out, "• Open the file and check its header row\n")
		fmt.Fprintf(h.out, "• Remove summary or title rows above the headers\n")

	case errors.CategoryValidation:
		fmt.Fprintf(h.out, "• Correct the invalid data values\n")
		fmt.Fprintf(h.out, "• Check date and amount formats\n")

	case errors.CategoryConfiguration:
		fmt.Fprintf(h.out, "• Review command-line arguments\n")
		fmt.Fprintf(h.out, "• Check configuration file syntax\n")
		fmt.Fprintf(h.out, "• Try with default settings first\n")

	case errors.CategoryReconciliation:
		fmt.Fprintf(h.out, "• Review data quality in input files\n")
		fmt.Fprintf(h.out, "• Widen or drop the branch filter\n")
	}

	fmt.Fprintf(h.out, "• Use --log-format json --log-file run.log to keep a full log\n")
}
