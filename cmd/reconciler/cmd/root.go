package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"credit-exposure-reconciler/pkg/errors"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// newRootCmd builds the command tree around its own viper instance, so
// every invocation starts from clean settings.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Credit exposure reconciliation tool",
		Long: `Reconciler cross-checks a branch's collateral-allocated credit ledger
against its loan-purpose ledger, classifies every customer's outstanding
balance by collateral type and loan purpose, and raises the risk flags the
credit review works from.

Examples:
  reconciler reconcile --collateral crm4_a.xlsx,crm4_b.xlsx --purpose crm32.xlsx \
    --collateral-codes codes_crm4.xlsx --purpose-codes codes_crm32.xlsx
  reconciler reconcile ... --branch HANOI --output-format xlsx --output-file result.xlsx
  reconciler version`,
		Version:       getVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile, cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")

	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(newReconcileCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initConfig reads in config file and ENV variables.
func initConfig(v *viper.Viper, cfgFile string, stderr io.Writer) error {
	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}

	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
			WithSuggestion("check the config file path and its YAML, JSON or TOML syntax")
	}
	if v.GetBool("verbose") {
		fmt.Fprintf(stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reconciler %s\n", getVersionString())
		},
	}
}

// Execute runs the CLI with args and returns the process exit code
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = rootCmd
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	return NewCLIErrorHandler(stderr, verbose).HandleError(err)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
