/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fulmenhq/codescore/pkg/buildinfo"
	"github.com/fulmenhq/codescore/pkg/exitcode"
	"github.com/fulmenhq/codescore/pkg/logger"
)

// newRootCommand creates a fresh root command instance so tests get an
// isolated command tree.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescore",
		Short: "Score a source file for bugs, security, complexity, redundancy and style",
		Long: `Codescore analyzes a single source file with a set of independent engines,
merges their findings and computes a quality score between 0 and 1.

Examples:
   codescore analyze main.go                     # Markdown report to stdout
   codescore analyze app.js --format json        # Machine-readable report
   cat snippet | codescore analyze - --filename x.py
   codescore analyze api.go --against-rev HEAD~1 # Compare with a git revision
   codescore analyze app.js --gate               # Exit 3 when the quality gate fails
   codescore diff old.json new.json              # Compare two saved reports`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "warn", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("codescore {{.Version}}\n")
	return cmd
}

// normalizeFlagName accepts config-style spellings such as --stage_timeout.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newDiffCommand())
	cmd.AddCommand(newVersionCommand())
}

var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the CLI and exits with the code the failure maps to.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := exitcode.FromError(err)
	var ce *exitcode.Error
	if !errors.As(err, &ce) || ce.Err != nil {
		logger.Error("Command execution failed", logger.Err(err))
	}
	os.Exit(code)
}

// initializeLogger sets up the default logger from the global flags.
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logger.Initialize(logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "codescore",
	})
}
