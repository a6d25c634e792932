package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/pkg/exitcode"
)

func newDiffCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two saved JSON reports",
		Long: `Diff reports the score change between two reports written with
--format json, plus the issues that appeared and the issues that were resolved.
Issues are matched by line and message.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := assess.ParseFormat(format)
			if err != nil {
				return exitcode.Wrap(exitcode.InvalidInput, err)
			}
			older, err := assess.LoadReport(args[0])
			if err != nil {
				return exitcode.Wrap(exitcode.FileSystemError, err)
			}
			newer, err := assess.LoadReport(args[1])
			if err != nil {
				return exitcode.Wrap(exitcode.FileSystemError, err)
			}
			return assess.RenderDiff(cmd.OutOrStdout(), assess.DiffReports(older, newer), f)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format (json, yaml, markdown)")
	return cmd
}
