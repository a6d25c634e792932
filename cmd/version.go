package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/codescore/pkg/buildinfo"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show codescore version",
		RunE:  runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	cmd.Flags().Bool("json", false, "Output version information in JSON format")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	info := map[string]string{
		"version":   buildinfo.BinaryVersion,
		"goVersion": runtime.Version(),
		"platform":  runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
	if mv := buildinfo.ModuleVersion(); mv != "" {
		info["moduleVersion"] = mv
	}

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	_, _ = fmt.Fprintf(out, "codescore %s\n", info["version"])
	if extended {
		_, _ = fmt.Fprintf(out, "Go Version: %s\n", info["goVersion"])
		_, _ = fmt.Fprintf(out, "Platform: %s/%s\n", info["platform"], info["arch"])
		if mv, ok := info["moduleVersion"]; ok {
			_, _ = fmt.Fprintf(out, "Module Version: %s\n", mv)
		}
	}
	return nil
}
