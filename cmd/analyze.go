/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines"
	"github.com/fulmenhq/codescore/internal/gate"
	"github.com/fulmenhq/codescore/internal/gitrev"
	"github.com/fulmenhq/codescore/pkg/config"
	"github.com/fulmenhq/codescore/pkg/exitcode"
	"github.com/fulmenhq/codescore/pkg/logger"
	"github.com/fulmenhq/codescore/pkg/safeio"
)

type analyzeOptions struct {
	filename     string
	format       string
	output       string
	project      string
	against      string
	againstRev   string
	configFile   string
	gate         bool
	policyFile   string
	taskTimeout  time.Duration
	stageTimeout time.Duration
	offline      bool
}

// analyzeDeps lets tests swap the outside world used by analyze.
var analyzeDeps = engines.Deps{}

func newAnalyzeCommand() *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Analyze one source file and print a scored report",
		Long: `Analyze runs every engine (lint, style, security, complexity, redundancy,
formatting) over a single file and prints the merged report with its score.
Use "-" to read the code from stdin; --filename then supplies the name used
for language detection.`,
		Example: `  codescore analyze main.go
  codescore analyze app.ts --format html --output report.html
  codescore analyze service.py --project . --format json
  codescore analyze main.go --against previous.json
  codescore analyze main.go --against-rev origin/main --gate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.filename, "filename", "", "Name used for language detection (defaults to the file path)")
	f.StringVar(&o.format, "format", "markdown", "Output format (json, yaml, markdown, html, checkstyle)")
	f.StringVarP(&o.output, "output", "o", "", "Output file (default: stdout)")
	f.StringVar(&o.project, "project", "", "Project directory whose dependency manifests are checked for known vulnerabilities")
	f.StringVar(&o.against, "against", "", "Earlier JSON report to diff against")
	f.StringVar(&o.againstRev, "against-rev", "", "Git revision whose copy of the file is analyzed and diffed against")
	f.StringVar(&o.configFile, "config", "", "Config file (default: codescore.yaml in ., $HOME or ~/.codescore/config)")
	f.BoolVar(&o.gate, "gate", false, "Evaluate the quality gate and exit 3 when it fails")
	f.StringVar(&o.policyFile, "policy", "", "Rego policy for the quality gate (overrides gate.policy_file)")
	f.DurationVar(&o.taskTimeout, "timeout", 0, "Per-engine timeout (overrides analysis.task_timeout)")
	f.DurationVar(&o.stageTimeout, "stage-timeout", 0, "Overall timeout (overrides analysis.stage_timeout)")
	f.BoolVar(&o.offline, "offline", false, "Use only the bundled vulnerability dataset")
	cmd.MarkFlagsMutuallyExclusive("against", "against-rev")
	return cmd
}

func runAnalyze(cmd *cobra.Command, target string, o *analyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Default().Named("analyze")

	format, err := assess.ParseFormat(o.format)
	if err != nil {
		return exitcode.Wrap(exitcode.InvalidInput, err)
	}
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigError, err)
	}
	if o.taskTimeout > 0 {
		cfg.Analysis.TaskTimeout = o.taskTimeout
	}
	if o.stageTimeout > 0 {
		cfg.Analysis.StageTimeout = o.stageTimeout
	}
	if o.offline {
		cfg.Security.VulnDB.OfflineOnly = true
	}

	code, filename, err := readSource(cmd.InOrStdin(), target, o.filename)
	if err != nil {
		return exitcode.Wrap(exitcode.FileSystemError, err)
	}

	deps := analyzeDeps
	deps.Logger = log
	built, err := engines.DefaultRegistry(*cfg, deps)
	if err != nil {
		return err
	}
	analyzer := assess.NewAnalyzer(built.Registry,
		assess.WithLogger(log),
		assess.WithWeights(weightsFromConfig(cfg.Scoring.Weights)),
		assess.WithTimeouts(cfg.Analysis.TaskTimeout, cfg.Analysis.StageTimeout),
		assess.WithCache(built.Cache),
	)

	opts := assess.Options{Filename: filename, ExternalProjectPath: o.project}
	switch {
	case o.against != "":
		prev, err := assess.LoadReport(o.against)
		if err != nil {
			return exitcode.Wrap(exitcode.FileSystemError, err)
		}
		opts.DiffAgainst = prev
	case o.againstRev != "":
		if target == "-" {
			return exitcode.Wrap(exitcode.InvalidInput, errors.New("--against-rev needs a file path, not stdin"))
		}
		snap, err := gitrev.ReadFile(target, o.againstRev)
		if err != nil {
			return exitcode.Wrap(exitcode.InvalidInput, err)
		}
		log.Debug("Analyzing historical copy", logger.String("path", snap.Path), logger.String("commit", snap.Commit))
		prev, err := analyzer.Analyze(ctx, snap.Contents, assess.Options{Filename: filename, ExternalProjectPath: o.project})
		if err != nil {
			return exitcode.Wrap(exitcode.InvalidInput, fmt.Errorf("revision %s: %w", o.againstRev, err))
		}
		opts.DiffAgainst = prev
	}

	report, err := analyzer.Analyze(ctx, code, opts)
	if err != nil {
		if errors.Is(err, assess.ErrInvalidInput) {
			return exitcode.Wrap(exitcode.InvalidInput, err)
		}
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), o.output, report, format); err != nil {
		return err
	}

	if !o.gate {
		return nil
	}
	policy := cfg.Gate.PolicyFile
	if o.policyFile != "" {
		policy = o.policyFile
	}
	g, err := gate.New(ctx, policy, gate.Thresholds{MinScore: cfg.Gate.MinScore, MaxSecurityErrors: cfg.Gate.MaxSecurityErrors})
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigError, err)
	}
	res, err := g.Evaluate(ctx, report)
	if err != nil {
		return err
	}
	if res.Passed {
		log.Info("Quality gate passed", logger.Float("score", report.Snapshot.Score()))
		return nil
	}
	errOut := cmd.ErrOrStderr()
	_, _ = fmt.Fprintln(errOut, "Quality gate failed:")
	for _, v := range res.Violations {
		_, _ = fmt.Fprintf(errOut, "  - %s\n", v)
	}
	return &exitcode.Error{Code: exitcode.GateFailed}
}

// readSource loads the code to analyze from target, or stdin for "-".
func readSource(stdin io.Reader, target, filename string) (string, string, error) {
	if target == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), filename, nil
	}
	data, err := os.ReadFile(filepath.Clean(target))
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	if filename == "" {
		filename = target
	}
	return string(data), filename, nil
}

func writeReport(stdout io.Writer, output string, report *assess.Report, format assess.OutputFormat) error {
	if output == "" {
		return assess.Render(stdout, report, format)
	}
	var buf bytes.Buffer
	if err := assess.Render(&buf, report, format); err != nil {
		return err
	}
	if err := safeio.WriteFilePreservePerms(output, buf.Bytes()); err != nil {
		return exitcode.Wrap(exitcode.FileSystemError, fmt.Errorf("failed to write report: %w", err))
	}
	logger.Info("Report written", logger.String("path", output), logger.String("format", string(format)))
	return nil
}

func weightsFromConfig(w config.WeightsConfig) assess.Weights {
	return assess.Weights{
		Bug:        w.Bug,
		Security:   w.Security,
		Complexity: w.Complexity,
		Redundancy: w.Redundancy,
		Style:      w.Style,
	}
}
