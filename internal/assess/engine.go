/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/buildinfo"
	"github.com/fulmenhq/codescore/pkg/logger"
)

// Resettable is state an Analyzer owns across runs, such as a lookup cache.
type Resettable interface {
	Clear()
}

// Options tunes a single Analyze call. Zero values select defaults.
type Options struct {
	Filename            string
	Weights             *Weights
	ExternalProjectPath string
	Timeout             time.Duration // per task
	StageTimeout        time.Duration
	DiffAgainst         *Report
}

// Analyzer runs the analysis pipeline: classify, schedule engines,
// aggregate, score and optionally diff against an earlier report.
type Analyzer struct {
	registry     *Registry
	weights      Weights
	taskTimeout  time.Duration
	stageTimeout time.Duration
	concurrency  int
	caches       []Resettable
	log          *logger.Logger
	now          func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

func WithLogger(l *logger.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

func WithWeights(w Weights) AnalyzerOption { return func(a *Analyzer) { a.weights = w } }

func WithTimeouts(task, stage time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.taskTimeout = task
		a.stageTimeout = stage
	}
}

func WithConcurrency(n int) AnalyzerOption { return func(a *Analyzer) { a.concurrency = n } }

// WithCache hands the Analyzer ownership of c; ClearCaches resets it.
func WithCache(c Resettable) AnalyzerOption {
	return func(a *Analyzer) {
		if c != nil {
			a.caches = append(a.caches, c)
		}
	}
}

func WithClock(now func() time.Time) AnalyzerOption { return func(a *Analyzer) { a.now = now } }

// NewAnalyzer creates an Analyzer over the engines in reg.
func NewAnalyzer(reg *Registry, opts ...AnalyzerOption) *Analyzer {
	if reg == nil {
		reg = NewRegistry()
	}
	a := &Analyzer{
		registry:     reg,
		weights:      DefaultWeights(),
		taskTimeout:  DefaultTaskTimeout,
		stageTimeout: DefaultStageTimeout,
		log:          logger.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClearCaches resets every cache the Analyzer owns.
func (a *Analyzer) ClearCaches() {
	for _, c := range a.caches {
		c.Clear()
	}
}

func (a *Analyzer) validate(code string, opts Options) error {
	if !utf8.ValidString(code) {
		return &InputError{Field: "code", Reason: "not valid UTF-8 text"}
	}
	if opts.Weights != nil {
		if err := opts.Weights.Validate(); err != nil {
			return err
		}
	}
	if opts.Timeout < 0 {
		return &InputError{Field: "timeout", Reason: "must not be negative"}
	}
	if opts.StageTimeout < 0 {
		return &InputError{Field: "stage_timeout", Reason: "must not be negative"}
	}
	return nil
}

// Analyze runs every registered engine over code and returns the report.
// The only error it returns is an *InputError; engine faults, timeouts and
// unavailable tools are folded into the report.
func (a *Analyzer) Analyze(ctx context.Context, code string, opts Options) (*Report, error) {
	if err := a.validate(code, opts); err != nil {
		return nil, err
	}
	start := a.now()

	weights := a.weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	taskTimeout := firstPositive(opts.Timeout, a.taskTimeout)
	stageTimeout := firstPositive(opts.StageTimeout, a.stageTimeout)

	detection := language.Classify(code, opts.Filename)
	log := a.log.Named("analyze")
	log.Info("Starting analysis",
		logger.String("filename", opts.Filename),
		logger.String("language", string(detection.Language)),
		logger.String("method", string(detection.Method)),
		logger.Float("confidence", detection.Confidence))

	var outcomes []StageOutcome
	if strings.TrimSpace(code) != "" {
		sched := NewScheduler(log)
		sched.SetConcurrency(a.concurrency)
		a.registry.Schedule(sched, Input{Code: code, Language: detection.Language, ProjectPath: opts.ExternalProjectPath})
		outcomes = sched.Run(ctx, taskTimeout, stageTimeout)
	}

	agg := Aggregate(outcomes)
	all := agg.AllIssues()
	breakdown := Score(all, weights)

	report := &Report{
		RunID:            uuid.NewString(),
		Tool:             "codescore",
		Version:          buildinfo.ModuleVersion(),
		GeneratedAt:      start.UTC(),
		Filename:         opts.Filename,
		Detection:        detection,
		AggregatedReport: agg,
		Score:            breakdown,
		Snapshot:         NewSnapshot(start, breakdown.Score, len(all)),
		Stages:           summarizeStages(outcomes),
	}
	if opts.DiffAgainst != nil {
		d := DiffReports(opts.DiffAgainst, report)
		report.Diff = &d
	}

	log.Info("Analysis complete",
		logger.Float("score", report.Snapshot.Score()),
		logger.Int("issues", len(all)),
		logger.Duration("elapsed", a.now().Sub(start)))
	return report, nil
}

func firstPositive(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}

func summarizeStages(outcomes []StageOutcome) []StageSummary {
	out := make([]StageSummary, 0, len(outcomes))
	for _, o := range outcomes {
		s := StageSummary{Label: o.Label, Status: o.Status, DurationMs: o.DurationMs()}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		out = append(out, s)
	}
	return out
}
