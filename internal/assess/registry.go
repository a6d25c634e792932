package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/codescore/internal/language"
)

// IssueEngine finds bug, style or security issues in source text.
type IssueEngine interface {
	Analyze(ctx context.Context, code string, lang language.Language) ([]Issue, error)
}

// ComplexityEngine measures per-function complexity.
type ComplexityEngine interface {
	Measure(ctx context.Context, code string, lang language.Language) (ComplexityResult, error)
}

// RedundancyEngine finds functions with identical bodies.
type RedundancyEngine interface {
	FindDuplicates(ctx context.Context, code string, lang language.Language) (RedundancyResult, error)
}

// FormattingEngine produces the canonical formatting of source text.
type FormattingEngine interface {
	Format(ctx context.Context, code string, lang language.Language) (FormattingResult, error)
}

// DependencyScanner reports vulnerable dependencies of a project directory.
type DependencyScanner interface {
	Scan(ctx context.Context, projectPath string) ([]Issue, error)
}

// IssueEngineFunc adapts a function to IssueEngine.
type IssueEngineFunc func(ctx context.Context, code string, lang language.Language) ([]Issue, error)

func (f IssueEngineFunc) Analyze(ctx context.Context, code string, lang language.Language) ([]Issue, error) {
	return f(ctx, code, lang)
}

// Input is what every registered engine receives for one run.
type Input struct {
	Code        string
	Language    language.Language
	ProjectPath string
}

type registryEntry struct {
	label string
	// needsProject entries are only scheduled when Input.ProjectPath is set.
	needsProject bool
	invoke       func(ctx context.Context, in Input) (any, error)
}

// Registry maps stage labels to engines. Entries run in registration order.
type Registry struct {
	entries []registryEntry
	labels  map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{labels: map[string]bool{}}
}

func (r *Registry) add(e registryEntry) error {
	e.label = strings.TrimSpace(e.label)
	if e.label == "" {
		return fmt.Errorf("engine label must not be empty")
	}
	if r.labels[e.label] {
		return fmt.Errorf("engine %q already registered", e.label)
	}
	r.labels[e.label] = true
	r.entries = append(r.entries, e)
	return nil
}

// RegisterIssues adds an issue-producing engine. Labels prefixed with
// "security." are treated as security findings by Aggregate.
func (r *Registry) RegisterIssues(label string, e IssueEngine) error {
	return r.add(registryEntry{label: label, invoke: func(ctx context.Context, in Input) (any, error) {
		issues, err := e.Analyze(ctx, in.Code, in.Language)
		if err != nil {
			return nil, err
		}
		return issues, nil
	}})
}

func (r *Registry) RegisterComplexity(label string, e ComplexityEngine) error {
	return r.add(registryEntry{label: label, invoke: func(ctx context.Context, in Input) (any, error) {
		res, err := e.Measure(ctx, in.Code, in.Language)
		if err != nil {
			return nil, err
		}
		return res, nil
	}})
}

func (r *Registry) RegisterRedundancy(label string, e RedundancyEngine) error {
	return r.add(registryEntry{label: label, invoke: func(ctx context.Context, in Input) (any, error) {
		res, err := e.FindDuplicates(ctx, in.Code, in.Language)
		if err != nil {
			return nil, err
		}
		return res, nil
	}})
}

func (r *Registry) RegisterFormatting(label string, e FormattingEngine) error {
	return r.add(registryEntry{label: label, invoke: func(ctx context.Context, in Input) (any, error) {
		res, err := e.Format(ctx, in.Code, in.Language)
		if err != nil {
			return nil, err
		}
		return res, nil
	}})
}

// RegisterDependencies adds a scanner that only runs when a project path is given.
func (r *Registry) RegisterDependencies(label string, s DependencyScanner) error {
	return r.add(registryEntry{label: label, needsProject: true, invoke: func(ctx context.Context, in Input) (any, error) {
		issues, err := s.Scan(ctx, in.ProjectPath)
		if err != nil {
			return nil, err
		}
		return issues, nil
	}})
}

// Labels returns the registered labels in order.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.label
	}
	return out
}

// Schedule registers one task per applicable engine on s.
func (r *Registry) Schedule(s *Scheduler, in Input) {
	for _, e := range r.entries {
		if e.needsProject && in.ProjectPath == "" {
			continue
		}
		invoke := e.invoke
		s.Register(e.label, func(ctx context.Context) (any, error) { return invoke(ctx, in) })
	}
}
