/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package gate decides whether an analysis report passes a Rego policy.
package gate

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/fulmenhq/codescore/internal/assess"
)

// Query is the rule every gate policy defines: a set of violation messages.
const Query = "data.codescore.gate.deny"

//go:embed policy/default.rego
var defaultPolicy string

// Thresholds are exposed to the policy as input.thresholds.
type Thresholds struct {
	MinScore          float64
	MaxSecurityErrors int
}

// Result is the gate verdict.
type Result struct {
	Passed     bool     `json:"passed" yaml:"passed"`
	Violations []string `json:"violations" yaml:"violations"`
}

// Gate evaluates a prepared policy.
type Gate struct {
	query      rego.PreparedEvalQuery
	thresholds Thresholds
}

// New prepares the policy in policyFile, or the built-in policy when
// policyFile is empty.
func New(ctx context.Context, policyFile string, t Thresholds) (*Gate, error) {
	name, src := "default.rego", defaultPolicy
	if policyFile != "" {
		abs, err := filepath.Abs(filepath.Clean(policyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve policy path: %w", err)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		name, src = filepath.Base(abs), string(data)
	}

	q, err := rego.New(
		rego.Query(Query),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile gate policy: %w", err)
	}
	return &Gate{query: q, thresholds: t}, nil
}

// Evaluate runs the policy against rep.
func (g *Gate) Evaluate(ctx context.Context, rep *assess.Report) (Result, error) {
	rs, err := g.query.Eval(ctx, rego.EvalInput(g.input(rep)))
	if err != nil {
		return Result{}, fmt.Errorf("gate evaluation failed: %w", err)
	}

	res := Result{Violations: []string{}}
	for _, r := range rs {
		for _, expr := range r.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				return Result{}, fmt.Errorf("%s must be a set of strings, got %T", Query, expr.Value)
			}
			for _, v := range values {
				res.Violations = append(res.Violations, fmt.Sprint(v))
			}
		}
	}
	sort.Strings(res.Violations)
	res.Passed = len(res.Violations) == 0
	return res, nil
}

func (g *Gate) input(rep *assess.Report) map[string]interface{} {
	severities := func(issues []assess.Issue) map[string]interface{} {
		out := map[string]interface{}{}
		for _, s := range []assess.Severity{assess.SeverityError, assess.SeverityWarning, assess.SeverityInfo} {
			out[string(s)] = 0
		}
		for _, i := range issues {
			bump(out, string(i.Severity))
		}
		return out
	}
	categories := map[string]interface{}{}
	for _, c := range assess.Categories {
		categories[string(c)] = 0
	}
	all := rep.AllIssues()
	for _, i := range all {
		bump(categories, string(i.Category))
	}

	return map[string]interface{}{
		"filename":   rep.Filename,
		"language":   string(rep.Detection.Language),
		"score":      rep.Score.Score,
		"issues":     severities(all),
		"security":   severities(rep.SecurityIssues),
		"categories": categories,
		"complexity": map[string]interface{}{
			"max_depth": rep.Complexity.MaxDepth,
			"max":       rep.Complexity.Summary.Max,
		},
		"duplicates": len(rep.Redundancy.Duplicates),
		"thresholds": map[string]interface{}{
			"min_score":           g.thresholds.MinScore,
			"max_security_errors": g.thresholds.MaxSecurityErrors,
		},
	}
}

func bump(m map[string]interface{}, key string) {
	n, _ := m[key].(int)
	m[key] = n + 1
}
