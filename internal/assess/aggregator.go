/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/fulmenhq/codescore/pkg/diff"
)

// Stage labels used by the default registry.
const (
	LabelLint                 = "lint"
	LabelStyle                = "style"
	LabelSecurityHeuristic    = "security.heuristic"
	LabelSecurityStructural   = "security.structural"
	LabelSecurityDependencies = "security.dependencies"
	LabelComplexity           = "complexity"
	LabelRedundancy           = "redundancy"
	LabelFormatting           = "formatting"
)

// IsSecurityLabel reports whether a stage produces security findings.
func IsSecurityLabel(label string) bool {
	return label == "security" || strings.HasPrefix(label, "security.")
}

// isAuthoritative reports whether a security stage wins line overlaps.
func isAuthoritative(label string) bool { return label == LabelSecurityStructural }

// Aggregate merges stage outcomes into a report. Outcomes that are not
// fulfilled, or whose value has an unexpected type, contribute nothing.
// Aggregate is a pure function of its input.
func Aggregate(outcomes []StageOutcome) AggregatedReport {
	report := AggregatedReport{
		Issues:         []Issue{},
		SecurityIssues: []Issue{},
		Complexity:     ComplexityMetrics{Functions: []FunctionMetrics{}, Issues: []Issue{}},
		Redundancy:     RedundancyReport{Duplicates: []Duplicate{}, Issues: []Issue{}},
		StageTiming:    make(map[string]int64, len(outcomes)),
	}

	var general, authoritative, heuristic []Issue
	for _, o := range outcomes {
		report.StageTiming[o.Label] = o.DurationMs()
		if o.Status != StatusFulfilled {
			continue
		}

		switch v := o.Value.(type) {
		case []Issue:
			tagged := withSource(v, o.Label)
			switch {
			case isAuthoritative(o.Label):
				authoritative = append(authoritative, tagged...)
			case IsSecurityLabel(o.Label):
				heuristic = append(heuristic, tagged...)
			default:
				general = append(general, tagged...)
			}
		case ComplexityResult:
			report.Complexity.DecisionPoints += v.DecisionPoints
			report.Complexity.MaxDepth = max(report.Complexity.MaxDepth, v.MaxDepth)
			report.Complexity.Functions = append(report.Complexity.Functions, v.Functions...)
			report.Complexity.Summary = v.Summary
			report.Complexity.Issues = append(report.Complexity.Issues, complexityIssues(v, o.Label)...)
		case RedundancyResult:
			report.Redundancy.Duplicates = append(report.Redundancy.Duplicates, v.Duplicates...)
			report.Redundancy.Issues = append(report.Redundancy.Issues, redundancyIssues(v, o.Label)...)
		case FormattingResult:
			f := v
			report.Formatting = &f
			if issue, ok := formattingIssue(v, o.Label); ok {
				general = append(general, issue)
			}
		}
	}

	report.Complexity.Issues = finalize(report.Complexity.Issues)
	report.Redundancy.Issues = finalize(report.Redundancy.Issues)

	general = append(general, report.Complexity.Issues...)
	general = append(general, report.Redundancy.Issues...)
	report.Issues = finalize(general)
	report.SecurityIssues = finalize(mergeSecurity(authoritative, heuristic))
	return report
}

// mergeSecurity keeps all authoritative findings and the heuristic ones on
// lines the authoritative scanner did not report. Line-less findings are
// always kept.
func mergeSecurity(authoritative, heuristic []Issue) []Issue {
	covered := make(map[int]bool, len(authoritative))
	for _, i := range authoritative {
		if i.Line > 0 {
			covered[i.Line] = true
		}
	}
	out := make([]Issue, 0, len(authoritative)+len(heuristic))
	out = append(out, authoritative...)
	for _, i := range heuristic {
		if i.Line > 0 && covered[i.Line] {
			continue
		}
		out = append(out, i)
	}
	return out
}

// finalize collapses issues sharing (line, message), keeping the first,
// assigns stable IDs and orders by line.
func finalize(issues []Issue) []Issue {
	seen := make(map[IssueKey]bool, len(issues))
	out := make([]Issue, 0, len(issues))
	for _, i := range issues {
		k := i.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if i.ID == "" {
			i.ID = issueID(i)
		}
		out = append(out, i)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Line < out[b].Line })
	return out
}

func issueID(i Issue) string {
	h := xxhash.Sum64String(fmt.Sprintf("%s\x00%d\x00%s", i.Category, i.Line, i.Message))
	return fmt.Sprintf("%s-%08x", i.Category, uint32(h))
}

func withSource(issues []Issue, label string) []Issue {
	out := make([]Issue, len(issues))
	for n, i := range issues {
		if i.Source == "" {
			i.Source = label
		}
		out[n] = i
	}
	return out
}

func complexityIssues(r ComplexityResult, label string) []Issue {
	var out []Issue
	for _, fn := range r.Functions {
		for _, w := range fn.Warnings {
			out = append(out, Issue{
				Category:   CategoryComplexity,
				Severity:   w.Severity,
				Message:    w.Message,
				Line:       fn.Line,
				Suggestion: fmt.Sprintf("Split '%s' into smaller functions", fn.Name),
				Source:     label,
			})
		}
	}
	return out
}

func redundancyIssues(r RedundancyResult, label string) []Issue {
	out := make([]Issue, 0, len(r.Duplicates))
	for _, d := range r.Duplicates {
		out = append(out, Issue{
			Category:   CategoryRedundancy,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Function '%s' duplicates '%s' (line %d)", d.Name, d.DuplicateOf, d.DuplicateLine),
			Line:       d.Line,
			Suggestion: "Extract the shared body into one function",
			Source:     label,
		})
	}
	return out
}

// formattingIssue reports pending formatter changes as a style finding
// anchored at the first changed line.
func formattingIssue(r FormattingResult, label string) (Issue, bool) {
	if r.ChangesCount == 0 {
		return Issue{}, false
	}
	line := 0
	if parsed := diff.Parse(r.Diff); len(parsed.Hunks) > 0 {
		h := parsed.Hunks[0]
		line = h.OldStart
		for _, l := range h.Lines {
			if l.Kind != diff.Equal {
				break
			}
			line++
		}
		line = max(line, 1)
	}
	return Issue{
		Category:   CategoryStyle,
		Severity:   SeverityInfo,
		Message:    fmt.Sprintf("Code is not formatted (%d line changes)", r.ChangesCount),
		Line:       line,
		Suggestion: "Apply the formatted output",
		Source:     label,
	}, true
}
