/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

// Category is the scoring bucket an issue belongs to
type Category string

const (
	CategoryBug        Category = "bug"
	CategorySecurity   Category = "security"
	CategoryComplexity Category = "complexity"
	CategoryStyle      Category = "style"
	CategoryRedundancy Category = "redundancy"
)

// Categories lists every scoring category in report order.
var Categories = []Category{CategoryBug, CategorySecurity, CategoryComplexity, CategoryRedundancy, CategoryStyle}

// Severity represents the severity level of an issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities from most to least severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Issue represents a single finding
type Issue struct {
	ID         string   `json:"id" yaml:"id"`
	Category   Category `json:"category" yaml:"category"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Message    string   `json:"message" yaml:"message"`
	Line       int      `json:"line,omitempty" yaml:"line,omitempty"`
	Column     int      `json:"column,omitempty" yaml:"column,omitempty"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Rule       string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Source     string   `json:"source,omitempty" yaml:"source,omitempty"` // stage label that produced it
}

// IssueKey is the identity used for dedup and report diffs.
type IssueKey struct {
	Line    int
	Message string
}

// Key returns the identity of the issue.
func (i Issue) Key() IssueKey { return IssueKey{Line: i.Line, Message: i.Message} }

// MetricWarning is a threshold violation attached to a measured function.
type MetricWarning struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

// FunctionMetrics is the complexity record of one function.
type FunctionMetrics struct {
	Name                 string          `json:"name" yaml:"name"`
	Line                 int             `json:"line" yaml:"line"`
	CyclomaticComplexity int             `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity"`
	Length               int             `json:"length" yaml:"length"`
	NestingDepth         int             `json:"nesting_depth" yaml:"nesting_depth"`
	Warnings             []MetricWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ComplexitySummary describes the distribution of cyclomatic complexity.
type ComplexitySummary struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	P90    float64 `json:"p90" yaml:"p90"`
	Max    int     `json:"max" yaml:"max"`
}

// ComplexityResult is the output of a complexity engine.
type ComplexityResult struct {
	DecisionPoints int               `json:"decision_points" yaml:"decision_points"`
	MaxDepth       int               `json:"max_depth" yaml:"max_depth"`
	Functions      []FunctionMetrics `json:"functions" yaml:"functions"`
	Summary        ComplexitySummary `json:"summary" yaml:"summary"`
}

// Duplicate records that the function Name at Line has the same body as DuplicateOf.
type Duplicate struct {
	Name          string `json:"name" yaml:"name"`
	Line          int    `json:"line" yaml:"line"`
	DuplicateOf   string `json:"duplicate_of" yaml:"duplicate_of"`
	DuplicateLine int    `json:"duplicate_line" yaml:"duplicate_line"`
}

// RedundancyResult is the output of a redundancy engine.
type RedundancyResult struct {
	Duplicates []Duplicate `json:"duplicates" yaml:"duplicates"`
}

// FormattingResult is the output of a formatting engine.
type FormattingResult struct {
	Formatted    string `json:"formatted" yaml:"formatted"`
	Diff         string `json:"diff" yaml:"diff"`
	ChangesCount int    `json:"changes_count" yaml:"changes_count"`
}

// ComplexityMetrics is the aggregated complexity section of a report.
type ComplexityMetrics struct {
	DecisionPoints int               `json:"decision_points" yaml:"decision_points"`
	MaxDepth       int               `json:"max_depth" yaml:"max_depth"`
	Functions      []FunctionMetrics `json:"functions" yaml:"functions"`
	Summary        ComplexitySummary `json:"summary" yaml:"summary"`
	Issues         []Issue           `json:"issues" yaml:"issues"`
}

// RedundancyReport is the aggregated redundancy section of a report.
type RedundancyReport struct {
	Duplicates []Duplicate `json:"duplicates" yaml:"duplicates"`
	Issues     []Issue     `json:"issues" yaml:"issues"`
}

// AggregatedReport merges every stage outcome into one view.
// Issues holds non-security findings, including those derived from
// complexity, redundancy and formatting results.
type AggregatedReport struct {
	Issues         []Issue           `json:"issues" yaml:"issues"`
	SecurityIssues []Issue           `json:"security_issues" yaml:"security_issues"`
	Complexity     ComplexityMetrics `json:"complexity_metrics" yaml:"complexity_metrics"`
	Redundancy     RedundancyReport  `json:"redundancy" yaml:"redundancy"`
	Formatting     *FormattingResult `json:"formatting,omitempty" yaml:"formatting,omitempty"`
	StageTiming    map[string]int64  `json:"stage_timing" yaml:"stage_timing"` // label -> ms
}

// AllIssues returns the scored issues: Issues followed by SecurityIssues.
func (r AggregatedReport) AllIssues() []Issue {
	out := make([]Issue, 0, len(r.Issues)+len(r.SecurityIssues))
	out = append(out, r.Issues...)
	return append(out, r.SecurityIssues...)
}

// CountBySeverity tallies scored issues by severity.
func (r AggregatedReport) CountBySeverity() map[Severity]int {
	counts := map[Severity]int{}
	for _, i := range r.AllIssues() {
		counts[i.Severity]++
	}
	return counts
}
