package assess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fulfilled(label string, v any) StageOutcome {
	return StageOutcome{Label: label, Status: StatusFulfilled, Value: v, Duration: 12 * time.Millisecond}
}

func TestAggregate_SkipsFailedAndMismatchedOutcomes(t *testing.T) {
	outcomes := []StageOutcome{
		{Label: LabelLint, Status: StatusRejected},
		{Label: LabelStyle, Status: StatusTimeout, Value: []Issue{{Message: "ignored", Line: 1}}},
		fulfilled(LabelComplexity, "not a complexity result"),
		fulfilled(LabelRedundancy, []Issue{{Category: CategoryStyle, Severity: SeverityInfo, Message: "odd but typed", Line: 2}}),
	}
	report := Aggregate(outcomes)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "odd but typed", report.Issues[0].Message)
	assert.Empty(t, report.SecurityIssues)
	assert.Empty(t, report.Complexity.Functions)
	assert.Len(t, report.StageTiming, 4)
	assert.Equal(t, int64(12), report.StageTiming[LabelComplexity])
}

func TestAggregate_GenericDedup(t *testing.T) {
	issue := Issue{Category: CategoryBug, Severity: SeverityWarning, Message: "Use === instead of ==", Line: 3}
	outcomes := []StageOutcome{
		fulfilled(LabelLint, []Issue{issue, issue}),
		fulfilled(LabelStyle, []Issue{issue, {Category: CategoryStyle, Severity: SeverityInfo, Message: "Use === instead of ==", Line: 4}}),
	}
	report := Aggregate(outcomes)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, 3, report.Issues[0].Line)
	assert.Equal(t, LabelLint, report.Issues[0].Source)
	assert.NotEmpty(t, report.Issues[0].ID)
}

func TestAggregate_StructuralSecurityWinsSameLine(t *testing.T) {
	outcomes := []StageOutcome{
		fulfilled(LabelSecurityHeuristic, []Issue{
			{Category: CategorySecurity, Severity: SeverityWarning, Message: "eval() usage", Line: 5},
			{Category: CategorySecurity, Severity: SeverityError, Message: "Hardcoded secret", Line: 7},
		}),
		fulfilled(LabelSecurityStructural, []Issue{
			{Category: CategorySecurity, Severity: SeverityError, Message: "javascript.eval-detected", Line: 5},
		}),
		fulfilled(LabelSecurityDependencies, []Issue{
			{Category: CategorySecurity, Severity: SeverityError, Message: "lodash@4.17.15: GHSA-p6mc-m468-83gw"},
		}),
	}
	report := Aggregate(outcomes)
	require.Len(t, report.SecurityIssues, 3)

	var messages []string
	for _, i := range report.SecurityIssues {
		messages = append(messages, i.Message)
	}
	assert.Contains(t, messages, "javascript.eval-detected")
	assert.Contains(t, messages, "Hardcoded secret")
	assert.Contains(t, messages, "lodash@4.17.15: GHSA-p6mc-m468-83gw")
	assert.NotContains(t, messages, "eval() usage")
}

func TestAggregate_StructuralOutputsBecomeIssues(t *testing.T) {
	outcomes := []StageOutcome{
		fulfilled(LabelComplexity, ComplexityResult{
			DecisionPoints: 14,
			MaxDepth:       5,
			Functions: []FunctionMetrics{{
				Name: "big", Line: 10, CyclomaticComplexity: 14, Length: 20, NestingDepth: 5,
				Warnings: []MetricWarning{
					{Severity: SeverityWarning, Message: "Function 'big' has cyclomatic complexity 14 (max 10)"},
					{Severity: SeverityWarning, Message: "Function 'big' nests 5 levels deep (max 4)"},
				},
			}},
		}),
		fulfilled(LabelRedundancy, RedundancyResult{Duplicates: []Duplicate{
			{Name: "a", Line: 1, DuplicateOf: "b", DuplicateLine: 5},
			{Name: "b", Line: 5, DuplicateOf: "a", DuplicateLine: 1},
		}}),
		fulfilled(LabelFormatting, FormattingResult{
			Formatted:    "a\nB\n",
			Diff:         "--- original\n+++ formatted\n@@ -1,2 +1,2 @@\n a\n-b\n+B\n",
			ChangesCount: 2,
		}),
	}
	report := Aggregate(outcomes)

	assert.Equal(t, 14, report.Complexity.DecisionPoints)
	assert.Equal(t, 5, report.Complexity.MaxDepth)
	assert.Len(t, report.Complexity.Functions, 1)
	assert.Len(t, report.Complexity.Issues, 2)
	assert.Len(t, report.Redundancy.Duplicates, 2)
	assert.Len(t, report.Redundancy.Issues, 2)
	require.NotNil(t, report.Formatting)

	counts := map[Category]int{}
	for _, i := range report.Issues {
		counts[i.Category]++
	}
	assert.Equal(t, 2, counts[CategoryComplexity])
	assert.Equal(t, 2, counts[CategoryRedundancy])
	assert.Equal(t, 1, counts[CategoryStyle])

	for _, i := range report.Issues {
		if i.Category == CategoryStyle {
			assert.Equal(t, 2, i.Line, "formatting issue points at the first changed line")
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	outcomes := []StageOutcome{
		fulfilled(LabelLint, []Issue{
			{Category: CategoryBug, Severity: SeverityWarning, Message: "m1", Line: 1},
			{Category: CategoryBug, Severity: SeverityWarning, Message: "m1", Line: 1},
			{Category: CategoryBug, Severity: SeverityError, Message: "m2", Line: 2},
		}),
		fulfilled(LabelSecurityHeuristic, []Issue{{Category: CategorySecurity, Severity: SeverityError, Message: "s", Line: 1}}),
	}
	first := Aggregate(outcomes)
	second := Aggregate(outcomes)
	assert.Equal(t, len(first.AllIssues()), len(second.AllIssues()))
	assert.Equal(t, first.Issues, second.Issues)

	seen := map[IssueKey]bool{}
	for _, i := range first.Issues {
		assert.False(t, seen[i.Key()], "duplicate key %v", i.Key())
		seen[i.Key()] = true
	}
}

func TestAggregate_Empty(t *testing.T) {
	report := Aggregate(nil)
	assert.Empty(t, report.AllIssues())
	assert.NotNil(t, report.Issues)
	assert.Nil(t, report.Formatting)
}
