package assess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportWith(score float64, issues ...Issue) *Report {
	return &Report{
		AggregatedReport: AggregatedReport{Issues: issues},
		Snapshot:         NewSnapshot(time.Now(), score, len(issues)),
	}
}

func TestDiffReports_ResolvedAndNew(t *testing.T) {
	kept := Issue{Category: CategoryBug, Severity: SeverityWarning, Message: "Use === instead of ==", Line: 1}
	fixed := Issue{Category: CategoryBug, Severity: SeverityWarning, Message: "Possible null dereference of 'user'", Line: 9}
	added := Issue{Category: CategoryStyle, Severity: SeverityInfo, Message: "Trailing whitespace", Line: 4}

	older := reportWith(0.80, kept, fixed)
	newer := reportWith(0.95, kept, added)

	d := DiffReports(older, newer)
	assert.Equal(t, 0.15, d.ScoreDelta)
	require.Len(t, d.ResolvedIssues, 1)
	require.Len(t, d.NewIssues, 1)
	assert.Equal(t, fixed.Message, d.ResolvedIssues[0].Message)
	assert.Equal(t, added.Message, d.NewIssues[0].Message)
}

func TestDiffReports_IdentityIgnoresSeverityAndCategory(t *testing.T) {
	a := Issue{Category: CategoryBug, Severity: SeverityWarning, Message: "m", Line: 2}
	b := Issue{Category: CategorySecurity, Severity: SeverityError, Message: "m", Line: 2}
	d := DiffReports(reportWith(0.5, a), reportWith(0.5, b))
	assert.Empty(t, d.NewIssues)
	assert.Empty(t, d.ResolvedIssues)
	assert.Equal(t, 0.0, d.ScoreDelta)
}

func TestDiffReports_IncludesSecurityIssues(t *testing.T) {
	older := reportWith(0.9)
	newer := reportWith(0.6)
	newer.SecurityIssues = []Issue{{Category: CategorySecurity, Severity: SeverityError, Message: "eval", Line: 3}}

	d := DiffReports(older, newer)
	assert.Equal(t, -0.3, d.ScoreDelta)
	assert.Len(t, d.NewIssues, 1)
}

func TestDiffReports_Nil(t *testing.T) {
	d := DiffReports(nil, reportWith(1))
	assert.Equal(t, 1.0, d.ScoreDelta)
	assert.Empty(t, d.NewIssues)
	assert.Empty(t, d.ResolvedIssues)
}
