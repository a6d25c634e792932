package assess

// DiffResult compares two reports by issue identity.
type DiffResult struct {
	ScoreDelta     float64 `json:"score_delta" yaml:"score_delta"`
	OldScore       float64 `json:"old_score" yaml:"old_score"`
	NewScore       float64 `json:"new_score" yaml:"new_score"`
	NewIssues      []Issue `json:"new_issues" yaml:"new_issues"`
	ResolvedIssues []Issue `json:"resolved_issues" yaml:"resolved_issues"`
}

// DiffReports returns the score change from older to newer, the issues only
// newer has and the issues only older has. Issues match on (line, message).
func DiffReports(older, newer *Report) DiffResult {
	var oldIssues, newIssues []Issue
	var oldScore, newScore float64
	if older != nil {
		oldIssues = older.AllIssues()
		oldScore = older.Snapshot.Score()
	}
	if newer != nil {
		newIssues = newer.AllIssues()
		newScore = newer.Snapshot.Score()
	}

	return DiffResult{
		ScoreDelta:     round3(newScore - oldScore),
		OldScore:       oldScore,
		NewScore:       newScore,
		NewIssues:      missingFrom(newIssues, oldIssues),
		ResolvedIssues: missingFrom(oldIssues, newIssues),
	}
}

// missingFrom returns the issues of a whose key is absent from b.
func missingFrom(a, b []Issue) []Issue {
	keys := make(map[IssueKey]bool, len(b))
	for _, i := range b {
		keys[i.Key()] = true
	}
	out := []Issue{}
	seen := map[IssueKey]bool{}
	for _, i := range a {
		k := i.Key()
		if keys[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, i)
	}
	return out
}
