/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Weights scales each category penalty. Weights are non-negative and need
// not sum to one.
type Weights struct {
	Bug        float64 `json:"bug" yaml:"bug" mapstructure:"bug"`
	Security   float64 `json:"security" yaml:"security" mapstructure:"security"`
	Complexity float64 `json:"complexity" yaml:"complexity" mapstructure:"complexity"`
	Redundancy float64 `json:"redundancy" yaml:"redundancy" mapstructure:"redundancy"`
	Style      float64 `json:"style" yaml:"style" mapstructure:"style"`
}

// DefaultWeights returns the built-in category weights.
func DefaultWeights() Weights {
	return Weights{Bug: 0.3, Security: 0.35, Complexity: 0.15, Redundancy: 0.1, Style: 0.1}
}

// Get returns the weight for c.
func (w Weights) Get(c Category) float64 {
	switch c {
	case CategoryBug:
		return w.Bug
	case CategorySecurity:
		return w.Security
	case CategoryComplexity:
		return w.Complexity
	case CategoryRedundancy:
		return w.Redundancy
	case CategoryStyle:
		return w.Style
	}
	return 0
}

// Validate rejects negative, NaN and infinite weights.
func (w Weights) Validate() error {
	for _, c := range Categories {
		v := w.Get(c)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &InputError{Field: "weights." + string(c), Reason: fmt.Sprintf("must be a finite non-negative number, got %v", v)}
		}
	}
	return nil
}

// PenaltyBreakdown holds each category penalty, each within [0,1].
type PenaltyBreakdown struct {
	Bug        float64 `json:"bug" yaml:"bug"`
	Security   float64 `json:"security" yaml:"security"`
	Complexity float64 `json:"complexity" yaml:"complexity"`
	Redundancy float64 `json:"redundancy" yaml:"redundancy"`
	Style      float64 `json:"style" yaml:"style"`
}

func (p *PenaltyBreakdown) set(c Category, v float64) {
	switch c {
	case CategoryBug:
		p.Bug = v
	case CategorySecurity:
		p.Security = v
	case CategoryComplexity:
		p.Complexity = v
	case CategoryRedundancy:
		p.Redundancy = v
	case CategoryStyle:
		p.Style = v
	}
}

// Get returns the penalty for c.
func (p PenaltyBreakdown) Get(c Category) float64 {
	return Weights(p).Get(c)
}

// ScoreBreakdown is the result of scoring a report.
type ScoreBreakdown struct {
	Score     float64          `json:"score" yaml:"score"`
	Weights   Weights          `json:"weights" yaml:"weights"`
	Penalties PenaltyBreakdown `json:"penalty_breakdown" yaml:"penalty_breakdown"`
}

// multipliers is the per-issue penalty by category and severity.
// Redundancy only counts warnings.
var multipliers = map[Category]map[Severity]float64{
	CategoryBug:        {SeverityError: 0.2, SeverityWarning: 0.08, SeverityInfo: 0.02},
	CategorySecurity:   {SeverityError: 0.35, SeverityWarning: 0.15, SeverityInfo: 0.03},
	CategoryComplexity: {SeverityError: 0.15, SeverityWarning: 0.07, SeverityInfo: 0.01},
	CategoryRedundancy: {SeverityWarning: 0.1},
	CategoryStyle:      {SeverityError: 0.05, SeverityWarning: 0.02, SeverityInfo: 0.005},
}

// scoredSeverities fixes the summation order of a category's penalty.
var scoredSeverities = []Severity{SeverityError, SeverityWarning, SeverityInfo}

// Score computes the bounded quality score of issues under w:
//
//	score = max(0, 1 - sum(weight_c * min(1, sum(count_s * multiplier_c_s))))
func Score(issues []Issue, w Weights) ScoreBreakdown {
	counts := make(map[Category]map[Severity]int, len(Categories))
	for _, i := range issues {
		if counts[i.Category] == nil {
			counts[i.Category] = map[Severity]int{}
		}
		counts[i.Category][i.Severity]++
	}

	out := ScoreBreakdown{Weights: w}
	total := 0.0
	for _, c := range Categories {
		raw := 0.0
		for _, sev := range scoredSeverities {
			raw += float64(counts[c][sev]) * multipliers[c][sev]
		}
		penalty := clamp01(raw)
		out.Penalties.set(c, penalty)
		total += w.Get(c) * penalty
	}
	out.Score = clamp01(1 - total)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// Snapshot is a point-in-time record of one run. Its fields are fixed at
// construction.
type Snapshot struct {
	timestamp  time.Time
	score      float64
	issueCount int
}

// NewSnapshot records score rounded to three decimals.
func NewSnapshot(at time.Time, score float64, issueCount int) Snapshot {
	return Snapshot{timestamp: at.UTC(), score: round3(clamp01(score)), issueCount: issueCount}
}

func (s Snapshot) Timestamp() time.Time { return s.timestamp }
func (s Snapshot) Score() float64       { return s.score }
func (s Snapshot) IssueCount() int      { return s.issueCount }

type snapshotWire struct {
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Score      float64   `json:"score" yaml:"score"`
	IssueCount int       `json:"issue_count" yaml:"issue_count"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotWire{Timestamp: s.timestamp, Score: s.score, IssueCount: s.issueCount})
}

// UnmarshalJSON restores a snapshot from a saved report.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = NewSnapshot(w.Timestamp, w.Score, w.IssueCount)
	return nil
}

func (s Snapshot) MarshalYAML() (any, error) {
	return snapshotWire{Timestamp: s.timestamp, Score: s.score, IssueCount: s.issueCount}, nil
}
