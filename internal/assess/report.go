package assess

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fulmenhq/codescore/internal/language"
)

// StageSummary is the serializable view of a StageOutcome.
type StageSummary struct {
	Label      string        `json:"label" yaml:"label"`
	Status     OutcomeStatus `json:"status" yaml:"status"`
	DurationMs int64         `json:"duration_ms" yaml:"duration_ms"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the complete result of one Analyze call.
type Report struct {
	RunID            string                   `json:"run_id" yaml:"run_id"`
	Tool             string                   `json:"tool" yaml:"tool"`
	Version          string                   `json:"version" yaml:"version"`
	GeneratedAt      time.Time                `json:"generated_at" yaml:"generated_at"`
	Filename         string                   `json:"filename,omitempty" yaml:"filename,omitempty"`
	Detection        language.DetectionResult `json:"detection" yaml:"detection"`
	AggregatedReport `yaml:",inline"`
	Score            ScoreBreakdown `json:"score" yaml:"score"`
	Snapshot         Snapshot       `json:"snapshot" yaml:"snapshot"`
	Stages           []StageSummary `json:"stages" yaml:"stages"`
	Diff             *DiffResult    `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// ReadReport decodes a JSON report previously written by the json format.
func ReadReport(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &rep, nil
}

// LoadReport reads a JSON report from path.
func LoadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadReport(f)
}
