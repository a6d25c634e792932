package diff

import (
	"context"
	"fmt"
	"strings"
)

// DefaultContextLines is the number of unchanged lines shown around a change.
const DefaultContextLines = 3

// Line is one rendered line of a hunk.
type Line struct {
	Kind OpKind
	Text string
}

// Hunk is a contiguous region of a unified diff.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header renders "@@ -s,c +s,c @@"; a count of exactly one is omitted.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%s +%s @@", formatRange(h.OldStart, h.OldCount), formatRange(h.NewStart, h.NewCount))
}

func formatRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// Hunks groups the changed ops of an edit script. Each change is widened by
// contextLines ops on both sides; windows that overlap or touch are merged.
func Hunks(ops []Op, contextLines int) []Hunk {
	if contextLines < 0 {
		contextLines = 0
	}

	type window struct{ start, end int }
	var windows []window
	for k, op := range ops {
		if op.Kind == Equal {
			continue
		}
		start := max(0, k-contextLines)
		end := min(len(ops)-1, k+contextLines)
		if n := len(windows); n > 0 && start <= windows[n-1].end+1 {
			windows[n-1].end = max(windows[n-1].end, end)
			continue
		}
		windows = append(windows, window{start, end})
	}
	if len(windows) == 0 {
		return nil
	}

	// Lines of each side consumed before op k.
	oldBefore := make([]int, len(ops)+1)
	newBefore := make([]int, len(ops)+1)
	for k, op := range ops {
		oldBefore[k+1] = oldBefore[k]
		newBefore[k+1] = newBefore[k]
		if op.Kind != Insert {
			oldBefore[k+1]++
		}
		if op.Kind != Delete {
			newBefore[k+1]++
		}
	}

	hunks := make([]Hunk, 0, len(windows))
	for _, w := range windows {
		h := Hunk{
			OldCount: oldBefore[w.end+1] - oldBefore[w.start],
			NewCount: newBefore[w.end+1] - newBefore[w.start],
		}
		h.OldStart = oldBefore[w.start]
		if h.OldCount > 0 {
			h.OldStart++
		}
		h.NewStart = newBefore[w.start]
		if h.NewCount > 0 {
			h.NewStart++
		}
		h.Lines = make([]Line, 0, w.end-w.start+1)
		for _, op := range ops[w.start : w.end+1] {
			h.Lines = append(h.Lines, Line{Kind: op.Kind, Text: op.Text})
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// GenerateUnifiedDiff renders the hunks turning original into modified.
// Identical inputs produce "".
func GenerateUnifiedDiff(original, modified string, contextLines int) string {
	out, _ := GenerateUnifiedDiffContext(context.Background(), original, modified, contextLines)
	return out
}

// GenerateUnifiedDiffContext is GenerateUnifiedDiff that stops with ctx's
// error once ctx is done.
func GenerateUnifiedDiffContext(ctx context.Context, original, modified string, contextLines int) (string, error) {
	if original == modified {
		return "", nil
	}
	ops, err := ComputeContext(ctx, SplitLines(original), SplitLines(modified))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, h := range Hunks(ops, contextLines) {
		writeHunk(&b, h)
	}
	return b.String(), nil
}

// GenerateFileDiff is GenerateUnifiedDiff with "---"/"+++" file headers.
func GenerateFileDiff(original, modified, originalName, modifiedName string, contextLines int) string {
	out, _ := GenerateFileDiffContext(context.Background(), original, modified, originalName, modifiedName, contextLines)
	return out
}

// GenerateFileDiffContext is GenerateFileDiff with cancellation.
func GenerateFileDiffContext(ctx context.Context, original, modified, originalName, modifiedName string, contextLines int) (string, error) {
	body, err := GenerateUnifiedDiffContext(ctx, original, modified, contextLines)
	if err != nil || body == "" {
		return "", err
	}
	return "--- " + originalName + "\n+++ " + modifiedName + "\n" + body, nil
}

func writeHunk(b *strings.Builder, h Hunk) {
	b.WriteString(h.Header())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteString(l.Kind.Prefix())
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
}
