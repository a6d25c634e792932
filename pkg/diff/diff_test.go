package diff

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnifiedDiff_IdenticalIsEmpty(t *testing.T) {
	for _, s := range []string{"", "a", "a\nb\n", "\n\n\n", "func main() {}\n"} {
		assert.Equal(t, "", GenerateUnifiedDiff(s, s, 3), "input %q", s)
	}
}

func TestGenerateUnifiedDiff_Golden(t *testing.T) {
	tests := []struct {
		name     string
		original string
		modified string
		context  int
		want     string
	}{
		{
			name:     "single replacement",
			original: "a\nb\nc",
			modified: "a\nB\nc",
			context:  3,
			want:     "@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n",
		},
		{
			name:     "one line each side omits counts",
			original: "x",
			modified: "y",
			context:  3,
			want:     "@@ -1 +1 @@\n-x\n+y\n",
		},
		{
			name:     "insert into empty",
			original: "",
			modified: "a\nb",
			context:  3,
			want:     "@@ -0,0 +1,2 @@\n+a\n+b\n",
		},
		{
			name:     "append without context",
			original: "a\nb\nc",
			modified: "a\nb\nc\nd",
			context:  0,
			want:     "@@ -3,0 +4 @@\n+d\n",
		},
		{
			name:     "delete everything",
			original: "a\nb",
			modified: "",
			context:  3,
			want:     "@@ -1,2 +0,0 @@\n-a\n-b\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateUnifiedDiff(tt.original, tt.modified, tt.context))
		})
	}
}

func numbered(n int, override map[int]string) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("l%d", i+1)
		if v, ok := override[i+1]; ok {
			lines[i] = v
		}
	}
	return strings.Join(lines, "\n")
}

func TestHunks_SeparateAndMerged(t *testing.T) {
	original := numbered(20, nil)
	modified := numbered(20, map[int]string{2: "L2", 18: "L18"})

	hunks := Hunks(Compute(SplitLines(original), SplitLines(modified)), 3)
	require.Len(t, hunks, 2)
	assert.Equal(t, "@@ -1,5 +1,5 @@", hunks[0].Header())
	assert.Equal(t, "@@ -15,6 +15,6 @@", hunks[1].Header())

	// Windows that touch are merged into one hunk.
	near := numbered(5, map[int]string{2: "B", 4: "D"})
	merged := Hunks(Compute(SplitLines(numbered(5, nil)), SplitLines(near)), 1)
	require.Len(t, merged, 1)
	assert.Equal(t, "@@ -1,5 +1,5 @@", merged[0].Header())
}

func TestCompute_DeletionsPrecedeInsertions(t *testing.T) {
	ops := Compute([]string{"a1", "a2"}, []string{"b1", "b2"})
	kinds := make([]OpKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
	}
	assert.Equal(t, []OpKind{Delete, Delete, Insert, Insert}, kinds)
}

func TestCompute_LCSLength(t *testing.T) {
	a := strings.Split("A B C B D A B", " ")
	b := strings.Split("B D C A B A", " ")
	equal := 0
	for _, op := range Compute(a, b) {
		if op.Kind == Equal {
			equal++
		}
	}
	assert.Equal(t, 4, equal, "LCS of the classic CLRS example has length 4")
}

func TestCompute_OversizedRegionIsReplacedWhole(t *testing.T) {
	const n = 2100 // n*n is just past MaxTableCells
	require.Greater(t, n*n, MaxTableCells)
	var before, after []string
	for i := 0; i < n; i++ {
		before = append(before, fmt.Sprintf("    x%d++;", i))
		after = append(after, fmt.Sprintf("  x%d++;", i))
	}

	ops := Compute(before, after)
	require.Len(t, ops, 2*n)
	for i, op := range ops {
		if i < n {
			assert.Equal(t, Delete, op.Kind)
			assert.Equal(t, i, op.OldIndex)
		} else {
			assert.Equal(t, Insert, op.Kind)
			assert.Equal(t, i-n, op.NewIndex)
		}
	}

	d := GenerateUnifiedDiff(strings.Join(before, "\n"), strings.Join(after, "\n"), 3)
	parsed := Parse(d)
	require.Len(t, parsed.Hunks, 1)
	assert.Equal(t, "@@ -1,2100 +1,2100 @@", parsed.Hunks[0].Header())
	assert.Equal(t, DiffStats{Additions: n, Deletions: n, Changed: true}, Stats(d))
}

func TestComputeContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeContext(ctx, []string{"a"}, []string{"b"})
	assert.ErrorIs(t, err, context.Canceled)

	// The table loop checks ctx on every row, not only on entry.
	_, err = lcsScript(ctx, []string{"a", "b"}, []string{"c", "d"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = GenerateUnifiedDiffContext(ctx, "a\nb", "a\nc", 3)
	assert.ErrorIs(t, err, context.Canceled)

	out, err := GenerateFileDiffContext(ctx, "same", "same", "a", "b", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// apply replays parsed hunks on original; used to check that rendering and
// parsing agree with the edit script.
func apply(original string, hunks []Hunk) string {
	old := SplitLines(original)
	var out []string
	pos := 0
	for _, h := range hunks {
		start := h.OldStart - 1
		if h.OldCount == 0 {
			start = h.OldStart
		}
		out = append(out, old[pos:start]...)
		pos = start
		for _, l := range h.Lines {
			switch l.Kind {
			case Equal:
				out = append(out, old[pos])
				pos++
			case Delete:
				pos++
			case Insert:
				out = append(out, l.Text)
			}
		}
	}
	out = append(out, old[pos:]...)
	return strings.Join(out, "\n")
}

func TestParse_RoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"a\nb\nc", "a\nB\nc"},
		{"", "x\ny"},
		{"x\ny", ""},
		{numbered(30, nil), numbered(30, map[int]string{1: "first", 15: "mid", 30: "last"})},
		{"keep\nremove\nkeep2\n", "keep\nkeep2\nadded\n"},
		{"if x {\n\treturn\n}\n", "if x {\n    return\n}\n"},
	}
	for _, ctx := range []int{0, 1, 3} {
		for i, p := range pairs {
			text := GenerateFileDiff(p[0], p[1], "original", "formatted", ctx)
			parsed := Parse(text)
			assert.Equal(t, "original", parsed.OriginalFile)
			assert.Equal(t, "formatted", parsed.FormattedFile)
			assert.Equal(t, p[1], apply(p[0], parsed.Hunks), "pair %d ctx %d\n%s", i, ctx, text)
		}
	}
}

func TestParse_SkipsMalformedHeaders(t *testing.T) {
	text := strings.Join([]string{
		"--- a/file.js\t2024-01-01",
		"+++ b/file.js",
		"@@ garbage @@",
		"-ignored",
		"+ignored",
		"@@ -2 +2 @@",
		"-old",
		"+new",
	}, "\n")
	parsed := Parse(text)
	assert.Equal(t, "a/file.js", parsed.OriginalFile)
	assert.Equal(t, "b/file.js", parsed.FormattedFile)
	require.Len(t, parsed.Hunks, 1)
	h := parsed.Hunks[0]
	assert.Equal(t, 2, h.OldStart)
	assert.Equal(t, 1, h.OldCount)
	assert.Equal(t, []Line{{Kind: Delete, Text: "old"}, {Kind: Insert, Text: "new"}}, h.Lines)
}

func TestParse_Empty(t *testing.T) {
	parsed := Parse("")
	assert.Empty(t, parsed.Hunks)
	assert.Empty(t, parsed.OriginalFile)
}

func TestStats(t *testing.T) {
	assert.Equal(t, DiffStats{}, Stats(""))

	text := GenerateFileDiff("a\nb\nc", "a\nB\nc\nd", "original", "formatted", 3)
	s := Stats(text)
	assert.Equal(t, 2, s.Additions)
	assert.Equal(t, 1, s.Deletions)
	assert.True(t, s.Changed)

	headersOnly := Stats("--- a\n+++ b\n")
	assert.False(t, headersOnly.Changed)
}

func TestStats_DashAndPlusLinesInsideHunks(t *testing.T) {
	d := GenerateUnifiedDiff("-- drop users\nSELECT 1;\n", "SELECT 1;\n", 3)
	require.True(t, strings.HasPrefix(d, "@@ -1,3 +1,2 @@\n--- drop users\n"), d)
	assert.Equal(t, DiffStats{Deletions: 1, Changed: true}, Stats(d))

	d = GenerateFileDiff("i = 0;\n", "i = 0;\n++i;\n", "original", "formatted", 3)
	assert.Equal(t, DiffStats{Additions: 1, Changed: true}, Stats(d))
}
