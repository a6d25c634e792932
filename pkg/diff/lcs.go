// Package diff implements a line-oriented LCS diff with unified-diff
// rendering and parsing.
package diff

import (
	"context"
	"strings"
)

// MaxTableCells bounds the LCS table. A changed region whose line counts
// multiply past it is emitted as one delete-all, insert-all block.
const MaxTableCells = 1 << 22

// OpKind classifies one step of an edit script.
type OpKind int

const (
	Equal OpKind = iota
	Delete
	Insert
)

// Prefix returns the unified-diff line prefix for the kind.
func (k OpKind) Prefix() string {
	switch k {
	case Delete:
		return "-"
	case Insert:
		return "+"
	default:
		return " "
	}
}

func (k OpKind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	default:
		return "equal"
	}
}

// Op is one line of an edit script. OldIndex/NewIndex are zero-based
// positions in the respective inputs, -1 when the op does not consume a
// line from that side.
type Op struct {
	Kind     OpKind
	Text     string
	OldIndex int
	NewIndex int
}

// SplitLines splits text on "\n". The empty string has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Compute returns the edit script turning a into b.
func Compute(a, b []string) []Op {
	ops, _ := ComputeContext(context.Background(), a, b)
	return ops
}

// ComputeContext is Compute with cancellation. Common prefix and suffix are
// peeled off before the O(m·n) LCS table is built for the middle; ctx is
// checked once per table row.
func ComputeContext(ctx context.Context, a, b []string) ([]Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	ops := make([]Op, 0, len(a)+len(b))
	for i := 0; i < prefix; i++ {
		ops = append(ops, Op{Kind: Equal, Text: a[i], OldIndex: i, NewIndex: i})
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]
	mid, err := lcsScript(ctx, midA, midB)
	if err != nil {
		return nil, err
	}
	for _, op := range mid {
		if op.OldIndex >= 0 {
			op.OldIndex += prefix
		}
		if op.NewIndex >= 0 {
			op.NewIndex += prefix
		}
		ops = append(ops, op)
	}

	for k := suffix; k > 0; k-- {
		i := len(a) - k
		j := len(b) - k
		ops = append(ops, Op{Kind: Equal, Text: a[i], OldIndex: i, NewIndex: j})
	}
	return ops, nil
}

// lcsScript fills table[i][j] = LCS(a[:i], b[:j]) and backtracks from (m,n)
// to (0,0). On ties the backward walk emits insertions first so that, read
// forward, deletions precede insertions inside a changed block.
func lcsScript(ctx context.Context, a, b []string) ([]Op, error) {
	m, n := len(a), len(b)
	if m == 0 && n == 0 {
		return nil, nil
	}
	if m == 0 || n == 0 || m*n > MaxTableCells {
		return replaceScript(a, b), nil
	}
	width := n + 1
	table := make([]int, (m+1)*width)
	for i := 1; i <= m; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				table[i*width+j] = table[(i-1)*width+j-1] + 1
			case table[(i-1)*width+j] >= table[i*width+j-1]:
				table[i*width+j] = table[(i-1)*width+j]
			default:
				table[i*width+j] = table[i*width+j-1]
			}
		}
	}

	rev := make([]Op, 0, m+n)
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			rev = append(rev, Op{Kind: Equal, Text: a[i-1], OldIndex: i - 1, NewIndex: j - 1})
			i--
			j--
		case j > 0 && (i == 0 || table[i*width+j-1] >= table[(i-1)*width+j]):
			rev = append(rev, Op{Kind: Insert, Text: b[j-1], OldIndex: -1, NewIndex: j - 1})
			j--
		default:
			rev = append(rev, Op{Kind: Delete, Text: a[i-1], OldIndex: i - 1, NewIndex: -1})
			i--
		}
	}

	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev, nil
}

// replaceScript deletes every line of a, then inserts every line of b.
func replaceScript(a, b []string) []Op {
	ops := make([]Op, 0, len(a)+len(b))
	for i, line := range a {
		ops = append(ops, Op{Kind: Delete, Text: line, OldIndex: i, NewIndex: -1})
	}
	for j, line := range b {
		ops = append(ops, Op{Kind: Insert, Text: line, OldIndex: -1, NewIndex: j})
	}
	return ops
}
