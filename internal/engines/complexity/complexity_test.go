package complexity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
)

const goSource = `package p

type T struct{}

func (t *T) Simple() int { return 1 }

func branchy(xs []int, ok bool) int {
	n := 0
	for _, x := range xs {
		if x > 0 && ok {
			n++
		} else if x < 0 {
			n--
		}
	}
	switch n {
	case 0:
		return 0
	default:
	}
	return n
}
`

func byName(t *testing.T, res assess.ComplexityResult, name string) assess.FunctionMetrics {
	t.Helper()
	for _, fn := range res.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not measured; got %+v", name, res.Functions)
	return assess.FunctionMetrics{}
}

func TestMeasure_Go(t *testing.T) {
	res, err := New(Limits{}).Measure(context.Background(), goSource, language.Go)
	require.NoError(t, err)
	require.Len(t, res.Functions, 2)

	simple := byName(t, res, "T.Simple")
	assert.Equal(t, 5, simple.Line)
	assert.Equal(t, 1, simple.CyclomaticComplexity)
	assert.Equal(t, 1, simple.Length)
	assert.Equal(t, 0, simple.NestingDepth)

	b := byName(t, res, "branchy")
	assert.Equal(t, 7, b.Line)
	assert.Equal(t, 6, b.CyclomaticComplexity, "range, if, &&, else if, case")
	assert.Equal(t, 16, b.Length)
	assert.Equal(t, 2, b.NestingDepth, "else-if does not nest")
	assert.Empty(t, b.Warnings)

	assert.Equal(t, 5, res.DecisionPoints)
	assert.Equal(t, 2, res.MaxDepth)
	assert.Equal(t, assess.ComplexitySummary{Mean: 3.5, StdDev: 3.536, P90: 6, Max: 6}, res.Summary)
}

func TestMeasure_Thresholds(t *testing.T) {
	res, err := New(Limits{MaxCyclomatic: 2, MaxLength: 5, MaxNesting: 1}).Measure(context.Background(), goSource, language.Go)
	require.NoError(t, err)

	b := byName(t, res, "branchy")
	require.Len(t, b.Warnings, 3)
	assert.Equal(t, assess.MetricWarning{Severity: assess.SeverityError, Message: "Function 'branchy' has cyclomatic complexity 6 (max 2)"}, b.Warnings[0])
	assert.Equal(t, "Function 'branchy' is 16 lines long (max 5)", b.Warnings[1].Message)
	assert.Equal(t, "Function 'branchy' nests 2 levels deep (max 1)", b.Warnings[2].Message)
	assert.Empty(t, byName(t, res, "T.Simple").Warnings)
}

func TestMeasure_OtherLanguages(t *testing.T) {
	tests := []struct {
		name       string
		lang       language.Language
		code       string
		fn         string
		cyclomatic int
		nesting    int
	}{
		{
			name: "javascript ignores keywords in strings",
			lang: language.JavaScript,
			code: "function g(a) {\n  if (a === 1 || a === 2) {\n    return a ? 1 : 2;\n  }\n  return \"if while for\";\n}\n",
			fn:   "g", cyclomatic: 4, nesting: 1,
		},
		{
			name: "python",
			lang: language.Python,
			code: "def f(x):\n    if x and x > 1:\n        for i in range(x):\n            print(i)\n    return x\n",
			fn:   "f", cyclomatic: 4, nesting: 2,
		},
		{
			name: "ruby",
			lang: language.Ruby,
			code: "def h(x)\n  if x\n    [1].each do |i|\n      puts i\n    end\n  end\nend\n",
			fn:   "h", cyclomatic: 2, nesting: 2,
		},
		{
			name: "go fragment falls back to text",
			lang: language.Go,
			code: "func k(a int) {\n\tif a > 1 {\n\t}\n}\n",
			fn:   "k", cyclomatic: 2, nesting: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(Limits{}).Measure(context.Background(), tt.code, tt.lang)
			require.NoError(t, err)
			fn := byName(t, res, tt.fn)
			assert.Equal(t, tt.cyclomatic, fn.CyclomaticComplexity)
			assert.Equal(t, tt.nesting, fn.NestingDepth)
		})
	}
}

func TestMeasure_NoFunctions(t *testing.T) {
	res, err := New(Limits{}).Measure(context.Background(), "x = 1\n", language.Python)
	require.NoError(t, err)
	assert.NotNil(t, res.Functions)
	assert.Empty(t, res.Functions)
	assert.Equal(t, assess.ComplexitySummary{}, res.Summary)
}

func TestMeasure_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Limits{}).Measure(ctx, goSource, language.Go)
	assert.ErrorIs(t, err, context.Canceled)
}
