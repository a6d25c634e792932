// Package complexity measures cyclomatic complexity, length and nesting
// depth of every function in a source file.
package complexity

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/edge"
	"golang.org/x/tools/go/ast/inspector"
	"gonum.org/v1/gonum/stat"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/source"
	"github.com/fulmenhq/codescore/internal/language"
)

// Limits are the per-function thresholds. A cyclomatic complexity above
// twice MaxCyclomatic is an error rather than a warning.
type Limits struct {
	MaxCyclomatic int
	MaxLength     int
	MaxNesting    int
}

// DefaultLimits returns the stock thresholds.
func DefaultLimits() Limits {
	return Limits{MaxCyclomatic: 10, MaxLength: 50, MaxNesting: 4}
}

// Engine is the complexity engine.
type Engine struct {
	limits Limits
}

// New returns an Engine. Zero limits take their default.
func New(l Limits) *Engine {
	d := DefaultLimits()
	if l.MaxCyclomatic <= 0 {
		l.MaxCyclomatic = d.MaxCyclomatic
	}
	if l.MaxLength <= 0 {
		l.MaxLength = d.MaxLength
	}
	if l.MaxNesting <= 0 {
		l.MaxNesting = d.MaxNesting
	}
	return &Engine{limits: l}
}

func (e *Engine) Measure(ctx context.Context, code string, lang language.Language) (assess.ComplexityResult, error) {
	if err := ctx.Err(); err != nil {
		return assess.ComplexityResult{}, err
	}

	var fns []assess.FunctionMetrics
	parsed := false
	if lang == language.Go {
		fns, parsed = measureGo(code)
	}
	if !parsed {
		fns = measureText(code, lang)
	}

	res := assess.ComplexityResult{Functions: []assess.FunctionMetrics{}}
	for _, fn := range fns {
		fn.Warnings = e.check(fn)
		res.DecisionPoints += fn.CyclomaticComplexity - 1
		res.MaxDepth = max(res.MaxDepth, fn.NestingDepth)
		res.Functions = append(res.Functions, fn)
	}
	res.Summary = summarize(res.Functions)
	return res, nil
}

func (e *Engine) check(fn assess.FunctionMetrics) []assess.MetricWarning {
	var out []assess.MetricWarning
	if fn.CyclomaticComplexity > e.limits.MaxCyclomatic {
		sev := assess.SeverityWarning
		if fn.CyclomaticComplexity > 2*e.limits.MaxCyclomatic {
			sev = assess.SeverityError
		}
		out = append(out, assess.MetricWarning{
			Severity: sev,
			Message:  fmt.Sprintf("Function '%s' has cyclomatic complexity %d (max %d)", fn.Name, fn.CyclomaticComplexity, e.limits.MaxCyclomatic),
		})
	}
	if fn.Length > e.limits.MaxLength {
		out = append(out, assess.MetricWarning{
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("Function '%s' is %d lines long (max %d)", fn.Name, fn.Length, e.limits.MaxLength),
		})
	}
	if fn.NestingDepth > e.limits.MaxNesting {
		out = append(out, assess.MetricWarning{
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("Function '%s' nests %d levels deep (max %d)", fn.Name, fn.NestingDepth, e.limits.MaxNesting),
		})
	}
	return out
}

var (
	decisionNodes = []ast.Node{
		(*ast.IfStmt)(nil),
		(*ast.ForStmt)(nil),
		(*ast.RangeStmt)(nil),
		(*ast.CaseClause)(nil),
		(*ast.CommClause)(nil),
		(*ast.BinaryExpr)(nil),
	}
	nestingNodes = []ast.Node{
		(*ast.IfStmt)(nil),
		(*ast.ForStmt)(nil),
		(*ast.RangeStmt)(nil),
		(*ast.SwitchStmt)(nil),
		(*ast.TypeSwitchStmt)(nil),
		(*ast.SelectStmt)(nil),
	}
)

func measureGo(code string) ([]assess.FunctionMetrics, bool) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "input.go", code, parser.SkipObjectResolution)
	if err != nil {
		return nil, false
	}

	var out []assess.FunctionMetrics
	in := inspector.New([]*ast.File{f})
	for fn := range in.Root().Preorder((*ast.FuncDecl)(nil)) {
		decl := fn.Node().(*ast.FuncDecl)
		if decl.Body == nil {
			continue
		}
		m := assess.FunctionMetrics{
			Name:                 source.GoFuncName(decl),
			Line:                 fset.Position(decl.Name.Pos()).Line,
			CyclomaticComplexity: 1,
			Length:               fset.Position(decl.End()).Line - fset.Position(decl.Pos()).Line + 1,
		}
		for c := range fn.Preorder(decisionNodes...) {
			if isDecision(c.Node()) {
				m.CyclomaticComplexity++
			}
		}
		for c := range fn.Preorder(nestingNodes...) {
			m.NestingDepth = max(m.NestingDepth, depth(c))
		}
		out = append(out, m)
	}
	return out, true
}

func isDecision(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.CaseClause:
		return n.List != nil
	case *ast.CommClause:
		return n.Comm != nil
	case *ast.BinaryExpr:
		return n.Op == token.LAND || n.Op == token.LOR
	}
	return true
}

// depth counts the nesting statements enclosing c, c included. An else-if
// continues its chain instead of nesting.
func depth(c inspector.Cursor) int {
	d := 0
	for a := range c.Enclosing(nestingNodes...) {
		if _, ok := a.Node().(*ast.IfStmt); ok {
			if kind, _ := a.ParentEdge(); kind == edge.IfStmt_Else {
				continue
			}
		}
		d++
	}
	return d
}

var (
	curlyDecisions = regexp.MustCompile(`\b(?:if|for|foreach|while|case|catch)\b|&&|\|\||\s\?\s`)
	rustDecisions  = regexp.MustCompile(`\b(?:if|for|while)\b|&&|\|\||=>`)
	phpDecisions   = regexp.MustCompile(`\b(?:if|elseif|for|foreach|while|case|catch|and|or)\b|&&|\|\||\s\?\s`)
	pyDecisions    = regexp.MustCompile(`\b(?:if|elif|for|while|except|and|or)\b`)
	rubyDecisions  = regexp.MustCompile(`\b(?:if|elsif|unless|while|until|for|when|rescue|and|or)\b|&&|\|\|`)
	shDecisions    = regexp.MustCompile(`\b(?:if|elif|for|while|until)\b|&&|\|\|`)

	rubyOpen  = regexp.MustCompile(`^[ \t]*(?:if|unless|while|until|case|begin|for)\b|\bdo\b[ \t]*(?:\|[^|]*\|)?[ \t]*$`)
	rubyClose = regexp.MustCompile(`\bend\b`)
	shOpen    = regexp.MustCompile(`^[ \t]*(?:if|for|while|until|case)\b`)
	shClose   = regexp.MustCompile(`\b(?:fi|done|esac)\b`)
)

func decisionsFor(lang language.Language) *regexp.Regexp {
	switch lang {
	case language.Rust:
		return rustDecisions
	case language.PHP:
		return phpDecisions
	case language.Python:
		return pyDecisions
	case language.Ruby:
		return rubyDecisions
	case language.Shell:
		return shDecisions
	}
	return curlyDecisions
}

// measureText works on masked function bodies so keywords inside strings
// and comments are not counted.
func measureText(code string, lang language.Language) []assess.FunctionMetrics {
	re := decisionsFor(lang)
	var out []assess.FunctionMetrics
	for _, fn := range source.Functions(code, lang) {
		m := assess.FunctionMetrics{
			Name:                 fn.Name,
			Line:                 fn.Line,
			CyclomaticComplexity: 1 + len(re.FindAllStringIndex(fn.MaskedBody, -1)),
			Length:               fn.Length(),
		}
		switch lang {
		case language.Python:
			m.NestingDepth = indentDepth(fn.MaskedBody)
		case language.Ruby:
			m.NestingDepth = keywordDepth(fn.MaskedBody, rubyOpen, rubyClose)
		case language.Shell:
			m.NestingDepth = keywordDepth(fn.MaskedBody, shOpen, shClose)
		default:
			m.NestingDepth = braceDepth(fn.MaskedBody)
		}
		out = append(out, m)
	}
	return out
}

func braceDepth(body string) int {
	d, deepest := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			d++
			deepest = max(deepest, d)
		case '}':
			d = max(d-1, 0)
		}
	}
	return deepest
}

// indentDepth is the number of indentation levels below the first
// statement of body.
func indentDepth(body string) int {
	var stack []int
	deepest := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w := source.IndentWidth(line)
		for len(stack) > 0 && w < stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 || w > stack[len(stack)-1] {
			stack = append(stack, w)
		}
		deepest = max(deepest, len(stack)-1)
	}
	return deepest
}

func keywordDepth(body string, open, closer *regexp.Regexp) int {
	d, deepest := 0, 0
	for _, line := range strings.Split(body, "\n") {
		if open.MatchString(line) {
			d++
			deepest = max(deepest, d)
		}
		d = max(d-len(closer.FindAllStringIndex(line, -1)), 0)
	}
	return deepest
}

func summarize(fns []assess.FunctionMetrics) assess.ComplexitySummary {
	if len(fns) == 0 {
		return assess.ComplexitySummary{}
	}
	xs := make([]float64, len(fns))
	var s assess.ComplexitySummary
	for i, fn := range fns {
		xs[i] = float64(fn.CyclomaticComplexity)
		s.Max = max(s.Max, fn.CyclomaticComplexity)
	}
	sort.Float64s(xs)
	s.Mean = round3(stat.Mean(xs, nil))
	s.P90 = stat.Quantile(0.9, stat.Empirical, xs, nil)
	if len(xs) > 1 {
		s.StdDev = round3(stat.StdDev(xs, nil))
	}
	return s
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
