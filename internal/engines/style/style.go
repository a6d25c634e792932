// Package style reports layout and hygiene problems that do not change
// program behavior.
package style

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/rules"
	"github.com/fulmenhq/codescore/internal/language"
)

// DefaultMaxLineLength applies when New is given a non-positive limit.
const DefaultMaxLineLength = 120

var jsLike = rules.Only(language.JavaScript, language.TypeScript)

// DefaultRules is the built-in style rule set.
var DefaultRules = []rules.Rule{
	{
		ID: "trailing-whitespace", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`[ \t]+\r?$`), Message: "Trailing whitespace", Scope: rules.ScopeRaw,
	},
	{
		ID: "mixed-indentation", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`^(?: +\t|\t+ )[ \t]*\S`), Message: "Mixed tabs and spaces in indentation",
	},
	{
		ID: "todo", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`), Message: "Unresolved ${1} comment",
		Scope: rules.ScopeComment,
	},
	{
		ID: "no-var", Category: assess.CategoryStyle, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\bvar\s+[A-Za-z_$]`), Message: "Use 'let' or 'const' instead of 'var'",
		Languages: jsLike,
	},
	{
		ID: "debug-output", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`\bconsole\.(log|debug|trace)\s*\(`), Message: "Debug output left in code: console.${1}",
		Languages: jsLike,
	},
	{
		ID: "debug-output", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`^\s*(print)\s*\(`), Message: "Debug output left in code: ${1}",
		Languages: rules.Only(language.Python),
	},
	{
		ID: "debug-output", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`\b(System\.(?:out|err)\.print(?:ln)?)\s*\(`), Message: "Debug output left in code: ${1}",
		Languages: rules.Only(language.Java),
	},
	{
		ID: "wildcard-import", Category: assess.CategoryStyle, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`^\s*from\s+\S+\s+import\s+\*`), Message: "Wildcard import hides where names come from",
		Languages: rules.Only(language.Python),
	},
	{
		ID: "multiple-imports", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`^\s*import\s+[\w.]+\s*,`), Message: "Multiple imports on one line",
		Languages: rules.Only(language.Python),
	},
	{
		ID: "trailing-semicolon", Category: assess.CategoryStyle, Severity: assess.SeverityInfo,
		Pattern: regexp.MustCompile(`;\s*$`), Message: "Statement ends with a semicolon",
		Languages: rules.Only(language.Python),
	},
}

// Engine is the style issue engine.
type Engine struct {
	maxLineLength int
	rules         []rules.Rule
}

// New returns an engine with DefaultRules and the given line length limit.
func New(maxLineLength int) *Engine {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Engine{maxLineLength: maxLineLength, rules: DefaultRules}
}

func (e *Engine) Analyze(ctx context.Context, code string, lang language.Language) ([]assess.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	issues := rules.Scan(code, lang, e.rules)
	for i, line := range strings.Split(code, "\n") {
		width := runewidth.StringWidth(strings.TrimRight(line, "\r"))
		if width <= e.maxLineLength {
			continue
		}
		issues = append(issues, assess.Issue{
			Category:   assess.CategoryStyle,
			Severity:   assess.SeverityInfo,
			Message:    fmt.Sprintf("Line exceeds %d characters (%d)", e.maxLineLength, width),
			Line:       i + 1,
			Column:     e.maxLineLength + 1,
			Suggestion: "Wrap the line",
			Rule:       "line-length",
		})
	}
	return issues, nil
}
