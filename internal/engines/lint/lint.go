// Package lint finds likely bugs with per-language pattern rules and a
// null dereference heuristic.
package lint

import (
	"context"
	"fmt"
	"regexp"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/rules"
	"github.com/fulmenhq/codescore/internal/engines/source"
	"github.com/fulmenhq/codescore/internal/language"
)

var (
	jsLike   = rules.Only(language.JavaScript, language.TypeScript)
	looseEq  = rules.Only(language.JavaScript, language.TypeScript, language.PHP)
	nullLike = rules.Only(language.JavaScript, language.TypeScript, language.Java, language.CSharp, language.PHP)
)

// DefaultRules is the built-in bug rule set.
var DefaultRules = []rules.Rule{
	{
		ID: "loose-equality", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`(?:^|[^=!<>])==(?:[^=]|$)`),
		Message:    "Use '===' instead of '==' to avoid type coercion",
		Suggestion: "Replace '==' with '==='",
		Languages:  looseEq,
	},
	{
		ID: "loose-inequality", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`!=(?:[^=]|$)`),
		Message:    "Use '!==' instead of '!=' to avoid type coercion",
		Suggestion: "Replace '!=' with '!=='",
		Languages:  looseEq,
	},
	{
		ID: "assignment-in-condition", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:   regexp.MustCompile(`\b(?:if|while)\s*\(\s*[A-Za-z_$][\w$.\[\]]*\s*=[^=]`),
		Message:   "Assignment inside a condition; did you mean '=='?",
		Languages: rules.Only(language.JavaScript, language.TypeScript, language.Java, language.C, language.CPP, language.CSharp, language.PHP),
	},
	{
		ID: "empty-catch", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`\bcatch\s*(?:\([^)]*\))?\s*\{\s*\}`),
		Message:    "Empty catch block swallows errors",
		Suggestion: "Handle or log the exception",
		Languages:  rules.Only(language.JavaScript, language.TypeScript, language.Java, language.CSharp, language.CPP, language.PHP),
	},
	{
		ID: "debugger", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:   regexp.MustCompile(`\bdebugger\b`),
		Message:   "'debugger' statement left in code",
		Languages: jsLike,
	},
	{
		ID: "string-identity", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`"\s*[!=]=[^=]|[^=!<>][!=]=\s*"`),
		Message:    "Strings compared with '=='; use equals()",
		Languages:  rules.Only(language.Java),
	},
	{
		ID: "bare-except", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`^\s*except\s*:`),
		Message:    "Bare 'except:' also catches SystemExit and KeyboardInterrupt",
		Suggestion: "Catch a specific exception class",
		Languages:  rules.Only(language.Python),
	},
	{
		ID: "none-comparison", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`[=!]=\s*None\b`),
		Message:    "Comparison to None should use 'is' or 'is not'",
		Languages:  rules.Only(language.Python),
	},
	{
		ID: "literal-identity", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:   regexp.MustCompile(`\bis\s+(?:not\s+)?(?:["']|\d)`),
		Message:   "Use '==' to compare with a literal, not 'is'",
		Languages: rules.Only(language.Python),
	},
	{
		ID: "mutable-default", Category: assess.CategoryBug, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`\bdef\s+(\w+)\s*\([^)]*=\s*(?:\[\s*\]|\{\s*\}|list\(\)|dict\(\)|set\(\))`),
		Message:    "Mutable default argument in '${1}'",
		Suggestion: "Default to None and create the value inside the function",
		Languages:  rules.Only(language.Python),
	},
	{
		ID: "bare-rescue", Category: assess.CategoryBug, Severity: assess.SeverityInfo,
		Pattern:   regexp.MustCompile(`^\s*rescue\s*$`),
		Message:   "Bare 'rescue' catches every StandardError",
		Languages: rules.Only(language.Ruby),
	},
	{
		ID: "gets", Category: assess.CategoryBug, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`\bgets\s*\(`),
		Message:    "'gets' cannot limit input length",
		Suggestion: "Use fgets with an explicit buffer size",
		Languages:  rules.Only(language.C, language.CPP),
	},
	{
		ID: "discarded-error", Category: assess.CategoryBug, Severity: assess.SeverityInfo,
		Pattern:   regexp.MustCompile(`^\s*_\s*=\s*[\w.]+\(`),
		Message:   "Error result discarded with '_'",
		Languages: rules.Only(language.Go),
	},
	{
		ID: "unchecked-cd", Category: assess.CategoryBug, Severity: assess.SeverityInfo,
		Pattern:    regexp.MustCompile(`^\s*cd\s+[^&|;]+$`),
		Message:    "'cd' result is not checked",
		Suggestion: "Use 'cd dir || exit'",
		Languages:  rules.Only(language.Shell),
	},
}

// Engine is the bug/lint issue engine.
type Engine struct {
	rules []rules.Rule
}

// New returns an engine using DefaultRules.
func New() *Engine { return &Engine{rules: DefaultRules} }

// NewWithRules returns an engine with a custom rule set.
func NewWithRules(set []rules.Rule) *Engine { return &Engine{rules: set} }

func (e *Engine) Analyze(ctx context.Context, code string, lang language.Language) ([]assess.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	issues := rules.Scan(code, lang, e.rules)
	issues = append(issues, nullDereferences(code, lang)...)
	return issues, nil
}

var nullAssignRe = regexp.MustCompile(`(?:^|[;{}(\s])\$?([A-Za-z_][\w]*)\s*=\s*(null|None|nil)\b`)

func nullLiteral(lang language.Language) string {
	switch lang {
	case language.Python:
		return "None"
	case language.Ruby:
		return "nil"
	}
	for _, l := range nullLike {
		if l == lang {
			return "null"
		}
	}
	return ""
}

// nullDereferences reports the first member access of a variable that was
// assigned null and not reassigned or guarded before the access.
func nullDereferences(code string, lang language.Language) []assess.Issue {
	literal := nullLiteral(lang)
	if literal == "" {
		return nil
	}
	text := source.Mask(code, lang).Text

	reported := map[string]bool{}
	var out []assess.Issue
	for _, m := range nullAssignRe.FindAllStringSubmatchIndex(text, -1) {
		if text[m[4]:m[5]] != literal {
			continue
		}
		name := text[m[2]:m[3]]
		if reported[name] {
			continue
		}
		after := m[1]
		q := regexp.QuoteMeta(name)
		deref := regexp.MustCompile(`(?:^|[^\w$.])\$?` + q + `\s*(?:\.|->)\s*[A-Za-z_]`)
		loc := deref.FindStringIndex(text[after:])
		if loc == nil {
			continue
		}
		between := text[after : after+loc[0]]
		if regexp.MustCompile(`(?:^|[^\w$.])\$?`+q+`\s*=\s*[^=\s]`).MatchString(between) {
			continue
		}
		pos := after + loc[0]
		line := source.LineAt(text, pos)
		lines := source.Masked{Text: text}.Lines()
		guard := regexp.MustCompile(q + `\s*&&|` + q + `\s*!==?\s*` + literal + `|\bif\s*\(?\s*\$?` + q + `\s*\)?\s*[{:]|` + q + `\s+is\s+not\s+None|\bunless\s+` + q)
		if guard.MatchString(lines[line-1]) {
			continue
		}
		reported[name] = true
		out = append(out, assess.Issue{
			Category:   assess.CategoryBug,
			Severity:   assess.SeverityWarning,
			Message:    fmt.Sprintf("Possible null dereference of '%s'", name),
			Line:       line,
			Suggestion: fmt.Sprintf("Check '%s' before accessing its members", name),
			Rule:       "null-dereference",
		})
	}
	return out
}
