// Package rules runs line-oriented regular expression rules over source
// text. The lint, style and heuristic security engines are rule sets.
package rules

import (
	"regexp"
	"strings"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/source"
	"github.com/fulmenhq/codescore/internal/language"
)

// Scope selects which text a rule is matched against.
type Scope int

const (
	// ScopeCode matches masked text: comments and string contents are blank.
	ScopeCode Scope = iota
	// ScopeRaw matches the original line, strings and comments included.
	ScopeRaw
	// ScopeComment matches comment text only.
	ScopeComment
)

// Rule is a single pattern check.
type Rule struct {
	ID       string
	Category assess.Category
	Severity assess.Severity
	Pattern  *regexp.Regexp
	// Unless suppresses a match when it also matches the raw line.
	Unless *regexp.Regexp
	// Message may reference submatches as ${1}.
	Message    string
	Suggestion string
	Scope      Scope
	// Languages restricts the rule; empty means every language.
	Languages []language.Language
}

// Applies reports whether r runs for lang.
func (r Rule) Applies(lang language.Language) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Only is a convenience for building Rule.Languages.
func Only(langs ...language.Language) []language.Language { return langs }

// CurlyLanguages lists the brace-delimited languages.
var CurlyLanguages = Only(language.JavaScript, language.TypeScript, language.Java, language.C,
	language.CPP, language.CSharp, language.Go, language.Rust, language.PHP)

// Scan runs every applicable rule on every line of code and reports one
// issue per rule and line.
func Scan(code string, lang language.Language, set []Rule) []assess.Issue {
	raw := strings.Split(code, "\n")
	m := source.Mask(code, lang)
	masked, comments := m.Lines(), m.CommentLines()

	var out []assess.Issue
	for _, r := range set {
		if !r.Applies(lang) {
			continue
		}
		for i, line := range raw {
			text := line
			switch r.Scope {
			case ScopeCode:
				text = masked[i]
			case ScopeComment:
				text = comments[i]
			}
			loc := r.Pattern.FindStringSubmatchIndex(text)
			if loc == nil {
				continue
			}
			if r.Unless != nil && r.Unless.MatchString(line) {
				continue
			}
			out = append(out, assess.Issue{
				Category:   r.Category,
				Severity:   r.Severity,
				Message:    string(r.Pattern.ExpandString(nil, r.Message, line, loc)),
				Line:       i + 1,
				Column:     loc[0] + 1,
				Suggestion: r.Suggestion,
				Rule:       r.ID,
			})
		}
	}
	return out
}
