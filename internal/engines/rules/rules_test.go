package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
)

func rule(id string, scope Scope, pattern string) Rule {
	return Rule{
		ID:       id,
		Category: assess.CategoryBug,
		Severity: assess.SeverityWarning,
		Pattern:  regexp.MustCompile(pattern),
		Message:  id,
		Scope:    scope,
	}
}

func TestScan_Scopes(t *testing.T) {
	code := "var s = \"eval(x)\"; // note: eval(y)\neval(z);\n"

	tests := []struct {
		name  string
		scope Scope
		lines []int
	}{
		{"code ignores strings and comments", ScopeCode, []int{2}},
		{"raw sees everything", ScopeRaw, []int{1, 2}},
		{"comment sees comments only", ScopeComment, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Scan(code, language.JavaScript, []Rule{rule("eval", tt.scope, `eval\(`)})
			var lines []int
			for _, i := range issues {
				lines = append(lines, i.Line)
			}
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestScan_MessageColumnAndUnless(t *testing.T) {
	r := rule("assign", ScopeCode, `\b(\w+)\s*=\s*null`)
	r.Message = "'${1}' set to null"
	r.Unless = regexp.MustCompile(`//\s*ok`)

	issues := Scan("let a = null;\n  b = null; // ok\n    c = null;\n", language.JavaScript, []Rule{r})
	require.Len(t, issues, 2)
	assert.Equal(t, "'a' set to null", issues[0].Message)
	assert.Equal(t, 1, issues[0].Line)
	assert.Equal(t, 5, issues[0].Column)
	assert.Equal(t, "'c' set to null", issues[1].Message)
	assert.Equal(t, 3, issues[1].Line)
	assert.Equal(t, 5, issues[1].Column)
	assert.Equal(t, "assign", issues[1].Rule)
}

func TestScan_Languages(t *testing.T) {
	r := rule("printf", ScopeCode, `printf\(`)
	r.Languages = Only(language.C, language.CPP)

	assert.Len(t, Scan(`printf("x");`, language.C, []Rule{r}), 1)
	assert.Empty(t, Scan(`printf("x");`, language.Go, []Rule{r}))
	assert.True(t, rule("any", ScopeCode, `x`).Applies(language.Ruby))
}
