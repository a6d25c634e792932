package style

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		lang    language.Language
		code    string
		message string
		line    int
	}{
		{"trailing whitespace", language.Go, "x := 1  \ny := 2", "Trailing whitespace", 1},
		{"mixed indentation", language.Python, "def f():\n \tpass", "Mixed tabs and spaces in indentation", 2},
		{"todo comment", language.Go, "x := 1\n// TODO: handle nil", "Unresolved TODO comment", 2},
		{"fixme in python", language.Python, "x = 1  # FIXME later", "Unresolved FIXME comment", 1},
		{"var in js", language.JavaScript, "var x = 1;", "Use 'let' or 'const' instead of 'var'", 1},
		{"console", language.TypeScript, "const a = 1;\nconsole.log(a);", "Debug output left in code: console.log", 2},
		{"print", language.Python, "print('hi')", "Debug output left in code: print", 1},
		{"system out", language.Java, "class A { void f() { System.out.println(1); } }", "Debug output left in code: System.out.println", 1},
		{"wildcard import", language.Python, "from os import *", "Wildcard import hides where names come from", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := New(0).Analyze(context.Background(), tt.code, tt.lang)
			require.NoError(t, err)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.message, issues[0].Message)
			assert.Equal(t, tt.line, issues[0].Line)
			assert.Equal(t, assess.CategoryStyle, issues[0].Category)
		})
	}
}

func TestAnalyze_TodoInStringIsIgnored(t *testing.T) {
	issues, err := New(0).Analyze(context.Background(), `x := "TODO"`, language.Go)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestAnalyze_LineLength(t *testing.T) {
	long := "x := \"" + strings.Repeat("a", 30) + "\""
	issues, err := New(20).Analyze(context.Background(), "ok := 1\n"+long, language.Go)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Line exceeds 20 characters (37)", issues[0].Message)
	assert.Equal(t, 2, issues[0].Line)

	// Wide runes count by display width.
	issues, err = New(10).Analyze(context.Background(), "s := \"日本語\"", language.Go)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Line exceeds 10 characters (13)", issues[0].Message)
}
