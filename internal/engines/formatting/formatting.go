// Package formatting produces the canonical layout of source text and the
// unified diff from the input to it.
package formatting

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/source"
	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/diff"
	"github.com/fulmenhq/codescore/pkg/logger"
)

// Engine is the formatting engine.
type Engine struct {
	contextLines int
	log          *logger.Logger
}

// New returns an Engine rendering diffs with contextLines lines of context.
func New(contextLines int, log *logger.Logger) *Engine {
	if contextLines < 0 {
		contextLines = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{contextLines: contextLines, log: log}
}

func (e *Engine) Format(ctx context.Context, code string, lang language.Language) (assess.FormattingResult, error) {
	if err := ctx.Err(); err != nil {
		return assess.FormattingResult{}, err
	}
	formatted := e.format(code, lang)
	d, err := diff.GenerateFileDiffContext(ctx, code, formatted, "original", "formatted", e.contextLines)
	if err != nil {
		return assess.FormattingResult{}, err
	}
	st := diff.Stats(d)
	return assess.FormattingResult{
		Formatted:    formatted,
		Diff:         d,
		ChangesCount: st.Additions + st.Deletions,
	}, nil
}

func (e *Engine) format(code string, lang language.Language) string {
	out, _ := Finalize([]byte(code))
	text := string(out)
	if text == "" {
		return text
	}

	switch {
	case lang == language.Go:
		res, err := imports.Process("input.go", out, &imports.Options{
			FormatOnly: true,
			Comments:   true,
			TabIndent:  true,
			TabWidth:   8,
		})
		if err == nil {
			return string(res)
		}
		e.log.Debug("Go source does not parse, re-indenting by brackets", logger.Err(err))
		return reindent(text, lang, "\t")
	case lang == language.Python:
		return expandTabs(text, lang, 4)
	case lang == language.Ruby:
		return expandTabs(text, lang, 2)
	case language.FamilyOf(lang) == language.FamilyCurly:
		return reindent(text, lang, indentUnit(text, lang))
	}
	return text
}

// indentUnit guesses the indentation step of text from its smallest
// positive indent, falling back to the language's common convention.
func indentUnit(text string, lang language.Language) string {
	m := source.Mask(text, lang)
	smallest := 0
	for i, line := range strings.Split(text, "\n") {
		if m.Continued[i] || strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == '\t' {
			return "\t"
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if n > 0 && (smallest == 0 || n < smallest) {
			smallest = n
		}
	}
	switch smallest {
	case 2, 3, 4, 8:
		return strings.Repeat(" ", smallest)
	}
	if language.IsJSLike(lang) {
		return "  "
	}
	return "    "
}

type bracket struct {
	level int  // level of the line that opened it
	cases bool // a switch body holding case labels
}

var (
	caseLabel    = regexp.MustCompile(`^(?:case\b|default\s*:)`)
	continuation = []string{"=", "+", "&&", "||", "?", "=>"}
)

// reindent lays out bracketed code: a line is one level deeper than the
// line opening its innermost bracket, a closing line aligns with its
// opener, and case labels sit one level inside their switch. Lines inside
// block comments and multi-line strings are left alone.
func reindent(text string, lang language.Language, unit string) string {
	m := source.Mask(text, lang)
	raw := strings.Split(text, "\n")
	masked := m.Lines()

	var stack []bracket
	prevContinues := false
	for i, line := range raw {
		code := strings.TrimSpace(masked[i])
		trimmed := strings.TrimLeft(line, " \t")
		level := lineLevel(stack, code, prevContinues)
		switch {
		case m.Continued[i]:
		case trimmed == "":
			raw[i] = ""
		case strings.HasPrefix(code, "#") && (lang == language.C || lang == language.CPP || lang == language.CSharp):
			continue
		default:
			raw[i] = strings.Repeat(unit, level) + trimmed
			if caseLabel.MatchString(code) && len(stack) > 0 {
				stack[len(stack)-1].cases = true
			}
		}

		opened := false
		for _, r := range masked[i] {
			switch r {
			case '{', '(', '[':
				stack = append(stack, bracket{level: level})
				opened = true
			case '}', ')', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
		if code != "" && !m.Continued[i] {
			prevContinues = !opened && endsWithOperator(code)
		}
	}
	return strings.Join(raw, "\n")
}

func lineLevel(stack []bracket, code string, continued bool) int {
	if len(stack) == 0 {
		if continued {
			return 1
		}
		return 0
	}
	top := stack[len(stack)-1]
	if strings.IndexAny(code, "})]") == 0 {
		return top.level
	}
	level := top.level + 1
	if top.cases && !caseLabel.MatchString(code) {
		level++
	}
	if continued || (strings.HasPrefix(code, ".") && !strings.HasPrefix(code, "...")) {
		level++
	}
	return level
}

func endsWithOperator(code string) bool {
	if strings.HasSuffix(code, "++") {
		return false
	}
	for _, op := range continuation {
		if strings.HasSuffix(code, op) {
			return true
		}
	}
	return false
}

// expandTabs replaces tabs in leading indentation with width spaces.
func expandTabs(text string, lang language.Language, width int) string {
	m := source.Mask(text, lang)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if m.Continued[i] {
			continue
		}
		body := strings.TrimLeft(line, " \t")
		lead := line[:len(line)-len(body)]
		if !strings.Contains(lead, "\t") {
			continue
		}
		col := 0
		for _, r := range lead {
			if r == '\t' {
				col += width - col%width
			} else {
				col++
			}
		}
		lines[i] = strings.Repeat(" ", col) + body
	}
	return strings.Join(lines, "\n")
}
