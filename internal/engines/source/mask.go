// Package source holds the lexical helpers shared by the heuristic engines:
// masking of comments and string literals, and function extraction.
package source

import (
	"strings"

	"github.com/fulmenhq/codescore/internal/language"
)

// Masked is source text with comment and string literal contents replaced
// by spaces. Offsets and line breaks are preserved, so positions found in
// Text are valid in the original.
type Masked struct {
	Text string
	// Comments keeps only comment text; everything else is blank.
	Comments string
	// Continued[i] is true when line i starts inside a block comment or a
	// multi-line string.
	Continued []bool
}

// Lines splits the masked text on "\n".
func (m Masked) Lines() []string { return strings.Split(m.Text, "\n") }

// CommentLines splits Comments on "\n".
func (m Masked) CommentLines() []string { return strings.Split(m.Comments, "\n") }

type syntax struct {
	line       []string // line comment openers
	blockOpen  string
	blockClose string
	quotes     string
	multiline  string // quotes that may span lines
	triple     bool   // python """ and '''
}

func syntaxFor(lang language.Language) syntax {
	switch language.FamilyOf(lang) {
	case language.FamilyPython:
		return syntax{line: []string{"#"}, quotes: `"'`, triple: true}
	case language.FamilyRuby, language.FamilyShell:
		return syntax{line: []string{"#"}, quotes: `"'`, multiline: `"'`}
	}
	s := syntax{line: []string{"//"}, blockOpen: "/*", blockClose: "*/", quotes: `"'`}
	switch {
	case language.IsJSLike(lang):
		s.quotes, s.multiline = "\"'`", "`"
	case lang == language.PHP:
		s.line = []string{"//", "#"}
	case lang == language.Go:
		s.quotes, s.multiline = "\"'`", "`"
	case lang == language.Rust:
		s.quotes = `"` // 'a is a lifetime, not a literal
	}
	return s
}

// Mask blanks comments and string literal contents of code. Quote
// characters themselves are kept so that a masked literal still reads as
// an expression operand.
func Mask(code string, lang language.Language) Masked {
	syn := syntaxFor(lang)
	src := []byte(code)
	out := make([]byte, len(src))
	copy(out, src)
	com := make([]byte, len(src))
	for i, c := range src {
		if c == '\n' {
			com[i] = '\n'
		} else {
			com[i] = ' '
		}
	}

	const (
		stCode = iota
		stLine
		stBlock
		stString
	)
	state := stCode
	var quote string
	continued := []bool{false}

	blank := func(i int) {
		if out[i] != '\n' {
			out[i] = ' '
		}
	}
	comment := func(i int) {
		com[i] = src[i]
		blank(i)
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\n' {
			inside := state == stBlock || state == stString
			if state == stLine {
				state = stCode
			}
			if state == stString && !strings.Contains(syn.multiline, quote) && len(quote) == 1 {
				state = stCode
				inside = false
			}
			continued = append(continued, inside)
			continue
		}

		switch state {
		case stCode:
			if syn.blockOpen != "" && strings.HasPrefix(code[i:], syn.blockOpen) {
				state = stBlock
				for k := 0; k < len(syn.blockOpen); k++ {
					comment(i + k)
				}
				i += len(syn.blockOpen) - 1
				continue
			}
			if opener := lineOpener(code[i:], syn.line); opener != "" {
				state = stLine
				comment(i)
				continue
			}
			if strings.IndexByte(syn.quotes, c) >= 0 {
				quote = string(c)
				if syn.triple && strings.HasPrefix(code[i:], strings.Repeat(quote, 3)) {
					quote = strings.Repeat(quote, 3)
					i += 2
				}
				state = stString
			}
		case stLine:
			comment(i)
		case stBlock:
			if strings.HasPrefix(code[i:], syn.blockClose) {
				for k := 0; k < len(syn.blockClose); k++ {
					comment(i + k)
				}
				i += len(syn.blockClose) - 1
				state = stCode
				continue
			}
			comment(i)
		case stString:
			if c == '\\' && i+1 < len(src) && src[i+1] != '\n' {
				blank(i)
				blank(i + 1)
				i++
				continue
			}
			if strings.HasPrefix(code[i:], quote) {
				i += len(quote) - 1
				state = stCode
				continue
			}
			blank(i)
		}
	}
	return Masked{Text: string(out), Comments: string(com), Continued: continued}
}

func lineOpener(s string, openers []string) string {
	for _, o := range openers {
		if strings.HasPrefix(s, o) {
			return o
		}
	}
	return ""
}

// LineAt returns the 1-based line number of byte offset off in text.
func LineAt(text string, off int) int {
	if off > len(text) {
		off = len(text)
	}
	return strings.Count(text[:off], "\n") + 1
}

// ColumnAt returns the 1-based column of byte offset off in text.
func ColumnAt(text string, off int) int {
	if off > len(text) {
		off = len(text)
	}
	return off - strings.LastIndexByte(text[:off], '\n')
}
