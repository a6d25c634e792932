package source

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strings"

	"github.com/fulmenhq/codescore/internal/language"
)

// Function is a function or method found in source text.
type Function struct {
	Name    string
	Line    int // line of the name
	EndLine int
	// Body is the original text between the body delimiters. MaskedBody is
	// the same span with comments and string contents blanked.
	Body       string
	MaskedBody string
}

// Length is the number of lines the function spans.
func (f Function) Length() int { return f.EndLine - f.Line + 1 }

var controlKeywords = map[string]bool{
	"if": true, "for": true, "foreach": true, "while": true, "switch": true, "catch": true,
	"return": true, "else": true, "do": true, "function": true, "new": true, "sizeof": true,
	"typeof": true, "using": true, "lock": true, "fixed": true, "elseif": true, "match": true,
}

var (
	jsHeaders = []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`),
		regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:function\b|(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*(?::\s*[\w<>\[\]|, ]+)?\s*=>\s*\{)`),
		regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|static|async|readonly|override|get|set)[ \t]+)*([A-Za-z_$][\w$]*)[ \t]*\([^()]*\)[ \t]*(?::[^{;\n]+)?\{`),
	}
	cLikeHeaders = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*(?:[\w<>\[\]?,.*&:]+[ \t*&]+)+([A-Za-z_~]\w*)[ \t]*\((?:[^()]|\([^()]*\))*\)[ \t\n]*(?:const[ \t]*)?(?:throws[ \t]+[\w., ]+)?[ \t\n]*\{`),
	}
	goHeaders    = []*regexp.Regexp{regexp.MustCompile(`(?m)^func[ \t]+(?:\([^)]*\)[ \t]*)?([A-Za-z_]\w*)`)}
	rustHeaders  = []*regexp.Regexp{regexp.MustCompile(`\bfn[ \t]+([A-Za-z_]\w*)`)}
	phpHeaders   = []*regexp.Regexp{regexp.MustCompile(`\bfunction[ \t]+&?([A-Za-z_]\w*)[ \t]*\(`)}
	shellHeaders = []*regexp.Regexp{regexp.MustCompile(`(?m)^[ \t]*(?:function[ \t]+)?([A-Za-z_][\w-]*)[ \t]*\(\)`)}

	pythonDef = regexp.MustCompile(`(?m)^([ \t]*)(?:async[ \t]+)?def[ \t]+([A-Za-z_]\w*)`)
	rubyDef   = regexp.MustCompile(`(?m)^([ \t]*)def[ \t]+([\w.?!=]+)`)
)

// Functions extracts the functions of code. Go source is parsed; other
// languages use header patterns with brace or indentation matching.
// Results are ordered by line.
func Functions(code string, lang language.Language) []Function {
	m := Mask(code, lang)
	var fns []Function
	switch {
	case lang == language.Go:
		if parsed, ok := goFunctions(code, m); ok {
			return parsed
		}
		fns = braced(code, m, goHeaders)
	case language.IsJSLike(lang):
		fns = braced(code, m, jsHeaders)
	case lang == language.Rust:
		fns = braced(code, m, rustHeaders)
	case lang == language.PHP:
		fns = braced(code, m, phpHeaders)
	case lang == language.Shell:
		fns = braced(code, m, shellHeaders)
	case lang == language.Python:
		fns = indented(code, m)
	case lang == language.Ruby:
		fns = rubyFunctions(code, m)
	case language.FamilyOf(lang) == language.FamilyCurly:
		fns = braced(code, m, cLikeHeaders)
	}
	sort.SliceStable(fns, func(i, j int) bool { return fns[i].Line < fns[j].Line })
	return fns
}

func goFunctions(code string, m Masked) ([]Function, bool) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "input.go", code, parser.SkipObjectResolution)
	if err != nil {
		return nil, false
	}
	var fns []Function
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		start := fset.Position(fd.Body.Lbrace).Offset + 1
		end := fset.Position(fd.Body.Rbrace).Offset
		fns = append(fns, Function{
			Name:       GoFuncName(fd),
			Line:       fset.Position(fd.Name.Pos()).Line,
			EndLine:    fset.Position(fd.Body.Rbrace).Line,
			Body:       code[start:end],
			MaskedBody: m.Text[start:end],
		})
	}
	return fns, true
}

// GoFuncName returns the name of fd, qualified by its receiver type.
func GoFuncName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	t := fd.Recv.List[0].Type
	if s, ok := t.(*ast.StarExpr); ok {
		t = s.X
	}
	if ix, ok := t.(*ast.IndexExpr); ok {
		t = ix.X
	}
	if id, ok := t.(*ast.Ident); ok {
		return id.Name + "." + fd.Name.Name
	}
	return fd.Name.Name
}

// braced finds headers in the masked text and matches the body braces.
func braced(code string, m Masked, headers []*regexp.Regexp) []Function {
	seen := map[int]bool{}
	var fns []Function
	for _, re := range headers {
		for _, loc := range re.FindAllStringSubmatchIndex(m.Text, -1) {
			name := m.Text[loc[2]:loc[3]]
			if controlKeywords[name] || seen[loc[2]] {
				continue
			}
			open := bodyOpen(m.Text, loc[3])
			if open < 0 {
				continue
			}
			closeAt := matchBrace(m.Text, open)
			if closeAt < 0 {
				continue
			}
			seen[loc[2]] = true
			fns = append(fns, Function{
				Name:       name,
				Line:       LineAt(code, loc[2]),
				EndLine:    LineAt(code, closeAt),
				Body:       code[open+1 : closeAt],
				MaskedBody: m.Text[open+1 : closeAt],
			})
		}
	}
	return fns
}

// bodyOpen returns the offset of the first "{" after from, or -1 when a
// statement terminator comes first (a declaration without a body).
func bodyOpen(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '{':
			return i
		case ';':
			return -1
		}
	}
	return -1
}

// matchBrace returns the offset of the "}" closing the "{" at open.
func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// IndentWidth is the width of the leading whitespace of s, counting a tab as four.
func IndentWidth(s string) int {
	w := 0
	for _, r := range s {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func indented(code string, m Masked) []Function {
	lines := m.Lines()
	starts := lineStarts(m.Text)
	var fns []Function
	for _, loc := range pythonDef.FindAllStringSubmatchIndex(m.Text, -1) {
		headerIndent := IndentWidth(m.Text[loc[2]:loc[3]])
		colon := signatureEnd(m.Text, loc[5])
		if colon < 0 {
			continue
		}
		bodyStart := colon + 1
		first := LineAt(m.Text, bodyStart) // 1-based line holding the colon
		end := bodyStart
		if rest := strings.TrimSpace(m.Text[bodyStart:lineEnd(m.Text, bodyStart)]); rest != "" {
			end = lineEnd(m.Text, bodyStart)
		}
		for ln := first; ln < len(lines); ln++ { // ln is the 0-based index of the next line
			l := lines[ln]
			if strings.TrimSpace(l) == "" {
				continue
			}
			if !m.Continued[ln] && IndentWidth(l) <= headerIndent {
				break
			}
			end = starts[ln] + len(l)
		}
		fns = append(fns, Function{
			Name:       m.Text[loc[4]:loc[5]],
			Line:       LineAt(code, loc[4]),
			EndLine:    LineAt(code, end),
			Body:       code[bodyStart:end],
			MaskedBody: m.Text[bodyStart:end],
		})
	}
	return fns
}

// signatureEnd returns the offset of the ":" ending a def signature.
func signatureEnd(text string, from int) int {
	depth := 0
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func lineEnd(text string, from int) int {
	if i := strings.IndexByte(text[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(text)
}

var (
	rubyEnd       = regexp.MustCompile(`^[ \t]*end\b`)
	rubyInlineEnd = regexp.MustCompile(`;[ \t]*end[ \t]*$`)
)

func rubyFunctions(code string, m Masked) []Function {
	lines := m.Lines()
	starts := lineStarts(m.Text)
	var fns []Function
	for _, loc := range rubyDef.FindAllStringSubmatchIndex(m.Text, -1) {
		indent := IndentWidth(m.Text[loc[2]:loc[3]])
		header := LineAt(m.Text, loc[4]) - 1
		bodyStart := lineEnd(m.Text, loc[5])
		if rubyInlineEnd.MatchString(lines[header]) {
			fns = append(fns, Function{Name: m.Text[loc[4]:loc[5]], Line: header + 1, EndLine: header + 1})
			continue
		}
		for ln := header + 1; ln < len(lines); ln++ {
			if rubyEnd.MatchString(lines[ln]) && IndentWidth(lines[ln]) == indent {
				end := starts[ln]
				if bodyStart > end {
					bodyStart = end
				}
				fns = append(fns, Function{
					Name:       m.Text[loc[4]:loc[5]],
					Line:       header + 1,
					EndLine:    ln + 1,
					Body:       code[bodyStart:end],
					MaskedBody: m.Text[bodyStart:end],
				})
				break
			}
		}
	}
	return fns
}
