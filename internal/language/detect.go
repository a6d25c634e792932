package language

import (
	"math"
	"regexp"
	"strings"
)

const (
	shebangConfidence = 0.95

	syntaxScale = 0.95
	// syntaxMinScore is the matched-weight ratio below which content is
	// reported as unknown.
	syntaxMinScore = 0.15
	// tieMargin is the score distance inside which specificity decides.
	tieMargin = 0.05

	syntaxProbeChars = 5000
)

// syntaxCap is the largest float64 below 0.9, so syntax detection never
// reaches extension confidence.
var syntaxCap = math.Nextafter(0.9, 0)

type shebangRule struct {
	pattern *regexp.Regexp
	lang    Language
}

// Order matters: "ts-node" contains "node" and must be tried first.
var shebangRules = []shebangRule{
	{regexp.MustCompile(`\b(ts-node|tsx|deno)\b`), TypeScript},
	{regexp.MustCompile(`\b(node|nodejs|bun)\b`), JavaScript},
	{regexp.MustCompile(`\bpython[0-9.]*\b`), Python},
	{regexp.MustCompile(`\bruby\b`), Ruby},
	{regexp.MustCompile(`\bphp\b`), PHP},
	{regexp.MustCompile(`\b(ba|z|k|da)?sh\b`), Shell},
}

func fromShebang(content string) (Language, bool) {
	if !strings.HasPrefix(content, "#!") {
		return Unknown, false
	}
	first := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		first = content[:i]
	}
	for _, r := range shebangRules {
		if r.pattern.MatchString(first) {
			return r.lang, true
		}
	}
	return Unknown, false
}

type patternGroup struct {
	weight   float64
	patterns []*regexp.Regexp
}

func group(weight float64, exprs ...string) patternGroup {
	g := patternGroup{weight: weight}
	for _, e := range exprs {
		g.patterns = append(g.patterns, regexp.MustCompile(`(?m)`+e))
	}
	return g
}

func (g patternGroup) matches(s string) bool {
	for _, p := range g.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// specificity breaks near-ties: earlier entries win over later ones.
var specificity = []Language{
	TypeScript, CPP, CSharp, Java, Go, Rust, PHP, Ruby, Python, C, JavaScript, Shell,
}

var syntaxGroups = map[Language][]patternGroup{
	JavaScript: {
		group(3, `\b(const|let|var)\s+\w+\s*=`),
		group(3, `\bfunction\s*\w*\s*\(`, `=>\s*[{(]?`),
		group(2, `console\.(log|error|warn|info)\(`, `\bdocument\.\w+`, `\bwindow\.\w+`),
		group(2, `\brequire\(\s*['"]`, `\bmodule\.exports\b`, `^\s*import\s+.+\s+from\s+['"]`, `^\s*export\s+(default|const|function|class)\b`),
		group(1, `===|!==`),
		group(1, `\bundefined\b`, `\bnull\b`),
	},
	TypeScript: {
		group(3, `\w\s*:\s*(string|number|boolean|any|void|unknown|never)\b`),
		group(3, `^\s*(export\s+)?interface\s+\w+`, `^\s*(export\s+)?type\s+\w+\s*=`),
		group(2, `\b(const|let)\s+\w+\s*(:\s*[\w<>\[\]|]+)?\s*=`),
		group(2, `^\s*import\s+.+\s+from\s+['"]`, `^\s*export\s+`),
		group(2, `\b(public|private|protected|readonly)\s+\w+\s*[:(]`, `\bas\s+(string|number|any|unknown|const)\b`, `\w+<[\w\s,\[\]]+>\(`),
		group(1, `=>`),
	},
	Python: {
		group(3, `^\s*def\s+\w+\s*\(.*\)\s*(->\s*[\w\[\], .]+)?:`),
		group(3, `^\s*import\s+\w+\s*$`, `^\s*from\s+[\w.]+\s+import\s+`),
		group(2, `^\s*class\s+\w+(\(.*\))?:`),
		group(2, `\bself\.\w+`, `\bprint\(`),
		group(2, `^\s*(if|elif|else|for|while|with|try|except|finally)\b.*:\s*$`),
		group(1, `\b(None|True|False)\b`),
	},
	Java: {
		group(3, `\b(public|private|protected)\s+(abstract\s+)?(static\s+)?(final\s+)?(class|interface|enum)\s+\w+`),
		group(3, `\bpublic\s+static\s+void\s+main\s*\(\s*String`),
		group(2, `System\.(out|err)\.print(ln|f)?\(`),
		group(2, `^\s*import\s+java\.`, `^\s*package\s+[\w.]+;`),
		group(2, `@Override\b`, `\b(ArrayList|HashMap|List|Map)<`),
		group(1, `\bnew\s+\w+(<.*>)?\(`),
	},
	CSharp: {
		group(3, `^\s*using\s+System(\.[\w.]+)?;`),
		group(3, `^\s*namespace\s+[\w.]+`),
		group(2, `Console\.Write(Line)?\(`),
		group(2, `\b(public|private|internal)\s+(static\s+)?(async\s+)?(class|void|Task|string|int|bool)\b`),
		group(2, `\{\s*get;\s*(set;)?\s*\}`, `\bvar\s+\w+\s*=\s*new\b`),
		group(1, `^\s*\[\w+(\(.*\))?\]\s*$`),
	},
	C: {
		group(3, `^\s*#include\s*<(stdio|stdlib|string|unistd|stdint|stdbool|math|errno)\.h>`),
		group(3, `\bint\s+main\s*\(`),
		group(2, `\b(printf|scanf|malloc|calloc|free|fprintf|strcpy|strcat|memcpy|gets)\s*\(`),
		group(2, `\b(struct|typedef|unsigned|sizeof)\b`),
		group(1, `->\w+`, `\bNULL\b`),
	},
	CPP: {
		group(3, `^\s*#include\s*<(iostream|vector|string|map|memory|algorithm|unordered_map)>`),
		group(3, `\bstd::\w+`, `\busing\s+namespace\s+std\b`),
		group(2, `\btemplate\s*<`, `^\s*class\s+\w+\s*(:\s*(public|private)\s+\w+)?\s*\{`, `^\s*namespace\s+\w+\s*\{`),
		group(2, `\b(cout|cerr|clog)\s*<<`, `\bcin\s*>>`),
		group(1, `\bint\s+main\s*\(`),
		group(1, `\b(nullptr|constexpr|auto)\b`),
	},
	Go: {
		group(3, `^\s*package\s+\w+\s*$`),
		group(3, `\bfunc\s+(\(\w+\s+\*?\w+\)\s*)?\w+\s*\(`),
		group(2, `^\s*import\s+(\(|")`),
		group(2, `\w\s*:=\s*`),
		group(2, `\bfmt\.\w+\(`, `\berr\s*!=\s*nil\b`),
	},
	Rust: {
		group(3, `\bfn\s+\w+\s*(<.*>)?\s*\(`),
		group(3, `\blet\s+mut\s+\w+`, `^\s*impl\b.*\{`),
		group(2, `^\s*use\s+\w+(::\w+)+`),
		group(2, `println!\(`, `vec!\[`, `macro_rules!`),
		group(2, `->\s*(Self|Result|Option|&?str|i32|u32|i64|u64|usize|String|bool)\b`),
		group(1, `\bpub\s+(fn|struct|enum|mod)\b`),
	},
	Ruby: {
		group(3, `^\s*def\s+(self\.)?\w+[?!]?(\(.*\))?\s*$`),
		group(3, `^\s*end\s*$`),
		group(2, `^\s*require(_relative)?\s+['"]`, `^\s*module\s+[A-Z]\w*`),
		group(2, `\bputs\s`, `\battr_(accessor|reader|writer)\b`),
		group(1, `\.each\s+do\s*\|`, `\bdo\s*\|\w+\|`),
		group(1, `@\w+`),
	},
	PHP: {
		group(4, `<\?php`),
		group(3, `\$\w+\s*=`),
		group(2, `\becho\s`, `\bfunction\s+\w+\s*\(.*\$`),
		group(2, `\$\w+->\w+`, `^\s*namespace\s+[\w\\]+;`),
	},
	Shell: {
		group(3, `^\s*(if|while|until)\s+\[\[?\s`),
		group(3, `\$\(\s*\w+`, `\$\{\w+[:#%}]`),
		group(2, `^\s*(echo|export|source|local|readonly)\s`),
		group(2, `^\s*(fi|done|esac)\s*$`),
		group(1, `\|\s*(grep|awk|sed|xargs|cut|sort)\b`),
	},
}

// fromSyntax scores every language over the first 5,000 characters.
func fromSyntax(content string) (Language, float64, bool) {
	probe := content
	if len(probe) > syntaxProbeChars {
		probe = probe[:syntaxProbeChars]
	}

	scores := make(map[Language]float64, len(syntaxGroups))
	best := 0.0
	for lang, groups := range syntaxGroups {
		matched, total := 0.0, 0.0
		for _, g := range groups {
			total += g.weight
			if g.matches(probe) {
				matched += g.weight
			}
		}
		if total == 0 {
			continue
		}
		s := matched / total
		scores[lang] = s
		if s > best {
			best = s
		}
	}
	if best < syntaxMinScore {
		return Unknown, 0, false
	}

	for _, lang := range specificity {
		if s, ok := scores[lang]; ok && best-s <= tieMargin {
			return lang, s, true
		}
	}
	return Unknown, 0, false
}

func syntaxConfidence(score float64) float64 {
	return min(score*syntaxScale, syntaxCap)
}
