/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package security

import (
	"context"
	"regexp"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/rules"
	"github.com/fulmenhq/codescore/internal/language"
)

var (
	jsLike  = rules.Only(language.JavaScript, language.TypeScript)
	python  = rules.Only(language.Python)
	dynamic = rules.Only(language.JavaScript, language.TypeScript, language.Python, language.PHP, language.Ruby)
)

// HeuristicRules is the built-in pattern rule set for security smells.
var HeuristicRules = []rules.Rule{
	{
		ID: "hardcoded-secret", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`(?i)\b([A-Za-z_]*(?:password|passwd|pwd|secret|api_?key|access_?key|auth_?token|private_?key)[A-Za-z_]*)["']?\s*[:=]\s*["'][^"'\s]{4,}["']`),
		Message:    "Hardcoded credential in '${1}'",
		Suggestion: "Load secrets from the environment or a secret store",
		Scope:      rules.ScopeRaw,
	},
	{
		ID: "aws-access-key", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), Message: "AWS access key ID in source",
		Scope: rules.ScopeRaw,
	},
	{
		ID: "private-key", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), Message: "Private key embedded in source",
		Scope: rules.ScopeRaw,
	},
	{
		ID: "eval", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`(?:^|[^\w.$])eval\s*\(`),
		Message:    "Use of eval() can execute arbitrary code",
		Suggestion: "Parse the data instead of evaluating it",
		Languages:  dynamic,
	},
	{
		ID: "function-constructor", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\bnew\s+Function\s*\(`), Message: "Function constructor evaluates strings as code",
		Languages: jsLike,
	},
	{
		ID: "python-exec", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`(?:^|[^\w.])exec\s*\(`), Message: "Use of exec() can execute arbitrary code",
		Languages: python,
	},
	{
		ID: "shell-true", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`\bsubprocess\.\w+\(.*shell\s*=\s*True`),
		Message:    "Subprocess started with shell=True",
		Suggestion: "Pass an argument list and keep shell=False",
		Languages:  python,
	},
	{
		ID: "os-system", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\bos\.(?:system|popen)\s*\(`), Message: "Shell command execution via os.system",
		Languages: python,
	},
	{
		ID: "child-process", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`(?:\bchild_process\.|(?:^|[^\w.]))exec(?:Sync)?\s*\(\s*(?:[^"'\s)]|["'][^"']*["']\s*\+)`),
		Message: "Shell command built from dynamic input", Scope: rules.ScopeRaw,
		Languages: jsLike,
	},
	{
		ID: "php-shell", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern: regexp.MustCompile(`\b(?:shell_exec|system|passthru|exec|popen)\s*\(\s*\$`), Message: "Shell command built from a variable",
		Languages: rules.Only(language.PHP),
	},
	{
		ID: "weak-hash", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern:    regexp.MustCompile(`(?i)(?:hashlib\.|createHash\(\s*["']|MessageDigest\.getInstance\(\s*["']|\bDigest::)(md5|sha1)\b`),
		Message:    "Weak hash algorithm '${1}'",
		Suggestion: "Use SHA-256 or stronger",
		Scope:      rules.ScopeRaw,
	},
	{
		ID: "weak-hash", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\b(md5|sha1)\s*\(`), Message: "Weak hash algorithm '${1}'",
		Languages: rules.Only(language.PHP),
	},
	{
		ID: "sql-concat", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`(?i)["'](?:SELECT|INSERT|UPDATE|DELETE)\b[^"']*["']\s*(?:\+|\.\s*\$|%\s*[\w(])`),
		Message:    "Possible SQL injection via string concatenation",
		Suggestion: "Use parameterized queries",
		Scope:      rules.ScopeRaw,
	},
	{
		ID: "sql-interpolation", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`(?i)(?:\bf["']|\x60)\s*(?:SELECT|INSERT|UPDATE|DELETE)\b[^"'\x60]*(?:\{|\$\{)`),
		Message:    "Possible SQL injection via string interpolation",
		Suggestion: "Use parameterized queries",
		Scope:      rules.ScopeRaw,
		Languages:  rules.Only(language.Python, language.JavaScript, language.TypeScript),
	},
	{
		ID: "inner-html", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\.(?:innerHTML|outerHTML)\s*=[^=]|\bdocument\.write\s*\(`), Message: "Unescaped HTML insertion may allow XSS",
		Languages: jsLike,
	},
	{
		ID: "pickle", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\b(?:c?pickle|marshal)\.loads?\s*\(`), Message: "Deserializing untrusted data with pickle",
		Languages: python,
	},
	{
		ID: "yaml-load", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\byaml\.load\s*\(`), Unless: regexp.MustCompile(`SafeLoader|CSafeLoader`),
		Message: "yaml.load without SafeLoader can construct arbitrary objects", Suggestion: "Use yaml.safe_load",
		Languages: python,
	},
	{
		ID: "insecure-tls", Category: assess.CategorySecurity, Severity: assess.SeverityError,
		Pattern:    regexp.MustCompile(`\bInsecureSkipVerify\s*:\s*true|\bverify\s*=\s*False\b|\brejectUnauthorized\s*:\s*false|NODE_TLS_REJECT_UNAUTHORIZED`),
		Message:    "TLS certificate verification disabled",
		Suggestion: "Keep certificate verification enabled",
		Scope:      rules.ScopeRaw,
	},
	{
		ID: "unsafe-copy", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\b(strcpy|strcat|sprintf)\s*\(`), Message: "Unbounded buffer write with '${1}'",
		Languages: rules.Only(language.C, language.CPP),
	},
	{
		ID: "curl-pipe-shell", Category: assess.CategorySecurity, Severity: assess.SeverityWarning,
		Pattern: regexp.MustCompile(`\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?(?:ba|z)?sh\b`), Message: "Remote script piped into a shell",
		Languages: rules.Only(language.Shell),
	},
}

// Heuristic is the pattern-based security engine. Its findings yield to
// the structural scanner on lines both report.
type Heuristic struct {
	rules []rules.Rule
}

// NewHeuristic returns a Heuristic with HeuristicRules.
func NewHeuristic() *Heuristic { return &Heuristic{rules: HeuristicRules} }

func (h *Heuristic) Analyze(ctx context.Context, code string, lang language.Language) ([]assess.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rules.Scan(code, lang, h.rules), nil
}
