package security

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/fulmenhq/codescore/internal/assess"
)

var weakCrypto = map[string]bool{
	"crypto/md5": true, "crypto/sha1": true, "crypto/des": true, "crypto/rc4": true,
}

var shells = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "/bin/sh": true, "/bin/bash": true, "cmd": true, "cmd.exe": true, "powershell": true,
}

var sqlMethods = map[string]int{
	"Query": 0, "QueryRow": 0, "Exec": 0, "Prepare": 0,
	"QueryContext": 1, "QueryRowContext": 1, "ExecContext": 1, "PrepareContext": 1,
}

var permCalls = map[string]bool{"WriteFile": true, "Chmod": true, "OpenFile": true, "Mkdir": true, "MkdirAll": true}

var secretName = regexp.MustCompile(`(?i)password|passwd|pwd|secret|api_?key|access_?key|auth_?token|private_?key`)

// parseGo parses a Go file, retrying with a synthetic package clause so
// that fragments can be checked. The returned offset is the number of
// lines to subtract from reported positions.
func parseGo(code string) (*token.FileSet, *ast.File, int, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "input.go", code, parser.SkipObjectResolution)
	if err == nil {
		return fset, f, 0, nil
	}
	if strings.HasPrefix(strings.TrimSpace(code), "package ") {
		return nil, nil, 0, err
	}
	fset = token.NewFileSet()
	f, err2 := parser.ParseFile(fset, "input.go", "package snippet\n"+code, parser.SkipObjectResolution)
	if err2 != nil {
		return nil, nil, 0, err
	}
	return fset, f, 1, nil
}

// goFindings runs the structural Go checks. Unparseable input yields none.
func goFindings(code string) []assess.Issue {
	fset, f, shift, err := parseGo(code)
	if err != nil {
		return nil
	}

	var out []assess.Issue
	report := func(n ast.Node, sev assess.Severity, rule, msg, suggestion string) {
		pos := fset.Position(n.Pos())
		out = append(out, assess.Issue{
			Category:   assess.CategorySecurity,
			Severity:   sev,
			Message:    msg,
			Line:       pos.Line - shift,
			Column:     pos.Column,
			Suggestion: suggestion,
			Rule:       rule,
		})
	}

	in := inspector.New([]*ast.File{f})
	filter := []ast.Node{
		(*ast.ImportSpec)(nil),
		(*ast.KeyValueExpr)(nil),
		(*ast.AssignStmt)(nil),
		(*ast.ValueSpec)(nil),
		(*ast.CallExpr)(nil),
	}
	in.Preorder(filter, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.ImportSpec:
			path, _ := strconv.Unquote(n.Path.Value)
			if weakCrypto[path] {
				report(n, assess.SeverityWarning, "go-weak-crypto",
					fmt.Sprintf("Weak cryptographic primitive imported: %s", path), "Use crypto/sha256 or stronger")
			}

		case *ast.KeyValueExpr:
			key, ok := n.Key.(*ast.Ident)
			if !ok {
				return
			}
			if key.Name == "InsecureSkipVerify" && isTrue(n.Value) {
				report(n, assess.SeverityError, "go-insecure-tls", "TLS certificate verification disabled", "Keep certificate verification enabled")
				return
			}
			if isSecretLiteral(key.Name, n.Value) {
				report(n, assess.SeverityError, "go-hardcoded-secret", credentialMessage(key.Name), secretSuggestion)
			}

		case *ast.AssignStmt:
			for i, lhs := range n.Lhs {
				if i >= len(n.Rhs) {
					break
				}
				name := exprName(lhs)
				if name == "InsecureSkipVerify" && isTrue(n.Rhs[i]) {
					report(n, assess.SeverityError, "go-insecure-tls", "TLS certificate verification disabled", "Keep certificate verification enabled")
					continue
				}
				if isSecretLiteral(name, n.Rhs[i]) {
					report(n, assess.SeverityError, "go-hardcoded-secret", credentialMessage(name), secretSuggestion)
				}
			}

		case *ast.ValueSpec:
			for i, id := range n.Names {
				if i >= len(n.Values) {
					break
				}
				if isSecretLiteral(id.Name, n.Values[i]) {
					report(id, assess.SeverityError, "go-hardcoded-secret", credentialMessage(id.Name), secretSuggestion)
				}
			}

		case *ast.CallExpr:
			checkCall(n, report)
		}
	})
	return out
}

func checkCall(call *ast.CallExpr, report func(ast.Node, assess.Severity, string, string, string)) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	pkg := ""
	if id, ok := sel.X.(*ast.Ident); ok {
		pkg = id.Name
	}

	switch {
	case pkg == "exec" && (sel.Sel.Name == "Command" || sel.Sel.Name == "CommandContext"):
		first := 0
		if sel.Sel.Name == "CommandContext" {
			first = 1
		}
		if len(call.Args) <= first {
			return
		}
		name, isLit := stringLit(call.Args[first])
		switch {
		case !isLit:
			report(call, assess.SeverityWarning, "go-exec-dynamic", "Subprocess launched with a non-constant command", "Use a fixed binary path")
		case shells[name] && len(call.Args) > first+1:
			if flag, ok := stringLit(call.Args[first+1]); ok && (flag == "-c" || strings.EqualFold(flag, "/c")) {
				report(call, assess.SeverityError, "go-exec-shell", "Shell command execution via exec.Command", "Invoke the program directly with an argument list")
			}
		}

	case pkg == "os" && permCalls[sel.Sel.Name] && len(call.Args) > 0:
		if mode, ok := intLit(call.Args[len(call.Args)-1]); ok && mode&0o002 != 0 {
			report(call, assess.SeverityWarning, "go-world-writable", fmt.Sprintf("World-writable permissions %#o", mode), "Restrict permissions to 0600 or 0644")
		}

	default:
		idx, ok := sqlMethods[sel.Sel.Name]
		if !ok || len(call.Args) <= idx {
			return
		}
		if dynamicString(call.Args[idx]) {
			report(call, assess.SeverityError, "go-sql-injection", "SQL query built from dynamic input", "Use query placeholders and pass values as arguments")
		}
	}
}

// dynamicString reports whether e concatenates or formats non-constant text.
func dynamicString(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return dynamicString(e.X)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return false
		}
		return !isConstString(e.X) || !isConstString(e.Y)
	case *ast.CallExpr:
		if sel, ok := e.Fun.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == "fmt" && sel.Sel.Name == "Sprintf" {
				return true
			}
		}
	}
	return false
}

func isConstString(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.BasicLit:
		return e.Kind == token.STRING
	case *ast.ParenExpr:
		return isConstString(e.X)
	case *ast.BinaryExpr:
		return e.Op == token.ADD && isConstString(e.X) && isConstString(e.Y)
	}
	return false
}

func isTrue(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "true"
}

func exprName(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return e.Sel.Name
	}
	return ""
}

func stringLit(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	return s, err == nil
}

func intLit(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, false
	}
	v, err := strconv.ParseInt(lit.Value, 0, 64)
	return v, err == nil
}

const secretSuggestion = "Load secrets from the environment or a secret store"

// isSecretLiteral reports a string literal of at least four characters
// assigned to a credential-like name.
func isSecretLiteral(name string, value ast.Expr) bool {
	if name == "" || !secretName.MatchString(name) {
		return false
	}
	s, ok := stringLit(value)
	return ok && len(strings.TrimSpace(s)) >= 4
}

func credentialMessage(name string) string {
	return fmt.Sprintf("Hardcoded credential in '%s'", name)
}
