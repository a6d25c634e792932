// Package language classifies source text into a programming language using
// three ordered layers: file extension, shebang line, and weighted syntax
// patterns.
package language

import (
	"path/filepath"
	"strings"
)

// Language identifies a supported source language.
type Language string

const (
	Unknown    Language = "unknown"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	CSharp     Language = "csharp"
	Go         Language = "go"
	Rust       Language = "rust"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	Shell      Language = "shell"
)

// Method records which layer produced a DetectionResult.
type Method string

const (
	MethodExtension Method = "extension"
	MethodShebang   Method = "shebang"
	MethodSyntax    Method = "syntax"
	MethodUnknown   Method = "unknown"
)

// DetectionResult is the outcome of Classify. It is a value type and is
// never mutated after Classify returns it.
type DetectionResult struct {
	Language   Language `json:"language" yaml:"language"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Method     Method   `json:"method" yaml:"method"`
}

// Known reports whether the result names a real language.
func (d DetectionResult) Known() bool { return d.Language != Unknown && d.Language != "" }

var unknownResult = DetectionResult{Language: Unknown, Confidence: 0, Method: MethodUnknown}

var extensions = map[string]Language{
	".js": JavaScript, ".mjs": JavaScript, ".cjs": JavaScript, ".jsx": JavaScript,
	".ts": TypeScript, ".tsx": TypeScript, ".mts": TypeScript, ".cts": TypeScript,
	".py": Python, ".pyw": Python, ".pyi": Python,
	".java": Java,
	".c": C, ".h": C,
	".cpp": CPP, ".cc": CPP, ".cxx": CPP, ".c++": CPP, ".hpp": CPP, ".hh": CPP, ".hxx": CPP,
	".cs": CSharp,
	".go": Go,
	".rs": Rust,
	".rb": Ruby, ".rake": Ruby, ".gemspec": Ruby,
	".php": PHP, ".phtml": PHP,
	".sh": Shell, ".bash": Shell, ".zsh": Shell, ".ksh": Shell,
}

var basenames = map[string]Language{
	"rakefile": Ruby,
	"gemfile":  Ruby,
}

// Supported lists the languages the classifier can return, in specificity order.
func Supported() []Language {
	out := make([]Language, len(specificity))
	copy(out, specificity)
	return out
}

// Family groups languages that share comment and block syntax.
type Family string

const (
	FamilyCurly  Family = "curly"  // C, C++, Java, C#, Go, Rust, JS, TS, PHP
	FamilyPython Family = "python" // indentation blocks, # comments
	FamilyRuby   Family = "ruby"   // def/end blocks, # comments
	FamilyShell  Family = "shell"
	FamilyNone   Family = "none"
)

// FamilyOf returns the syntax family of lang.
func FamilyOf(lang Language) Family {
	switch lang {
	case Python:
		return FamilyPython
	case Ruby:
		return FamilyRuby
	case Shell:
		return FamilyShell
	case Unknown, "":
		return FamilyNone
	default:
		return FamilyCurly
	}
}

// IsJSLike reports whether lang is JavaScript or TypeScript.
func IsJSLike(lang Language) bool { return lang == JavaScript || lang == TypeScript }

// FromExtension maps a filename to a language using its lowercased suffix.
func FromExtension(filename string) (Language, bool) {
	if filename == "" {
		return Unknown, false
	}
	base := filepath.Base(filename)
	if lang, ok := basenames[strings.ToLower(base)]; ok {
		return lang, true
	}
	lang, ok := extensions[strings.ToLower(filepath.Ext(base))]
	return lang, ok
}

// Classify determines the language of content, using filename when given.
func Classify(content, filename string) DetectionResult {
	if strings.TrimSpace(content) == "" {
		return unknownResult
	}
	if looksBinary(content) {
		return unknownResult
	}

	if lang, ok := FromExtension(filename); ok {
		return DetectionResult{Language: lang, Confidence: 1.0, Method: MethodExtension}
	}
	if lang, ok := fromShebang(content); ok {
		return DetectionResult{Language: lang, Confidence: shebangConfidence, Method: MethodShebang}
	}
	if lang, score, ok := fromSyntax(content); ok {
		return DetectionResult{Language: lang, Confidence: syntaxConfidence(score), Method: MethodSyntax}
	}
	return unknownResult
}

const (
	binaryProbeBytes  = 512
	binaryControlRate = 0.10
)

// looksBinary reports whether more than 10% of the first 512 bytes are
// control characters other than tab, CR and LF.
func looksBinary(content string) bool {
	probe := content
	if len(probe) > binaryProbeBytes {
		probe = probe[:binaryProbeBytes]
	}
	control := 0
	for i := 0; i < len(probe); i++ {
		c := probe[i]
		if (c < 0x20 && c != '\t' && c != '\r' && c != '\n') || c == 0x7f {
			control++
		}
	}
	return float64(control) > binaryControlRate*float64(len(probe))
}
