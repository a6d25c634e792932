/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package formatting

import (
	"bytes"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RemoveBOM strips a leading UTF-8 byte order mark.
func RemoveBOM(input []byte) (out []byte, changed bool) {
	if bytes.HasPrefix(input, utf8BOM) {
		return input[len(utf8BOM):], true
	}
	return input, false
}

// NormalizeLineEndings converts CRLF and lone CR line endings to LF.
func NormalizeLineEndings(input []byte) (out []byte, changed bool) {
	if !bytes.ContainsRune(input, '\r') {
		return input, false
	}
	out = bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	return out, true
}

// NormalizeEOF trims trailing spaces and tabs from every line when asked
// and leaves exactly one trailing newline. Empty input stays empty.
func NormalizeEOF(input []byte, trimTrailingSpaces bool) (out []byte, changed bool) {
	if len(input) == 0 {
		return input, false
	}
	content := string(input)
	lines := strings.Split(content, "\n")
	if trimTrailingSpaces {
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
	}
	result := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if strings.TrimSpace(result) == "" {
		result = ""
	} else {
		result += "\n"
	}
	return []byte(result), result != content
}

// Finalize applies every whitespace normalization in order: byte order
// mark, line endings, trailing whitespace and the final newline.
func Finalize(input []byte) (out []byte, changed bool) {
	out, c1 := RemoveBOM(input)
	out, c2 := NormalizeLineEndings(out)
	out, c3 := NormalizeEOF(out, true)
	return out, c1 || c2 || c3
}
