// Package ignore decides which project paths are excluded from manifest
// discovery, using gitignore semantics from go-git.
package ignore

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the project-level override file, read after .gitignore.
const FileName = ".codescoreignore"

// defaultPatterns apply to every project.
var defaultPatterns = []string{
	".git/", ".hg/", ".svn/",
	"node_modules/", "vendor/", "__pycache__/", ".venv/", "venv/",
	"target/", "dist/", "build/",
}

// Matcher filters paths relative to a project root.
type Matcher struct {
	matcher gitignore.Matcher
}

// NewMatcher layers the default patterns, every .gitignore under root and
// root/.codescoreignore. Later layers win, so a "!" line in
// .codescoreignore can re-include a gitignored path.
func NewMatcher(root string) (*Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range defaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(root), nil); err == nil {
		patterns = append(patterns, gitPatterns...)
	}

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case err == nil:
		for _, line := range parseLines(data) {
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	return &Matcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

func parseLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Match reports whether rel, a slash separated path relative to the
// matcher's root, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	parts := splitPath(rel)
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return nil
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}
