// Package manifest discovers dependency manifests in a project tree and
// extracts pinned dependency versions from them.
package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/fulmenhq/codescore/pkg/ignore"
	"github.com/fulmenhq/codescore/pkg/logger"
	"github.com/fulmenhq/codescore/pkg/safeio"
)

// Ecosystem names follow the OSV schema.
const (
	EcosystemNPM      = "npm"
	EcosystemPyPI     = "PyPI"
	EcosystemGo       = "Go"
	EcosystemCrates   = "crates.io"
	EcosystemRubyGems = "RubyGems"
)

// Dependency is one pinned dependency found in a manifest.
type Dependency struct {
	Name      string
	Ecosystem string
	Version   string
	Manifest  string // path relative to the project root
}

type parser func(data []byte) ([]Dependency, error)

var parsers = []struct {
	pattern string
	parse   parser
}{
	{"package.json", parsePackageJSON},
	{"requirements*.txt", parseRequirements},
	{"go.mod", parseGoMod},
	{"Cargo.toml", parseCargoToml},
	{"pyproject.toml", parsePyProject},
	{"Gemfile.lock", parseGemfileLock},
}

// Discover returns manifest paths under root, relative to root, sorted.
// Paths ignored by the project's .gitignore or .codescoreignore, and
// vendored trees such as node_modules, are skipped. excludes are extra
// doublestar patterns matched against the relative path.
func Discover(root string, excludes ...string) ([]string, error) {
	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules for %s: %w", root, err)
	}
	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		for _, ex := range excludes {
			if ok, _ := doublestar.Match(ex, rel); ok {
				return nil
			}
		}
		if parserFor(d.Name()) != nil {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover manifests in %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}

func parserFor(base string) parser {
	for _, p := range parsers {
		if ok, _ := doublestar.Match(p.pattern, base); ok {
			return p.parse
		}
	}
	return nil
}

// Parse extracts dependencies from one manifest, chosen by file name.
func Parse(name string, data []byte) ([]Dependency, error) {
	p := parserFor(filepath.Base(name))
	if p == nil {
		return nil, fmt.Errorf("unsupported manifest: %s", name)
	}
	deps, err := p(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for i := range deps {
		deps[i].Manifest = filepath.ToSlash(name)
	}
	return deps, nil
}

// Collect discovers and parses every manifest under root. Unparseable
// manifests are logged and skipped. The result is deduplicated by
// (ecosystem, name, version).
func Collect(root string) ([]Dependency, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []Dependency
	for _, rel := range paths {
		data, err := safeio.ReadFileContained(root, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			logger.Warn("Skipping unreadable manifest", logger.String("path", rel), logger.Err(err))
			continue
		}
		deps, err := Parse(rel, data)
		if err != nil {
			logger.Warn("Skipping malformed manifest", logger.String("path", rel), logger.Err(err))
			continue
		}
		for _, d := range deps {
			k := d.Ecosystem + "\x00" + d.Name + "\x00" + d.Version
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, d)
		}
	}
	return out, nil
}

var exactVersionRe = regexp.MustCompile(`^v?\d+(\.\d+)*([-+][0-9A-Za-z.\-+]+)?$`)

// pinnedVersion strips range operators and returns ok only when what
// remains is a single concrete version.
func pinnedVersion(spec string) (string, bool) {
	v := strings.TrimSpace(spec)
	v = strings.TrimLeft(v, "^~=v ")
	if strings.ContainsAny(v, "<>*|, ") || !exactVersionRe.MatchString(v) {
		return "", false
	}
	return v, true
}

func parsePackageJSON(data []byte) ([]Dependency, error) {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	var out []Dependency
	for _, set := range []map[string]string{pkg.Dependencies, pkg.DevDependencies} {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if v, ok := pinnedVersion(set[n]); ok {
				out = append(out, Dependency{Name: n, Ecosystem: EcosystemNPM, Version: v})
			}
		}
	}
	return out, nil
}

var requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*===?\s*([^\s;#]+)`)

func parseRequirements(data []byte) ([]Dependency, error) {
	var out []Dependency
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if m := requirementRe.FindStringSubmatch(line); m != nil {
			out = append(out, Dependency{Name: m[1], Ecosystem: EcosystemPyPI, Version: m[3]})
		}
	}
	return out, sc.Err()
}

func parseGoMod(data []byte) ([]Dependency, error) {
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Dependency, 0, len(f.Require))
	for _, r := range f.Require {
		out = append(out, Dependency{Name: r.Mod.Path, Ecosystem: EcosystemGo, Version: r.Mod.Version})
	}
	return out, nil
}

func parseCargoToml(data []byte) ([]Dependency, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var out []Dependency
	for _, section := range []string{"dependencies", "dev-dependencies", "build-dependencies"} {
		table, _ := doc[section].(map[string]any)
		out = append(out, tableDeps(table, EcosystemCrates)...)
	}
	return out, nil
}

// tableDeps reads name = "1.0" and name = { version = "1.0" } entries.
func tableDeps(table map[string]any, ecosystem string) []Dependency {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []Dependency
	for _, n := range names {
		var spec string
		switch v := table[n].(type) {
		case string:
			spec = v
		case map[string]any:
			spec, _ = v["version"].(string)
		}
		if v, ok := pinnedVersion(spec); ok {
			out = append(out, Dependency{Name: n, Ecosystem: ecosystem, Version: v})
		}
	}
	return out
}

func parsePyProject(data []byte) ([]Dependency, error) {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var out []Dependency
	for _, req := range doc.Project.Dependencies {
		if m := requirementRe.FindStringSubmatch(strings.TrimSpace(req)); m != nil {
			out = append(out, Dependency{Name: m[1], Ecosystem: EcosystemPyPI, Version: m[3]})
		}
	}
	poetry := doc.Tool.Poetry.Dependencies
	delete(poetry, "python")
	out = append(out, tableDeps(poetry, EcosystemPyPI)...)
	return out, nil
}

var gemSpecRe = regexp.MustCompile(`^    ([A-Za-z0-9_.-]+) \(([^)\s]+)\)$`)

func parseGemfileLock(data []byte) ([]Dependency, error) {
	var out []Dependency
	inSpecs := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "  specs:":
			inSpecs = true
			continue
		case line == "" || !strings.HasPrefix(line, " "):
			inSpecs = false
			continue
		}
		if !inSpecs {
			continue
		}
		if m := gemSpecRe.FindStringSubmatch(line); m != nil {
			out = append(out, Dependency{Name: m[1], Ecosystem: EcosystemRubyGems, Version: m[2]})
		}
	}
	return out, sc.Err()
}
