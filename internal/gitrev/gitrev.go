// Package gitrev reads file contents as they were at a git revision.
package gitrev

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotInRevision is returned when the file does not exist at the revision.
var ErrNotInRevision = errors.New("file not present at revision")

// Snapshot is a file read from history.
type Snapshot struct {
	Path     string // slash separated, relative to the repository root
	Revision string
	Commit   string
	Contents string
}

// ReadFile returns path as recorded at rev in the repository enclosing it.
// rev accepts anything go-git resolves: HEAD~1, branch and tag names,
// full or short hashes.
func ReadFile(path, rev string) (*Snapshot, error) {
	abs, err := resolve(path)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository for %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository has no worktree: %w", err)
	}
	root, err := resolve(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%s is outside repository %s", path, root)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}

	rel = filepath.ToSlash(rel)
	file, err := commit.File(rel)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%s at %s: %w", rel, rev, ErrNotInRevision)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", rel, rev, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", rel, rev, err)
	}
	return &Snapshot{Path: rel, Revision: rev, Commit: hash.String(), Contents: contents}, nil
}

// resolve makes path absolute with symlinks evaluated, so that the
// worktree root and the file agree on a prefix.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir, base := filepath.Split(abs)
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(real, base), nil
	}
	return abs, nil
}
