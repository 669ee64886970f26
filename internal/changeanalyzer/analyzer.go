// Package changeanalyzer implements the Change Analyzer (spec §4.B): for a
// project, it produces a file-hash map composed from VCS-tracked object
// hashes plus streaming hashes of untracked files, or reports the project
// as Unavailable when VCS integration can't be used.
package changeanalyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/gobwas/glob"

	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/errors"
)

// Analyzer is the capability interface the task runner depends on (spec §9:
// explicit interfaces supplied at construction, not a plugin registry).
type Analyzer interface {
	GetPackageDeps(ctx context.Context, project *component.Project) (FileHashMap, error)
}

// GitAnalyzer implements Analyzer against a git repository. It is
// constructed once per run and reused across projects: opening the
// repository is the expensive part, not per-project analysis.
type GitAnalyzer struct {
	repo *git.Repository
}

// NewGitAnalyzer opens the git repository containing root (searching parent
// directories for .git, same as `git rev-parse --show-toplevel`). It returns
// AnalyzerUnavailable, not an error a caller should treat as fatal, when no
// repository is found or it can't be opened — per spec §4.B this degrades
// every project to "uncacheable / always run fully" rather than aborting
// the build.
func NewGitAnalyzer(root string) (*GitAnalyzer, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.AnalyzerUnavailable{Project: root, Reason: err.Error()}
	}

	return &GitAnalyzer{repo: repo}, nil
}

// GetPackageDeps implements Analyzer. Algorithm (spec §4.B): start from
// VCS-tracked files under the project folder with their object hashes;
// overlay untracked-but-not-ignored files' streaming hashes; filter out
// files matching the project's declared ignore patterns; sort by path.
func (a *GitAnalyzer) GetPackageDeps(ctx context.Context, project *component.Project) (FileHashMap, error) {
	if a == nil || a.repo == nil {
		return FileHashMap{}, errors.AnalyzerUnavailable{Project: project.Name, Reason: "no repository"}
	}

	ignore, err := compileIgnorePatterns(project.IgnorePatterns)
	if err != nil {
		return FileHashMap{}, errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
	}

	entries := map[string]string{}

	if err := a.overlayTracked(project, ignore, entries); err != nil {
		return FileHashMap{}, err
	}

	if err := a.overlayUntracked(ctx, project, ignore, entries); err != nil {
		return FileHashMap{}, err
	}

	out := make([]FileEntry, 0, len(entries))
	for path, hash := range entries {
		out = append(out, FileEntry{Path: path, Hash: hash})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return FileHashMap{Files: out}, nil
}

func (a *GitAnalyzer) overlayTracked(project *component.Project, ignore []glob.Glob, into map[string]string) error {
	head, err := a.repo.Head()
	if err != nil {
		// An empty repository (no commits yet) has no tracked files; that
		// is not an error, just an empty tree to overlay untracked files on.
		return nil
	}

	commit, err := a.repo.CommitObject(head.Hash())
	if err != nil {
		return errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
	}

	tree, err := commit.Tree()
	if err != nil {
		return errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
	}

	prefix := toPosix(project.RelDir)

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
		}

		if !entry.Mode.IsFile() {
			continue
		}

		relPath := toPosix(name)
		if !underPrefix(relPath, prefix) {
			continue
		}

		if matchesAny(ignore, relPath) {
			continue
		}

		into[relPath] = entry.Hash.String()
	}

	return nil
}

func (a *GitAnalyzer) overlayUntracked(ctx context.Context, project *component.Project, ignore []glob.Glob, into map[string]string) error {
	wt, err := a.repo.Worktree()
	if err != nil {
		return errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
	}

	status, err := wt.Status()
	if err != nil {
		return errors.AnalyzerUnavailable{Project: project.Name, Reason: err.Error()}
	}

	prefix := toPosix(project.RelDir)

	for path, st := range status {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if st.Worktree != git.Untracked {
			continue
		}

		relPath := toPosix(path)
		if !underPrefix(relPath, prefix) {
			continue
		}

		if matchesAny(ignore, relPath) {
			continue
		}

		hash, err := streamingHash(wt.Filesystem, filepath.FromSlash(relPath))
		if err != nil {
			continue // file vanished between status() and hashing; skip it
		}

		into[relPath] = hash
	}

	return nil
}

// streamingHash hashes a worktree-relative path through the worktree's own
// billy.Filesystem rather than os.Open directly, so untracked-file hashing
// goes through the same filesystem abstraction go-git itself uses for
// status and checkout.
func streamingHash(fs billy.Filesystem, relPath string) (string, error) {
	f, err := fs.Open(relPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func compileIgnorePatterns(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}

		out = append(out, g)
	}

	return out, nil
}

func matchesAny(patterns []glob.Glob, path string) bool {
	for _, g := range patterns {
		if g.Match(path) {
			return true
		}
	}

	return false
}

func toPosix(p string) string {
	return filepath.ToSlash(p)
}

func underPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "." {
		return true
	}

	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
