// Package changedetect determines which files changed or were deleted
// since a reference point, driving the indexing orchestrator's
// incremental pipeline. It prefers the repository's own diff mechanism
// (go-git, in-process — no git subprocess) and falls back to a per-file
// content-hash table when the repository is not under source control.
package changedetect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Snapshot is the result of a detection pass: paths relative to repo_path,
// POSIX-separated, partitioned into changed and deleted.
type Snapshot struct {
	ChangedFiles []string
	DeletedFiles []string
}

// Detector returns (changed_files, deleted_files) since a reference state.
type Detector interface {
	Detect(ctx context.Context, repoPath string) (Snapshot, error)
}

// GitDetector diffs HEAD's committed tree against a reference commit
// using go-git, entirely in-process. Uncommitted working-tree changes are
// not reported.
type GitDetector struct {
	// RefCommit is the full hex commit hash to diff against (ref names are
	// not resolved). Empty means "diff HEAD against its first parent"
	// (i.e. the last commit).
	RefCommit string
}

// NewGitDetector builds a Detector that compares HEAD's tree against
// refCommit (or against HEAD~1 when refCommit is empty).
func NewGitDetector(refCommit string) *GitDetector {
	return &GitDetector{RefCommit: refCommit}
}

func (d *GitDetector) Detect(ctx context.Context, repoPath string) (Snapshot, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("changedetect: open repo: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return Snapshot{}, fmt.Errorf("changedetect: resolve HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return Snapshot{}, fmt.Errorf("changedetect: load HEAD commit: %w", err)
	}

	var baseCommit *object.Commit
	if d.RefCommit != "" {
		hash := plumbing.NewHash(d.RefCommit)
		baseCommit, err = repo.CommitObject(hash)
		if err != nil {
			return Snapshot{}, fmt.Errorf("changedetect: resolve ref %s: %w", d.RefCommit, err)
		}
	} else if headCommit.NumParents() > 0 {
		baseCommit, err = headCommit.Parent(0)
		if err != nil {
			return Snapshot{}, fmt.Errorf("changedetect: resolve HEAD parent: %w", err)
		}
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return Snapshot{}, fmt.Errorf("changedetect: load HEAD tree: %w", err)
	}

	var baseTree *object.Tree
	if baseCommit != nil {
		baseTree, err = baseCommit.Tree()
		if err != nil {
			return Snapshot{}, fmt.Errorf("changedetect: load base tree: %w", err)
		}
	}

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return Snapshot{}, fmt.Errorf("changedetect: diff trees: %w", err)
	}

	var snap Snapshot
	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			continue
		}
		path := filepath.ToSlash(changePath(c))
		switch action {
		case merkletrie.Delete:
			snap.DeletedFiles = append(snap.DeletedFiles, path)
		default:
			snap.ChangedFiles = append(snap.ChangedFiles, path)
		}
	}

	sort.Strings(snap.ChangedFiles)
	sort.Strings(snap.DeletedFiles)
	return snap, nil
}

func changePath(c *object.Change) string {
	if c.To.Name != "" {
		return c.To.Name
	}
	return c.From.Name
}

// HashDetector is the fallback used when repo_path is not under source
// control: it compares a freshly-computed per-file content hash table
// against the previous run's table.
type HashDetector struct {
	Previous map[string]string // relative path -> sha256 hex
	Include  func(relPath string) bool
}

// Detect walks repoPath, hashes every included file, and diffs the result
// against d.Previous. Returns the new hash table alongside the snapshot so
// callers can persist it for the next run.
func (d *HashDetector) Detect(ctx context.Context, repoPath string) (Snapshot, map[string]string, error) {
	current := make(map[string]string)

	err := filepath.WalkDir(repoPath, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.Include != nil && !d.Include(rel) {
			return nil
		}
		h, err := hashFile(path)
		if err != nil {
			return err
		}
		current[rel] = h
		return nil
	})
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("changedetect: walk: %w", err)
	}

	var snap Snapshot
	for rel, hash := range current {
		if prev, ok := d.Previous[rel]; !ok || prev != hash {
			snap.ChangedFiles = append(snap.ChangedFiles, rel)
		}
	}
	for rel := range d.Previous {
		if _, ok := current[rel]; !ok {
			snap.DeletedFiles = append(snap.DeletedFiles, rel)
		}
	}
	sort.Strings(snap.ChangedFiles)
	sort.Strings(snap.DeletedFiles)
	return snap, current, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
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

// IsGitRepo reports whether repoPath is (or is inside) a git working tree,
// used to pick between GitDetector and HashDetector.
func IsGitRepo(repoPath string) bool {
	_, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// HeadHash resolves repoPath's current HEAD commit hash entirely
// in-process, replacing a shelled-out `git rev-parse HEAD` for callers
// that only need a cheap "has anything changed" fingerprint (the sync
// daemon's poll loop) rather than a full Detect pass.
func HeadHash(repoPath string) (string, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("changedetect: open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("changedetect: resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// cleanRelPath normalizes a detector-returned path the same way for both
// strategies, guarding against "./"-prefixed or backslash-separated input.
func cleanRelPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}
