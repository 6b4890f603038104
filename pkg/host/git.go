package host

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitHost implements ManifestFetcher and MergeResolver over a local git
// repository. Gate execution stays with a runner; a repository cannot run
// gates.
type GitHost struct {
	repo *git.Repository
}

// OpenGit opens an existing repository at path.
func OpenGit(path string) (*GitHost, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &GitHost{repo: repo}, nil
}

// FetchPatchManifest lists the paths touched by the commit patchRef
// resolves to, relative to its first parent. Root commits report every
// path they introduce.
func (g *GitHost) FetchPatchManifest(_ context.Context, patchRef string) ([]string, error) {
	commit, err := g.resolveCommit(patchRef)
	if err != nil {
		return nil, err
	}

	parent, err := commit.Parent(0)
	if errors.Is(err, object.ErrParentNotFound) {
		stats, err := commit.Stats()
		if err != nil {
			return nil, fmt.Errorf("stats for root commit %s: %w", patchRef, err)
		}
		paths := make([]string, 0, len(stats))
		for _, s := range stats {
			paths = append(paths, s.Name)
		}
		sort.Strings(paths)
		return paths, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %w", patchRef, err)
	}

	patch, err := parent.Patch(commit)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", patchRef, err)
	}
	seen := make(map[string]bool)
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if from != nil {
			seen[from.Path()] = true
		}
		if to != nil {
			seen[to.Path()] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// ResolveMerge resolves patchRef to its full commit hash, which serves as
// the merge ref recorded in the advancement event.
func (g *GitHost) ResolveMerge(_ context.Context, patchRef string) (string, error) {
	commit, err := g.resolveCommit(patchRef)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func (g *GitHost) resolveCommit(ref string) (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, err)
	}
	commit, err := g.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	return commit, nil
}
