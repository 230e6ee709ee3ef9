package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/types"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
)

// ErrNotRepository is returned when the path is not inside a git repository
var ErrNotRepository = errors.New("not a git repository")

// DetachedHead is reported as the branch of a detached checkout
const DetachedHead = "HEAD"

// Client reads the state of local checkouts
type Client struct {
	logger zerolog.Logger
}

// NewClient creates a git client
func NewClient() *Client {
	return &Client{logger: log.WithComponent("git")}
}

// Status returns branch, head commit, dirty flag and the distance to the
// upstream branch of the repository containing repoPath. Ahead and Behind
// are zero when the branch tracks nothing.
func (c *Client) Status(ctx context.Context, repoPath string) (*types.GitStatus, error) {
	repo, err := gogit.PlainOpenWithOptions(repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	status := &types.GitStatus{
		Branch: DetachedHead,
		Commit: head.Hash().String()[:7],
	}
	if head.Name().IsBranch() {
		status.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	wtStatus, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}
	status.Dirty = !wtStatus.IsClean()

	if status.Branch != DetachedHead {
		upstream, err := upstreamHash(repo, status.Branch)
		if err != nil {
			c.logger.Debug().Err(err).Str("repo", repoPath).Msg("No upstream to compare against")
		} else if upstream != head.Hash() {
			status.Ahead, status.Behind, err = distance(ctx, repo, head.Hash(), upstream)
			if err != nil {
				return nil, err
			}
		}
	}

	return status, nil
}

func upstreamHash(repo *gogit.Repository, branch string) (plumbing.Hash, error) {
	cfg, err := repo.Config()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	b, ok := cfg.Branches[branch]
	if !ok || b.Remote == "" || b.Merge == "" {
		return plumbing.ZeroHash, fmt.Errorf("branch %s has no upstream", branch)
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(b.Remote, b.Merge.Short()), true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// distance counts commits reachable from head but not upstream, and the reverse
func distance(ctx context.Context, repo *gogit.Repository, head, upstream plumbing.Hash) (ahead, behind int, err error) {
	fromHead, err := ancestors(ctx, repo, head)
	if err != nil {
		return 0, 0, err
	}
	fromUpstream, err := ancestors(ctx, repo, upstream)
	if err != nil {
		return 0, 0, err
	}

	for h := range fromHead {
		if _, ok := fromUpstream[h]; !ok {
			ahead++
		}
	}
	for h := range fromUpstream {
		if _, ok := fromHead[h]; !ok {
			behind++
		}
	}
	return ahead, behind, nil
}

func ancestors(ctx context.Context, repo *gogit.Repository, from plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	iter, err := repo.Log(&gogit.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history from %s: %w", from, err)
	}
	defer iter.Close()

	seen := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[commit.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}
