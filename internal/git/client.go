package git

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultMaxFiles caps the number of files a single clone may create
	DefaultMaxFiles = 10 * 1000
	// DefaultMaxTotalSize caps the number of bytes a single clone may write
	DefaultMaxTotalSize = 100 * 1024 * 1024
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository with the given configuration
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// Worktree returns the checked out files of a cloned repository
	Worktree(repoInfo *RepositoryInfo) (billy.Filesystem, error)

	// Cleanup releases the in-memory state of a cloned repository
	Cleanup(ctx context.Context, repoInfo *RepositoryInfo) error
}

// ClientOption configures the default client
type ClientOption func(*defaultGitClient)

// WithLimits overrides the per-clone file count and total size limits
func WithLimits(maxFiles, maxTotalSize int64) ClientOption {
	return func(c *defaultGitClient) {
		c.maxFiles = maxFiles
		c.maxTotalSize = maxTotalSize
	}
}

// defaultGitClient implements Client using go-git with in-memory storage
type defaultGitClient struct {
	maxFiles     int64
	maxTotalSize int64
}

// NewDefaultGitClient creates a new go-git backed client
func NewDefaultGitClient(opts ...ClientOption) Client {
	c := &defaultGitClient{
		maxFiles:     DefaultMaxFiles,
		maxTotalSize: DefaultMaxTotalSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clone performs a shallow, single branch clone into memory
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("clone config requires a repository URL")
	}

	cloneOptions := &git.CloneOptions{
		URL:   config.URL,
		Depth: 1,
		Tags:  git.NoTags,
	}
	if config.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(config.Branch)
		cloneOptions.SingleBranch = true
	}
	if config.Proxy != "" {
		cloneOptions.ProxyOptions = transport.ProxyOptions{URL: config.Proxy}
		slog.Debug("Using proxy for git clone", "url", config.URL)
	}

	// go-git wants separate filesystems for the storer and the checked out files.
	// Both are bounded so a hostile repository cannot exhaust memory.
	workFs := &LimitedFs{
		Fs:            memfs.New(),
		MaxFiles:      c.maxFiles,
		TotalFileSize: c.maxTotalSize,
	}
	storerFs := &LimitedFs{
		Fs:            memfs.New(),
		MaxFiles:      c.maxFiles,
		TotalFileSize: c.maxTotalSize,
	}
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, workFs, cloneOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository %s: %w", config.URL, err)
	}

	repoInfo := &RepositoryInfo{
		Repository:       repo,
		RemoteURL:        config.URL,
		storerFilesystem: storerFs,
		objectCache:      storerCache,
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}
	repoInfo.Commit = ref.Hash().String()

	slog.Debug("Cloned repository",
		"url", config.URL,
		"branch", repoInfo.Branch,
		"commit", repoInfo.Commit)

	return repoInfo, nil
}

// Worktree returns the filesystem holding the checked out files
func (*defaultGitClient) Worktree(repoInfo *RepositoryInfo) (billy.Filesystem, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return nil, ErrRepositoryNil
	}
	wt, err := repoInfo.Repository.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	return wt.Filesystem, nil
}

// Cleanup clears the caches and in-memory filesystems of a clone
func (*defaultGitClient) Cleanup(_ context.Context, repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return ErrRepositoryNil
	}

	if repoInfo.objectCache != nil {
		repoInfo.objectCache.Clear()
	}

	worktree, err := repoInfo.Repository.Worktree()
	if err == nil && worktree.Filesystem != nil {
		_ = util.RemoveAll(worktree.Filesystem, "/")
	}

	if repoInfo.storerFilesystem != nil {
		_ = util.RemoveAll(repoInfo.storerFilesystem, "/")
	}

	repoInfo.objectCache = nil
	repoInfo.storerFilesystem = nil
	repoInfo.Repository = nil

	runtime.GC()
	return nil
}
