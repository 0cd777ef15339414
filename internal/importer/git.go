package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cenkalti/backoff/v5"
	billy "github.com/go-git/go-billy/v5"

	"github.com/flowcraft/plugin-sources/internal/git"
)

// GitConfig holds the connection parameters of a git importer
type GitConfig struct {
	// Name is the source name
	Name string
	// RepoURL is the repository address
	RepoURL string
	// Branch is the branch holding the modules
	Branch string
	// Modules is the set of modules the importer may import
	Modules []string
	// Proxy is an optional proxy URL for the clone
	Proxy string
	// SecureOnly rejects repository URLs that are not https
	SecureOnly bool
}

// GitImporter imports modules from a git repository. The repository is cloned
// once, on the first Import, and reused until Close.
type GitImporter struct {
	config  GitConfig
	modules moduleSet
	opts    *options

	mu       sync.Mutex
	repo     *git.RepositoryInfo
	worktree billy.Filesystem
}

var _ Importer = (*GitImporter)(nil)

// NewGitImporter creates an importer for a git repository
func NewGitImporter(cfg GitConfig, opts ...Option) (*GitImporter, error) {
	if cfg.Name == "" {
		return nil, errors.New("git importer requires a source name")
	}
	if cfg.RepoURL == "" {
		return nil, errors.New("git importer requires a repository URL")
	}
	if cfg.SecureOnly {
		if err := requireTLS("repository", cfg.RepoURL); err != nil {
			return nil, err
		}
	}
	modules, err := newModuleSet(cfg.Modules)
	if err != nil {
		return nil, err
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.gitClient == nil {
		o.gitClient = git.NewDefaultGitClient()
	}
	cfg.Modules = modules.list()
	return &GitImporter{config: cfg, modules: modules, opts: o}, nil
}

// Source returns the source name
func (g *GitImporter) Source() string { return g.config.Name }

// Modules returns the bound module set
func (g *GitImporter) Modules() []string { return g.modules.list() }

// RepoURL returns the repository address
func (g *GitImporter) RepoURL() string { return g.config.RepoURL }

// Branch returns the branch modules are read from
func (g *GitImporter) Branch() string { return g.config.Branch }

// Proxy returns the proxy used for the clone
func (g *GitImporter) Proxy() string { return g.config.Proxy }

// Import fetches a module from the repository
func (g *GitImporter) Import(ctx context.Context, module string) (*Module, error) {
	if !g.modules.contains(module) {
		return nil, notBound(g.config.Name, module)
	}
	modPath, err := modulePath(module)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ensureClone(ctx); err != nil {
		return nil, err
	}

	info, err := g.worktree.Stat(modPath)
	if err != nil || !info.IsDir() {
		return nil, &ModuleNotFoundError{Source: g.config.Name, Module: module}
	}

	files, err := walkFiles(g.worktree, modPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list module %s: %w", module, err)
	}
	if len(files) == 0 {
		return nil, &ModuleNotFoundError{Source: g.config.Name, Module: module, Reason: "module directory is empty"}
	}

	worktree := g.worktree
	mod, err := g.opts.materializeLocked(ctx, g.config.Name, module, files, func(rel string) (io.ReadCloser, error) {
		return worktree.Open(worktree.Join(modPath, rel))
	})
	if err != nil {
		return nil, err
	}
	mod.Revision = g.repo.Commit
	return mod, nil
}

func (g *GitImporter) ensureClone(ctx context.Context) error {
	if g.repo != nil {
		return nil
	}

	cloneConfig := &git.CloneConfig{
		URL:    g.config.RepoURL,
		Branch: g.config.Branch,
		Proxy:  g.config.Proxy,
	}

	repo, err := retry(ctx, g.opts, "git clone "+g.config.RepoURL,
		func(ctx context.Context) (*git.RepositoryInfo, error) {
			repo, err := g.opts.gitClient.Clone(ctx, cloneConfig)
			if err != nil {
				return nil, classifyGitError(g.config.RepoURL, err)
			}
			return repo, nil
		})
	if err != nil {
		return err
	}

	worktree, err := g.opts.gitClient.Worktree(repo)
	if err != nil {
		_ = g.opts.gitClient.Cleanup(ctx, repo)
		return fmt.Errorf("%w: %s: %w", ErrConnection, g.config.RepoURL, err)
	}

	slog.Info("Cloned package source",
		"source", g.config.Name,
		"repository", g.config.RepoURL,
		"branch", repo.Branch,
		"commit", repo.Commit)

	g.repo = repo
	g.worktree = worktree
	return nil
}

// Close releases the cloned repository. It is safe to call more than once.
func (g *GitImporter) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return nil
	}
	err := g.opts.gitClient.Cleanup(context.Background(), g.repo)
	g.repo = nil
	g.worktree = nil
	return err
}

func classifyGitError(repoURL string, err error) error {
	switch {
	case git.IsAuthError(err):
		return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrAuth, repoURL, err))
	case git.IsNotFound(err), git.IsLimitError(err), errors.Is(err, os.ErrNotExist):
		return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrConnection, repoURL, err))
	default:
		return fmt.Errorf("%w: %s: %w", ErrConnection, repoURL, err)
	}
}
