package sources

import (
	"errors"
	"fmt"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
)

// GitRepoSource is a package source backed by a branch of a git repository
type GitRepoSource struct {
	base

	// RepoRawAddress is the repository address
	RepoRawAddress string

	// Branch is the branch holding the packages
	Branch string
}

var _ Source = (*GitRepoSource)(nil)

// NewGitRepoSource builds a git source from its configuration
func NewGitRepoSource(cfg *config.SourceConfig) (*GitRepoSource, error) {
	if cfg == nil || cfg.Git == nil {
		return nil, errors.New("git configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid git source %s: %w", cfg.Name, err)
	}
	return &GitRepoSource{
		base:           newBase(cfg),
		RepoRawAddress: cfg.Git.Repository,
		Branch:         cfg.Git.Branch,
	}, nil
}

// Type returns TypeGit
func (*GitRepoSource) Type() Type { return TypeGit }

// Details returns the repository address and branch
func (s *GitRepoSource) Details() map[string]string {
	return map[string]string{
		"repo_raw_address": s.RepoRawAddress,
		"branch":           s.Branch,
	}
}

// Importer returns a git importer for the repository
func (s *GitRepoSource) Importer(settings ImportSettings) (importer.Importer, error) {
	return importer.NewGitImporter(importer.GitConfig{
		Name:       s.name,
		RepoURL:    s.RepoRawAddress,
		Branch:     s.Branch,
		Modules:    s.modules(),
		Proxy:      settings.Proxy,
		SecureOnly: settings.SecureOnly,
	}, settings.Options...)
}
