package sources

import (
	"maps"
	"slices"
	"time"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/secrets"
)

// Type is the tag identifying a source variant
type Type string

const (
	// TypeGit identifies GitRepoSource
	TypeGit Type = config.SourceTypeGit
	// TypeObjectStorage identifies ObjectStorageSource
	TypeObjectStorage Type = config.SourceTypeS3
	// TypeFileSystem identifies FileSystemSource
	TypeFileSystem Type = config.SourceTypeFileSystem
)

// maskedSecret replaces secret values in Details
const maskedSecret = "******"

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=types.go Source

// Source is a configured location plugin packages are loaded from
type Source interface {
	// Name returns the unique source name
	Name() string

	// Type returns the variant tag
	Type() Type

	// Packages returns a copy of the package name to version spec mapping
	Packages() map[string]string

	// Details returns the display attributes of the source with secrets masked
	Details() map[string]string

	// Importer returns a new importer bound to this source
	Importer(settings ImportSettings) (importer.Importer, error)
}

// ImportSettings carries process-wide importer policy into importer construction
type ImportSettings struct {
	// SecureOnly rejects sources whose address is not https
	SecureOnly bool

	// Proxy is the proxy URL used for git clones
	Proxy string

	// Cipher opens sealed secrets
	Cipher secrets.Cipher

	// Options are passed to every importer
	Options []importer.Option
}

// SettingsFromConfig builds import settings from the importer section of cfg.
// Extra options are appended after the configured ones.
func SettingsFromConfig(cfg *config.Config, cipher secrets.Cipher, extra ...importer.Option) ImportSettings {
	maxAttempts, initial, maxInterval := cfg.GetRetry()
	opts := []importer.Option{
		importer.WithCacheDir(cfg.GetCacheDir()),
		importer.WithTimeout(nonZero(cfg.GetTimeout(), importer.DefaultTimeout)),
		importer.WithRetry(importer.RetryPolicy{
			MaxAttempts:     maxAttempts,
			InitialInterval: initial,
			MaxInterval:     maxInterval,
		}),
	}
	return ImportSettings{
		SecureOnly: cfg.GetSecureOnly(),
		Proxy:      cfg.GetProxy(),
		Cipher:     cipher,
		Options:    append(opts, extra...),
	}
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// base holds the attributes shared by all variants
type base struct {
	name     string
	packages map[string]string
}

func newBase(cfg *config.SourceConfig) base {
	return base{name: cfg.Name, packages: maps.Clone(cfg.Packages)}
}

// Name returns the source name
func (b *base) Name() string { return b.name }

// Packages returns a copy of the declared packages
func (b *base) Packages() map[string]string {
	out := maps.Clone(b.packages)
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// modules returns the sorted package names
func (b *base) modules() []string {
	return slices.Sorted(maps.Keys(b.packages))
}
