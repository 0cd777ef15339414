package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/flowcraft/plugin-sources/internal/git"
)

const (
	// DefaultCacheDir is the module cache used when no cache is configured
	DefaultCacheDir = "./data/modules"
	// DefaultTimeout bounds a single fetch attempt
	DefaultTimeout = 60 * time.Second
	// DefaultMaxAttempts is the number of fetch attempts before giving up
	DefaultMaxAttempts = 3
	// DefaultInitialInterval is the first retry delay
	DefaultInitialInterval = 500 * time.Millisecond
	// DefaultMaxInterval caps the retry delay
	DefaultMaxInterval = 10 * time.Second
)

//go:generate mockgen -destination=mocks/mock_importer.go -package=mocks -source=importer.go Importer

// Importer fetches the modules of a single package source
type Importer interface {
	// Source returns the name of the bound source
	Source() string

	// Modules returns the sorted set of modules this importer may import
	Modules() []string

	// Import fetches the named module and materializes it in the module cache
	Import(ctx context.Context, module string) (*Module, error)

	// Close releases fetched state
	Close() error
}

// Module is a module materialized in the local module cache
type Module struct {
	// Name is the dotted module name
	Name string `json:"name"`

	// Source is the name of the source the module was imported from
	Source string `json:"source"`

	// Version is the content of the module's VERSION file, if any
	Version string `json:"version,omitempty"`

	// Dir is the module directory in the cache
	Dir string `json:"dir"`

	// Files are the slash separated file paths relative to Dir, sorted
	Files []string `json:"files"`

	// Digest is the hex SHA-256 over the module's file paths and contents
	Digest string `json:"digest"`

	// Revision is the commit the module was read from, when known
	Revision string `json:"revision,omitempty"`
}

// RetryPolicy controls how failed fetches are retried
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Option configures an importer
type Option func(*options) error

type options struct {
	cache     billy.Filesystem
	cacheDir  string
	timeout   time.Duration
	retry     RetryPolicy
	gitClient git.Client
	objectAPI ObjectAPI
	verify    func(*Module) error
}

// WithCache materializes modules into the given filesystem
func WithCache(fs billy.Filesystem) Option {
	return func(o *options) error {
		if fs == nil {
			return errors.New("cache filesystem cannot be nil")
		}
		o.cache = fs
		o.cacheDir = ""
		return nil
	}
}

// WithCacheDir materializes modules below dir on the local filesystem
func WithCacheDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.New("cache directory cannot be empty")
		}
		o.cache = osfs.New(dir)
		o.cacheDir = dir
		return nil
	}
}

// WithTimeout bounds every fetch attempt
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithRetry sets the retry policy for fetches
func WithRetry(policy RetryPolicy) Option {
	return func(o *options) error {
		if policy.MaxAttempts == 0 {
			return errors.New("retry policy requires at least one attempt")
		}
		if policy.InitialInterval < 0 || policy.MaxInterval < 0 {
			return errors.New("retry intervals cannot be negative")
		}
		if policy.MaxInterval > 0 && policy.InitialInterval > policy.MaxInterval {
			return fmt.Errorf("initial interval %s exceeds max interval %s",
				policy.InitialInterval, policy.MaxInterval)
		}
		o.retry = policy
		return nil
	}
}

// WithGitClient sets the client used by git importers
func WithGitClient(client git.Client) Option {
	return func(o *options) error {
		if client == nil {
			return errors.New("git client cannot be nil")
		}
		o.gitClient = client
		return nil
	}
}

// WithObjectAPI sets the S3 API used by object storage importers instead of
// building one from the connection parameters
func WithObjectAPI(api ObjectAPI) Option {
	return func(o *options) error {
		if api == nil {
			return errors.New("object API cannot be nil")
		}
		o.objectAPI = api
		return nil
	}
}

// WithVerify runs verify on every imported module before it replaces the
// cached copy. Dir is not set yet when verify runs. A verify error fails the
// import and leaves the previous copy in place.
func WithVerify(verify func(*Module) error) Option {
	return func(o *options) error {
		if verify == nil {
			return errors.New("verify function cannot be nil")
		}
		o.verify = verify
		return nil
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		timeout: DefaultTimeout,
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("invalid importer option: %w", err)
		}
	}
	if o.cache == nil {
		o.cache = osfs.New(DefaultCacheDir)
		o.cacheDir = DefaultCacheDir
	}
	return o, nil
}

// moduleSet is the sorted, de-duplicated set of modules bound to an importer
type moduleSet []string

func newModuleSet(modules []string) (moduleSet, error) {
	set := slices.Clone(modules)
	slices.Sort(set)
	set = slices.Compact(set)
	for _, m := range set {
		if _, err := modulePath(m); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s moduleSet) contains(module string) bool {
	_, ok := slices.BinarySearch(s, module)
	return ok
}

func (s moduleSet) list() []string {
	return slices.Clone(s)
}
