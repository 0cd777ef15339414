// Package config provides configuration loading and management for the plugin source service.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowcraft/plugin-sources/internal/secrets"
	"github.com/flowcraft/plugin-sources/internal/telemetry"
	"github.com/flowcraft/plugin-sources/internal/versions"
)

const (
	// EnvPrefix is the prefix for environment variables read through viper
	EnvPrefix = "PLUGIN_SOURCES"

	// DatabasePasswordEnv is the environment variable holding the database password
	DatabasePasswordEnv = EnvPrefix + "_DATABASE_PASSWORD"
)

const (
	// SourceTypeGit is the type for plugin packages stored in Git repositories
	SourceTypeGit = "git"

	// SourceTypeS3 is the type for plugin packages stored in object storage buckets
	SourceTypeS3 = "s3"

	// SourceTypeFileSystem is the type for plugin packages stored on the local filesystem
	SourceTypeFileSystem = "fs"
)

const (
	defaultCacheDir            = "./data/modules"
	defaultFetchTimeout        = 60 * time.Second
	defaultConcurrency         = 4
	defaultMaxAttempts         = 3
	defaultInitialInterval     = 500 * time.Millisecond
	defaultMaxInterval         = 10 * time.Second
	defaultObjectStorageRegion = "us-east-1"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Sources    []SourceConfig    `yaml:"sources"`
	Importer   *ImporterConfig   `yaml:"importer,omitempty"`
	Encryption *EncryptionConfig `yaml:"encryption,omitempty"`
	Database   *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SourceConfig defines a single plugin package source
type SourceConfig struct {
	// Name is the unique identifier of the source
	Name string `yaml:"name" json:"name"`

	// Type is the source type tag. It is inferred from the configured section when empty.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Packages maps package (module) names to version specs
	Packages map[string]string `yaml:"packages" json:"packages"`

	// Type-specific configurations (only one should be set)
	Git  *GitConfig  `yaml:"git,omitempty" json:"git,omitempty"`
	S3   *S3Config   `yaml:"s3,omitempty" json:"s3,omitempty"`
	File *FileConfig `yaml:"file,omitempty" json:"file,omitempty"`
}

// GitConfig defines Git source settings
type GitConfig struct {
	// Repository is the raw address of the repository hosting the packages
	Repository string `yaml:"repository" json:"repository"`

	// Branch is the branch to read packages from
	Branch string `yaml:"branch" json:"branch"`
}

// S3Config defines object storage source settings
type S3Config struct {
	// ServiceAddress is the object storage endpoint including scheme
	ServiceAddress string `yaml:"serviceAddress" json:"serviceAddress"`

	// Bucket is the bucket holding the packages
	Bucket string `yaml:"bucket" json:"bucket"`

	// Region is the signing region, defaults to us-east-1
	Region string `yaml:"region,omitempty" json:"region,omitempty"`

	// AccessKey is the access key id
	AccessKey string `yaml:"accessKey" json:"accessKey"`

	// SecretKey is the sealed secret key (enc:v1:...)
	SecretKey string `yaml:"secretKey,omitempty" json:"-"`

	// SecretKeyFile is the path to a file containing the plain secret key
	SecretKeyFile string `yaml:"secretKeyFile,omitempty" json:"-"`
}

// FileConfig defines local filesystem source settings
type FileConfig struct {
	// Path is the directory holding the packages
	Path string `yaml:"path" json:"path"`
}

// ImporterConfig defines process-wide importer policy and fetch tuning
type ImporterConfig struct {
	// SecureOnly rejects sources whose address is not TLS protected
	SecureOnly bool `yaml:"secureOnly"`

	// Proxy is the proxy URL used for Git clones
	Proxy string `yaml:"proxy,omitempty"`

	// Timeout bounds a single fetch attempt (e.g. "60s")
	Timeout string `yaml:"timeout,omitempty"`

	// CacheDir is where imported modules are materialized
	CacheDir string `yaml:"cacheDir,omitempty"`

	// Concurrency is the number of sources loaded in parallel
	Concurrency int `yaml:"concurrency,omitempty"`

	// Retry configures retries of failed fetches
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig defines the retry policy for fetch operations
type RetryConfig struct {
	MaxAttempts     uint   `yaml:"maxAttempts,omitempty"`
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
}

// EncryptionConfig defines how secrets at rest are sealed
type EncryptionConfig struct {
	// KeyFile is the path to the base64 encoded 32 byte key
	KeyFile string `yaml:"keyFile"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int32 `yaml:"maxConns,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from PLUGIN_SOURCES_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		password, err := readSecretFile(d.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return password, nil
	}

	if envPassword := os.Getenv(DatabasePasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnv,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String(), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates configuration from YAML content
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	names := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name '%s'", i, src.Name)
		}
		names[src.Name] = true

		if err := src.Validate(); err != nil {
			return fmt.Errorf("sources[%d] (%s): %w", i, src.Name, err)
		}
	}

	if c.Importer != nil {
		if err := c.Importer.validate(); err != nil {
			return fmt.Errorf("importer: %w", err)
		}
	}

	if c.Encryption != nil && c.Encryption.KeyFile == "" {
		return fmt.Errorf("encryption: keyFile is required")
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// Validate validates a single source configuration
func (s *SourceConfig) Validate() error {
	if err := validateSourceTypeCount(s); err != nil {
		return err
	}
	if s.Type != "" && s.Type != s.inferType() {
		return fmt.Errorf("type %q does not match the configured %s section", s.Type, s.inferType())
	}

	for pkg, spec := range s.Packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("package names cannot be empty")
		}
		if err := versions.ValidateSpec(spec); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	switch {
	case s.Git != nil:
		return validateGitConfig(s.Git)
	case s.S3 != nil:
		return validateS3Config(s.S3)
	default:
		return validateFileConfig(s.File)
	}
}

// validateSourceTypeCount ensures exactly one source type is configured
func validateSourceTypeCount(s *SourceConfig) error {
	configCount := 0
	if s.Git != nil {
		configCount++
	}
	if s.S3 != nil {
		configCount++
	}
	if s.File != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("one of git, s3, or file configuration must be specified")
	}
	if configCount > 1 {
		return fmt.Errorf("only one of git, s3, or file configuration may be specified")
	}

	return nil
}

func validateGitConfig(git *GitConfig) error {
	if git.Repository == "" {
		return fmt.Errorf("git.repository is required")
	}
	if git.Branch == "" {
		return fmt.Errorf("git.branch is required")
	}
	return nil
}

func validateS3Config(s3 *S3Config) error {
	if s3.ServiceAddress == "" {
		return fmt.Errorf("s3.serviceAddress is required")
	}
	u, err := url.Parse(s3.ServiceAddress)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("s3.serviceAddress must be an http(s) URL, got %q", s3.ServiceAddress)
	}
	if s3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if s3.AccessKey == "" {
		return fmt.Errorf("s3.accessKey is required")
	}
	if s3.SecretKey != "" && s3.SecretKeyFile != "" {
		return fmt.Errorf("only one of s3.secretKey or s3.secretKeyFile may be specified")
	}
	if s3.SecretKey == "" && s3.SecretKeyFile == "" {
		return fmt.Errorf("one of s3.secretKey or s3.secretKeyFile is required")
	}
	if s3.SecretKey != "" && !secrets.IsSealed(s3.SecretKey) {
		return fmt.Errorf("s3.secretKey must be sealed, use 'plugin-sources secrets seal'")
	}
	return nil
}

func validateFileConfig(file *FileConfig) error {
	if file.Path == "" {
		return fmt.Errorf("file.path is required")
	}
	return nil
}

func (i *ImporterConfig) validate() error {
	var errs []error
	if i.Timeout != "" {
		if d, err := time.ParseDuration(i.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout must be a valid duration: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("timeout must be positive, got %s", d))
		}
	}
	if i.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency cannot be negative"))
	}
	if i.Proxy != "" {
		if _, err := url.Parse(i.Proxy); err != nil {
			errs = append(errs, fmt.Errorf("proxy must be a valid URL: %w", err))
		}
	}
	if i.Retry != nil {
		errs = append(errs, i.Retry.validate()...)
	}
	return errors.Join(errs...)
}

// validate checks the effective retry policy, unset intervals taking their defaults
func (r *RetryConfig) validate() []error {
	var errs []error
	parse := func(field, value string, fallback time.Duration) (time.Duration, bool) {
		if value == "" {
			return fallback, true
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a valid duration: %w", field, err))
			return 0, false
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %s", field, d))
			return 0, false
		}
		return d, true
	}

	initial, initialOK := parse("retry.initialInterval", r.InitialInterval, defaultInitialInterval)
	maxInterval, maxOK := parse("retry.maxInterval", r.MaxInterval, defaultMaxInterval)
	if initialOK && maxOK && maxInterval > 0 && initial > maxInterval {
		errs = append(errs, fmt.Errorf("retry.initialInterval %s exceeds retry.maxInterval %s", initial, maxInterval))
	}
	return errs
}

// GetType returns the source type, inferring it from the configured section when Type is empty
func (s *SourceConfig) GetType() string {
	if s.Type != "" {
		return s.Type
	}
	return s.inferType()
}

func (s *SourceConfig) inferType() string {
	if s.Git != nil {
		return SourceTypeGit
	}
	if s.S3 != nil {
		return SourceTypeS3
	}
	if s.File != nil {
		return SourceTypeFileSystem
	}
	return ""
}

// DeepCopy returns a copy of the source config sharing no mutable state
func (s *SourceConfig) DeepCopy() *SourceConfig {
	if s == nil {
		return nil
	}
	out := *s
	if s.Packages != nil {
		out.Packages = make(map[string]string, len(s.Packages))
		for k, v := range s.Packages {
			out.Packages[k] = v
		}
	}
	if s.Git != nil {
		git := *s.Git
		out.Git = &git
	}
	if s.S3 != nil {
		s3 := *s.S3
		out.S3 = &s3
	}
	if s.File != nil {
		file := *s.File
		out.File = &file
	}
	return &out
}

// GetSecretKey returns the secret key, sealed when it comes from the configuration
// and plain when read from SecretKeyFile
func (s *S3Config) GetSecretKey() (string, error) {
	if s.SecretKeyFile != "" {
		key, err := readSecretFile(s.SecretKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read secret key from file %s: %w", s.SecretKeyFile, err)
		}
		return key, nil
	}
	return s.SecretKey, nil
}

// GetRegion returns the signing region, using us-east-1 if not specified
func (s *S3Config) GetRegion() string {
	if s.Region == "" {
		return defaultObjectStorageRegion
	}
	return s.Region
}

// GetSecureOnly returns the secure only policy
func (c *Config) GetSecureOnly() bool {
	return c.Importer != nil && c.Importer.SecureOnly
}

// GetProxy returns the configured Git proxy
func (c *Config) GetProxy() string {
	if c.Importer == nil {
		return ""
	}
	return c.Importer.Proxy
}

// GetCacheDir returns the module cache directory, using ./data/modules if not specified
func (c *Config) GetCacheDir() string {
	if c.Importer == nil || c.Importer.CacheDir == "" {
		return defaultCacheDir
	}
	return c.Importer.CacheDir
}

// GetTimeout returns the per-attempt fetch timeout
func (c *Config) GetTimeout() time.Duration {
	if c.Importer == nil || c.Importer.Timeout == "" {
		return defaultFetchTimeout
	}
	d, err := time.ParseDuration(c.Importer.Timeout)
	if err != nil {
		return defaultFetchTimeout
	}
	return d
}

// GetConcurrency returns the number of sources loaded in parallel
func (c *Config) GetConcurrency() int {
	if c.Importer == nil || c.Importer.Concurrency == 0 {
		return defaultConcurrency
	}
	return c.Importer.Concurrency
}

// GetRetry returns the retry policy with defaults applied
func (c *Config) GetRetry() (maxAttempts uint, initial, maxInterval time.Duration) {
	maxAttempts, initial, maxInterval = defaultMaxAttempts, defaultInitialInterval, defaultMaxInterval
	if c.Importer == nil || c.Importer.Retry == nil {
		return maxAttempts, initial, maxInterval
	}
	r := c.Importer.Retry
	if r.MaxAttempts > 0 {
		maxAttempts = r.MaxAttempts
	}
	if d, err := time.ParseDuration(r.InitialInterval); err == nil {
		initial = d
	}
	if d, err := time.ParseDuration(r.MaxInterval); err == nil {
		maxInterval = d
	}
	return maxAttempts, initial, maxInterval
}

// readSecretFile reads a secret from a file, trimming surrounding whitespace
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
