package sources

import (
	"errors"
	"fmt"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/secrets"
)

// ErrCipherRequired is returned when a sealed secret has to be opened without a cipher
var ErrCipherRequired = errors.New("a cipher is required to open sealed secrets")

// ObjectStorageSource is a package source backed by an S3 compatible bucket
type ObjectStorageSource struct {
	base

	// ServiceAddress is the object storage endpoint including scheme
	ServiceAddress string

	// Bucket holds the packages
	Bucket string

	// Region is the signing region
	Region string

	// AccessKey is the access key id
	AccessKey string

	// SecretKey is the sealed secret key. It is opened only while building an importer.
	SecretKey string

	// SecretKeyFile is an alternative plain text file holding the secret key
	SecretKeyFile string
}

var _ Source = (*ObjectStorageSource)(nil)

// NewObjectStorageSource builds an object storage source from its configuration
func NewObjectStorageSource(cfg *config.SourceConfig) (*ObjectStorageSource, error) {
	if cfg == nil || cfg.S3 == nil {
		return nil, errors.New("s3 configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 source %s: %w", cfg.Name, err)
	}
	return &ObjectStorageSource{
		base:           newBase(cfg),
		ServiceAddress: cfg.S3.ServiceAddress,
		Bucket:         cfg.S3.Bucket,
		Region:         cfg.S3.GetRegion(),
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		SecretKeyFile:  cfg.S3.SecretKeyFile,
	}, nil
}

// Type returns TypeObjectStorage
func (*ObjectStorageSource) Type() Type { return TypeObjectStorage }

// Details returns the connection attributes with the secret key masked
func (s *ObjectStorageSource) Details() map[string]string {
	secret := ""
	if s.SecretKey != "" || s.SecretKeyFile != "" {
		secret = maskedSecret
	}
	return map[string]string{
		"service_address": s.ServiceAddress,
		"bucket":          s.Bucket,
		"access_key":      s.AccessKey,
		"secret_key":      secret,
	}
}

// Importer opens the secret key and returns an object storage importer for the bucket
func (s *ObjectStorageSource) Importer(settings ImportSettings) (importer.Importer, error) {
	secretKey, err := s.openSecretKey(settings.Cipher)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.name, err)
	}
	return importer.NewObjectStorageImporter(importer.ObjectStorageConfig{
		Name:           s.name,
		ServiceAddress: s.ServiceAddress,
		Bucket:         s.Bucket,
		AccessKey:      s.AccessKey,
		SecretKey:      secretKey,
		Region:         s.Region,
		Modules:        s.modules(),
		SecureOnly:     settings.SecureOnly,
	}, settings.Options...)
}

func (s *ObjectStorageSource) openSecretKey(cipher secrets.Cipher) (string, error) {
	s3cfg := config.S3Config{SecretKey: s.SecretKey, SecretKeyFile: s.SecretKeyFile}
	key, err := s3cfg.GetSecretKey()
	if err != nil {
		return "", err
	}
	if s.SecretKeyFile != "" || key == "" {
		return key, nil
	}
	if cipher == nil {
		return "", ErrCipherRequired
	}
	plain, err := cipher.Open(key)
	if err != nil {
		return "", fmt.Errorf("failed to open secret key: %w", err)
	}
	return plain, nil
}
