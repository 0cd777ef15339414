package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"
)

const defaultObjectStorageRegion = "us-east-1"

// ObjectAPI is the subset of the S3 API used by object storage importers
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStorageConfig holds the connection parameters of an object storage importer
type ObjectStorageConfig struct {
	// Name is the source name
	Name string
	// ServiceAddress is the S3 compatible endpoint including scheme
	ServiceAddress string
	// Bucket holds the modules
	Bucket string
	// AccessKey is the access key id
	AccessKey string
	// SecretKey is the plain secret access key
	SecretKey string
	// Region is the signing region
	Region string
	// Modules is the set of modules the importer may import
	Modules []string
	// SecureOnly rejects service addresses that are not https
	SecureOnly bool
}

// ObjectStorageImporter imports modules from an S3 compatible bucket. A module
// a.b is the set of objects below the key prefix a/b/.
type ObjectStorageImporter struct {
	config  ObjectStorageConfig
	modules moduleSet
	opts    *options
	api     ObjectAPI
}

var _ Importer = (*ObjectStorageImporter)(nil)

// NewObjectStorageImporter creates an importer for an object storage bucket
func NewObjectStorageImporter(cfg ObjectStorageConfig, opts ...Option) (*ObjectStorageImporter, error) {
	if cfg.Name == "" {
		return nil, errors.New("object storage importer requires a source name")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("object storage importer requires a bucket")
	}
	u, err := url.Parse(cfg.ServiceAddress)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid service address %q: must be an http(s) URL", cfg.ServiceAddress)
	}
	if cfg.SecureOnly {
		if err := requireTLS("service address", cfg.ServiceAddress); err != nil {
			return nil, err
		}
	}
	if cfg.Region == "" {
		cfg.Region = defaultObjectStorageRegion
	}
	modules, err := newModuleSet(cfg.Modules)
	if err != nil {
		return nil, err
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg.Modules = modules.list()

	api := o.objectAPI
	if api == nil {
		api = newS3Client(cfg)
	}
	return &ObjectStorageImporter{config: cfg, modules: modules, opts: o, api: api}, nil
}

// newS3Client builds a path style client with static credentials. Retries are
// left to the importer's retry policy.
func newS3Client(cfg ObjectStorageConfig) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(cfg.ServiceAddress),
		Region:       cfg.Region,
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		Retryer:      aws.NopRetryer{},
	})
}

// Source returns the source name
func (s *ObjectStorageImporter) Source() string { return s.config.Name }

// Modules returns the bound module set
func (s *ObjectStorageImporter) Modules() []string { return s.modules.list() }

// ServiceAddress returns the object storage endpoint
func (s *ObjectStorageImporter) ServiceAddress() string { return s.config.ServiceAddress }

// Bucket returns the bucket modules are read from
func (s *ObjectStorageImporter) Bucket() string { return s.config.Bucket }

// AccessKey returns the access key id
func (s *ObjectStorageImporter) AccessKey() string { return s.config.AccessKey }

// Import fetches all objects of a module and materializes them
func (s *ObjectStorageImporter) Import(ctx context.Context, module string) (*Module, error) {
	if !s.modules.contains(module) {
		return nil, notBound(s.config.Name, module)
	}
	modPath, err := modulePath(module)
	if err != nil {
		return nil, err
	}
	prefix := modPath + "/"

	keys, err := retry(ctx, s.opts, "list s3://"+s.config.Bucket+"/"+prefix,
		func(ctx context.Context) ([]string, error) {
			return s.list(ctx, prefix)
		})
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &ModuleNotFoundError{Source: s.config.Name, Module: module}
	}

	return s.opts.materializeLocked(ctx, s.config.Name, module, keys, func(rel string) (io.ReadCloser, error) {
		key := prefix + rel
		return retry(ctx, s.opts, "get s3://"+s.config.Bucket+"/"+key,
			func(ctx context.Context) (io.ReadCloser, error) {
				out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
					Bucket: aws.String(s.config.Bucket),
					Key:    aws.String(key),
				})
				if err != nil {
					return nil, s.classify(err)
				}
				defer out.Body.Close()

				// The body is bound to the attempt context, read it before the attempt ends
				content, err := io.ReadAll(out.Body)
				if err != nil {
					return nil, fmt.Errorf("%w: read s3://%s/%s: %w", ErrConnection, s.config.Bucket, key, err)
				}
				return io.NopCloser(bytes.NewReader(content)), nil
			})
	})
}

// list returns the object keys below prefix, relative to it
func (s *ObjectStorageImporter) list(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.classify(err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			if _, err := cleanRelPath(rel); err != nil {
				return nil, backoff.Permanent(err)
			}
			keys = append(keys, rel)
		}
	}
	return keys, nil
}

// Close is a no-op, the importer holds no fetched state
func (*ObjectStorageImporter) Close() error { return nil }

func (s *ObjectStorageImporter) classify(err error) error {
	target := s.config.ServiceAddress + "/" + s.config.Bucket

	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrConnection, target, err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken",
			"InvalidToken", "AllAccessDisabled", "AccountProblem":
			return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrAuth, target, err))
		case "NoSuchBucket":
			return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrConnection, target, err))
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrAuth, target, err))
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrConnection, target, err)
}
