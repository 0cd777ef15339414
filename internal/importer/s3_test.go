package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectAPI serves objects from memory, one key per page
type fakeObjectAPI struct {
	mu        sync.Mutex
	objects   map[string]string
	listErr   error
	getErr    error
	listCalls int
	getCalls  int
}

func (f *fakeObjectAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.StartAfter) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if in.ContinuationToken != nil {
		var rest []string
		for _, k := range keys {
			if k > aws.ToString(in.ContinuationToken) {
				rest = append(rest, k)
			}
		}
		keys = rest
	}
	if len(keys) > 0 {
		out.Contents = []types.Object{{Key: aws.String(keys[0])}}
	}
	if len(keys) > 1 {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[0])
	}
	return out, nil
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	content, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(content))}, nil
}

func newTestObjectStorageImporter(t *testing.T, api ObjectAPI, modules ...string) *ObjectStorageImporter {
	t.Helper()
	imp, err := NewObjectStorageImporter(ObjectStorageConfig{
		Name:           "bucket-source",
		ServiceAddress: "https://s3.example.com",
		Bucket:         "atoms",
		AccessKey:      "AKIA",
		SecretKey:      "secret",
		Modules:        modules,
	}, WithObjectAPI(api), WithCache(memfs.New()), WithRetry(fastRetry))
	require.NoError(t, err)
	return imp
}

func TestNewObjectStorageImporter(t *testing.T) {
	t.Parallel()

	base := ObjectStorageConfig{
		Name:           "bucket-source",
		ServiceAddress: "https://s3.example.com",
		Bucket:         "atoms",
		AccessKey:      "AKIA",
		SecretKey:      "secret",
	}

	tests := []struct {
		name    string
		mutate  func(*ObjectStorageConfig)
		wantErr error
		anyErr  bool
	}{
		{name: "valid", mutate: func(*ObjectStorageConfig) {}},
		{name: "secure only https", mutate: func(c *ObjectStorageConfig) { c.SecureOnly = true }},
		{
			name: "secure only rejects http",
			mutate: func(c *ObjectStorageConfig) {
				c.SecureOnly = true
				c.ServiceAddress = "http://minio:9000"
			},
			wantErr: ErrInsecureSource,
		},
		{name: "http allowed", mutate: func(c *ObjectStorageConfig) { c.ServiceAddress = "http://minio:9000" }},
		{name: "missing scheme", mutate: func(c *ObjectStorageConfig) { c.ServiceAddress = "minio:9000" }, anyErr: true},
		{name: "missing bucket", mutate: func(c *ObjectStorageConfig) { c.Bucket = "" }, anyErr: true},
		{name: "missing name", mutate: func(c *ObjectStorageConfig) { c.Name = "" }, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tt.mutate(&cfg)
			imp, err := NewObjectStorageImporter(cfg, WithCache(memfs.New()))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, cfg.ServiceAddress, imp.ServiceAddress())
				assert.Equal(t, "atoms", imp.Bucket())
				assert.Equal(t, "AKIA", imp.AccessKey())
				assert.Equal(t, defaultObjectStorageRegion, imp.config.Region)
			}
		})
	}
}

func TestObjectStorageImporterImport(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{objects: map[string]string{
		"atoms/hello/main.py":    "print('hello')",
		"atoms/hello/lib/x.py":   "X = 1",
		"atoms/hello/":           "",
		"atoms/hello_world/a.py": "other module",
		"atoms/goodbye/main.py":  "bye",
	}}
	imp := newTestObjectStorageImporter(t, api, "atoms.hello")

	mod, err := imp.Import(context.Background(), "atoms.hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/x.py", "main.py"}, mod.Files)
	assert.Equal(t, "bucket-source", mod.Source)
	assert.Equal(t, "/bucket-source/atoms/hello", mod.Dir)

	content, err := util.ReadFile(imp.opts.cache, "bucket-source/atoms/hello/lib/x.py")
	require.NoError(t, err)
	assert.Equal(t, "X = 1", string(content))
	assert.NoError(t, imp.Close())
}

func TestObjectStorageImporterModuleNotFound(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{objects: map[string]string{"other/main.py": "x"}}
	imp := newTestObjectStorageImporter(t, api, "missing")

	_, err := imp.Import(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.False(t, IsSourceFailure(err))

	_, err = imp.Import(context.Background(), "unbound")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Equal(t, 1, api.listCalls)
}

func TestObjectStorageImporterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		listErr   error
		wantErr   error
		wantCalls int
	}{
		{
			name:      "access denied",
			listErr:   &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
			wantErr:   ErrAuth,
			wantCalls: 1,
		},
		{
			name:      "bad key",
			listErr:   &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "bad"},
			wantErr:   ErrAuth,
			wantCalls: 1,
		},
		{
			name:      "missing bucket",
			listErr:   &types.NoSuchBucket{},
			wantErr:   ErrConnection,
			wantCalls: 1,
		},
		{
			name:      "network",
			listErr:   errors.New("connection reset by peer"),
			wantErr:   ErrConnection,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeObjectAPI{listErr: tt.listErr}
			imp := newTestObjectStorageImporter(t, api, "moduleA")

			_, err := imp.Import(context.Background(), "moduleA")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsSourceFailure(err))
			assert.Equal(t, tt.wantCalls, api.listCalls)
		})
	}
}

func TestObjectStorageImporterGetRetries(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{
		objects: map[string]string{"m/a.py": "a"},
		getErr:  errors.New("i/o timeout"),
	}
	imp := newTestObjectStorageImporter(t, api, "m")

	_, err := imp.Import(context.Background(), "m")
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 3, api.getCalls)
}

func TestObjectStorageImporterRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{objects: map[string]string{
		"m/ok.py":        "ok",
		"m/../escape.py": "bad",
	}}
	imp := newTestObjectStorageImporter(t, api, "m")

	_, err := imp.Import(context.Background(), "m")
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.Equal(t, 1, api.listCalls)
}

// streamingS3 serves one bucket over path style S3 and writes object bodies in
// small delayed chunks so they are still in flight after the response headers
func streamingS3(t *testing.T, bucket string, objects map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list-type") == "2" {
			prefix := r.URL.Query().Get("prefix")
			var b strings.Builder
			b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
			b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
			fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><IsTruncated>false</IsTruncated>", bucket, prefix)
			for key, content := range objects {
				if strings.HasPrefix(key, prefix) {
					fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", key, len(content))
				}
			}
			b.WriteString("</ListBucketResult>")
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, b.String())
			return
		}

		content, ok := objects[strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		flusher := w.(http.Flusher)
		for len(content) > 0 {
			n := min(4096, len(content))
			_, _ = w.Write(content[:n])
			flusher.Flush()
			content = content[n:]
			time.Sleep(2 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestObjectStorageImporterStreamsBodies(t *testing.T) {
	t.Parallel()

	large := bytes.Repeat([]byte("x = 1\n"), 32*1024)
	srv := streamingS3(t, "atoms", map[string][]byte{
		"atoms/hello/a.py":    large,
		"atoms/hello/VERSION": []byte("1.0.0\n"),
	})

	imp, err := NewObjectStorageImporter(ObjectStorageConfig{
		Name:           "bucket-source",
		ServiceAddress: srv.URL,
		Bucket:         "atoms",
		AccessKey:      "AKIA",
		SecretKey:      "secret",
		Modules:        []string{"atoms.hello"},
	}, WithCache(memfs.New()), WithRetry(fastRetry))
	require.NoError(t, err)

	mod, err := imp.Import(context.Background(), "atoms.hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"VERSION", "a.py"}, mod.Files)
	assert.Equal(t, "1.0.0", mod.Version)

	content, err := util.ReadFile(imp.opts.cache, "bucket-source/atoms/hello/a.py")
	require.NoError(t, err)
	assert.Equal(t, large, content)
}
