package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/flowcraft/plugin-sources/internal/app/storage"
	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/secrets"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "atoms", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atom.py"), []byte("pass\n"), 0o600))

	return &config.Config{
		Sources: []config.SourceConfig{
			{
				Name:     "local",
				Packages: map[string]string{"atoms.hello": "", "atoms.missing": ""},
				File:     &config.FileConfig{Path: root},
			},
			{
				Name:     "upstream",
				Packages: map[string]string{"moduleA": "1.0"},
				Git:      &config.GitConfig{Repository: "https://example.com/repo.git", Branch: "main"},
			},
		},
		Importer: &config.ImporterConfig{CacheDir: t.TempDir()},
	}
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "port only", address: ":8080"},
		{name: "localhost", address: "localhost:9090"},
		{name: "ip", address: "127.0.0.1:0"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: "8080", wantErr: true},
		{name: "empty port", address: "127.0.0.1:", wantErr: true},
		{name: "hostname", address: "example.com:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &sourcesAppConfig{}
			err := WithAddress(tt.address)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.address, cfg.address)
		})
	}
}

func TestNewSourcesAppRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewSourcesApp(context.Background())
	require.Error(t, err)
}

func TestNewSourcesAppMissingKeyFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Encryption = &config.EncryptionConfig{KeyFile: filepath.Join(t.TempDir(), "missing.key")}
	_, err := NewSourcesApp(context.Background(), WithConfig(cfg))
	require.ErrorContains(t, err, "encryption key")
}

func TestNewSourcesApp(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	mp := metric.NewMeterProvider()
	app, err := NewSourcesApp(context.Background(),
		WithConfig(cfg),
		WithAddress("127.0.0.1:0"),
		WithMeterProvider(mp),
		WithMetricsHandler(http.NotFoundHandler()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Stop(time.Second)) })

	assert.Same(t, cfg, app.GetConfig())
	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	require.NotNil(t, app.Components().Loader)
	require.IsType(t, &storage.ConfigFactory{}, app.Components().Storage)

	handler := app.GetHTTPServer().Handler

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sources?type=fs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var views []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "local", views[0]["name"])

	// one of the two modules is missing, so the load partially fails
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sources/local/load", nil))
	assert.Equal(t, http.StatusMultiStatus, rr.Code)

	var report struct {
		Sources []loader.SourceReport `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Len(t, report.Sources, 1)
	assert.Len(t, report.Sources[0].Modules, 2)
}

func TestNewLoaderWithCipher(t *testing.T) {
	t.Parallel()

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyFile, []byte(key), 0o600))

	cfg := testConfig(t)
	cfg.Encryption = &config.EncryptionConfig{KeyFile: keyFile}

	l, err := NewLoader(WithConfig(cfg), WithImporterOptions(importer.WithCacheDir(t.TempDir())))
	require.NoError(t, err)

	report, err := l.Load(context.Background(), cfg.Sources[:1])
	require.NoError(t, err)
	src, ok := report.Source("local")
	require.True(t, ok)
	assert.Len(t, src.Loaded(), 1)
}

func TestConfigFactoryReload(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	f := storage.NewConfigFactory(cfg)
	list, err := f.Reader().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f.Reload(&config.Config{Sources: cfg.Sources[:1]})
	list, err = f.Reader().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	f.Cleanup()
}
