package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/service"
	"github.com/flowcraft/plugin-sources/internal/sources"
	"github.com/flowcraft/plugin-sources/internal/store"
)

type recordingLoader struct {
	loaded []config.SourceConfig
	err    error
}

func (l *recordingLoader) Load(_ context.Context, cfgs []config.SourceConfig) (*loader.Report, error) {
	l.loaded = cfgs
	if l.err != nil {
		return nil, l.err
	}
	report := &loader.Report{ID: "test"}
	for _, c := range cfgs {
		report.Sources = append(report.Sources, loader.SourceReport{Name: c.Name, Type: c.GetType()})
	}
	return report, nil
}

type failingReader struct{}

func (failingReader) List(context.Context) ([]config.SourceConfig, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) Get(context.Context, string) (*config.SourceConfig, error) {
	return nil, errors.New("connection refused")
}

func testSources() []config.SourceConfig {
	return []config.SourceConfig{
		{
			Name:     "team-git",
			Packages: map[string]string{"moduleA": "1.0"},
			Git:      &config.GitConfig{Repository: "https://example.com/repo.git", Branch: "main"},
		},
		{
			Name:     "team-bucket",
			Packages: map[string]string{"atoms.bye": ""},
			S3: &config.S3Config{
				ServiceAddress: "https://s3.example.com",
				Bucket:         "atoms",
				AccessKey:      "AKIA",
				SecretKey:      "enc:v1:c2VhbGVk",
			},
		},
		{
			Name:     "local",
			Packages: map[string]string{"atoms.hello": ""},
			File:     &config.FileConfig{Path: "/srv/atoms"},
		},
		{
			Name:     "legacy",
			Type:     "ftp",
			Packages: map[string]string{"atoms.old": ""},
		},
	}
}

func newService(l service.Loader) service.SourceService {
	return service.New(store.NewConfigStore(testSources()), sources.DefaultRegistry(), l)
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	require.NoError(t, newService(&recordingLoader{}).CheckReadiness(context.Background()))

	svc := service.New(failingReader{}, sources.DefaultRegistry(), &recordingLoader{})
	require.Error(t, svc.CheckReadiness(context.Background()))
}

func TestListTypes(t *testing.T) {
	t.Parallel()

	types := newService(&recordingLoader{}).ListTypes(context.Background())
	assert.Equal(t, []sources.Type{sources.TypeFileSystem, sources.TypeGit, sources.TypeObjectStorage}, types)
}

func TestListSources(t *testing.T) {
	t.Parallel()

	svc := newService(&recordingLoader{})

	tests := []struct {
		name     string
		opts     []service.Option[service.ListSourcesOptions]
		expected []string
	}{
		{name: "all", expected: []string{"team-git", "team-bucket", "local", "legacy"}},
		{
			name:     "by name",
			opts:     []service.Option[service.ListSourcesOptions]{service.WithNamePatterns[service.ListSourcesOptions]("team-*")},
			expected: []string{"team-git", "team-bucket"},
		},
		{
			name: "excluding names",
			opts: []service.Option[service.ListSourcesOptions]{
				service.WithExcludedNamePatterns[service.ListSourcesOptions]("team-*"),
			},
			expected: []string{"local", "legacy"},
		},
		{
			name:     "by type",
			opts:     []service.Option[service.ListSourcesOptions]{service.WithTypes[service.ListSourcesOptions]("fs")},
			expected: []string{"local"},
		},
		{
			name:     "by package",
			opts:     []service.Option[service.ListSourcesOptions]{service.WithPackages[service.ListSourcesOptions]("atoms.bye")},
			expected: []string{"team-bucket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			views, err := svc.ListSources(context.Background(), tt.opts...)
			require.NoError(t, err)
			var got []string
			for _, v := range views {
				got = append(got, v.Name)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestListSourcesViews(t *testing.T) {
	t.Parallel()

	views, err := newService(&recordingLoader{}).ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 4)

	bucket := views[1]
	assert.Equal(t, "s3", bucket.Type)
	assert.Equal(t, "******", bucket.Details["secret_key"])
	assert.Empty(t, bucket.Error)

	legacy := views[3]
	assert.Equal(t, "ftp", legacy.Type)
	assert.Nil(t, legacy.Details)
	assert.Contains(t, legacy.Error, sources.ErrUnknownSourceType.Error())
}

func TestListSourcesInvalidOption(t *testing.T) {
	t.Parallel()

	_, err := newService(&recordingLoader{}).ListSources(context.Background(),
		service.WithNamePatterns[service.ListSourcesOptions]("["))
	require.ErrorIs(t, err, service.ErrInvalidFilter)

	_, err = newService(&recordingLoader{}).ListSources(context.Background(),
		service.WithTypes[service.ListSourcesOptions](""))
	require.ErrorIs(t, err, service.ErrInvalidFilter)
}

func TestGetSource(t *testing.T) {
	t.Parallel()

	svc := newService(&recordingLoader{})

	view, err := svc.GetSource(context.Background(), "team-git")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"repo_raw_address": "https://example.com/repo.git",
		"branch":           "main",
	}, view.Details)
	assert.Equal(t, map[string]string{"moduleA": "1.0"}, view.Packages)

	_, err = svc.GetSource(context.Background(), "missing")
	require.ErrorIs(t, err, service.ErrSourceNotFound)

	failing := service.New(failingReader{}, sources.DefaultRegistry(), &recordingLoader{})
	_, err = failing.GetSource(context.Background(), "team-git")
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrSourceNotFound)
}

func TestLoadSources(t *testing.T) {
	t.Parallel()

	t.Run("single source", func(t *testing.T) {
		t.Parallel()
		l := &recordingLoader{}
		report, err := newService(l).LoadSources(context.Background(), service.WithName("local"))
		require.NoError(t, err)
		require.Len(t, l.loaded, 1)
		assert.Equal(t, "local", l.loaded[0].Name)
		assert.Equal(t, "test", report.ID)
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()
		l := &recordingLoader{}
		_, err := newService(l).LoadSources(context.Background(), service.WithName("missing"))
		require.ErrorIs(t, err, service.ErrSourceNotFound)
		assert.Nil(t, l.loaded)
	})

	t.Run("filtered", func(t *testing.T) {
		t.Parallel()
		l := &recordingLoader{}
		_, err := newService(l).LoadSources(context.Background(),
			service.WithNamePatterns[service.LoadSourcesOptions]("team-*"))
		require.NoError(t, err)
		require.Len(t, l.loaded, 2)
	})

	t.Run("unresolvable", func(t *testing.T) {
		t.Parallel()
		l := &recordingLoader{err: sources.ErrUnknownSourceType}
		_, err := newService(l).LoadSources(context.Background(), service.WithName("legacy"))
		require.ErrorIs(t, err, service.ErrInvalidSource)
		require.ErrorIs(t, err, sources.ErrUnknownSourceType)
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		_, err := newService(&recordingLoader{}).LoadSources(context.Background(), service.WithName(""))
		require.Error(t, err)
	})
}

func TestLoadSourcesWithLoader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "atoms", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atom.py"), []byte("pass\n"), 0o600))

	cfgs := []config.SourceConfig{{
		Name:     "local",
		Packages: map[string]string{"atoms.hello": ""},
		File:     &config.FileConfig{Path: root},
	}}
	registry := sources.DefaultRegistry()
	l := loader.New(registry, sources.ImportSettings{
		Options: []importer.Option{importer.WithCacheDir(t.TempDir())},
	})
	svc := service.New(store.NewConfigStore(cfgs), registry, l)

	report, err := svc.LoadSources(context.Background(), service.WithName("local"))
	require.NoError(t, err)
	require.NoError(t, report.Err())
	src, ok := report.Source("local")
	require.True(t, ok)
	assert.Len(t, src.Loaded(), 1)
}
