package sources

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/plugin-sources/internal/config"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	noop := func(*config.SourceConfig) (Source, error) { return nil, nil }

	tests := []struct {
		name    string
		entries []Entry
		wantErr error
		anyErr  bool
	}{
		{name: "empty", entries: nil},
		{name: "builtins", entries: BuiltinEntries()},
		{
			name:    "duplicate tag",
			entries: []Entry{{Type: "git", Factory: noop}, {Type: "git", Factory: noop}},
			wantErr: ErrDuplicateSourceType,
		},
		{
			name:    "builtin plus duplicate",
			entries: append(BuiltinEntries(), Entry{Type: TypeFileSystem, Factory: noop}),
			wantErr: ErrDuplicateSourceType,
		},
		{name: "empty tag", entries: []Entry{{Type: "", Factory: noop}}, anyErr: true},
		{name: "nil factory", entries: []Entry{{Type: "ftp"}}, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewRegistry(tt.entries...)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, r)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Len(t, r.Types(), len(tt.entries))
			}
		})
	}
}

func TestDefaultRegistryTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Type{TypeFileSystem, TypeGit, TypeObjectStorage}, DefaultRegistry().Types())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	custom := func(cfg *config.SourceConfig) (Source, error) { return NewFileSystemSource(cfg) }
	r, err := NewRegistry(Entry{Type: "custom", Factory: custom})
	require.NoError(t, err)

	f, err := r.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(custom).Pointer(), reflect.ValueOf(f).Pointer())

	_, err = r.Resolve("git")
	assert.ErrorIs(t, err, ErrUnknownSourceType)

	_, err = DefaultRegistry().Resolve("ftp")
	assert.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestRegistryNewProducesRegisteredVariant(t *testing.T) {
	t.Parallel()

	c := testCipher(t)
	tests := []struct {
		name   string
		config *config.SourceConfig
		want   any
	}{
		{name: "git", config: gitConfig(), want: &GitRepoSource{}},
		{name: "s3", config: s3Config(t, c), want: &ObjectStorageSource{}},
		{name: "fs", config: fileConfig("/srv/atoms"), want: &FileSystemSource{}},
	}

	r := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := r.New(tt.config)
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
			assert.Equal(t, Type(tt.config.GetType()), src.Type())
			assert.Equal(t, tt.config.Name, src.Name())
		})
	}
}

func TestRegistryNewErrors(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	_, err := r.New(nil)
	assert.ErrorIs(t, err, ErrInvalidSourceConfig)

	_, err = r.New(&config.SourceConfig{Name: "untyped"})
	assert.ErrorIs(t, err, ErrUnknownSourceType)

	_, err = r.New(&config.SourceConfig{Name: "ftp", Type: "ftp", File: &config.FileConfig{Path: "/x"}})
	assert.ErrorIs(t, err, ErrUnknownSourceType)

	invalid := gitConfig()
	invalid.Git.Branch = ""
	_, err = r.New(invalid)
	assert.ErrorIs(t, err, ErrInvalidSourceConfig)

	// a registry without the git variant does not know git configs
	fsOnly, err := NewRegistry(Entry{Type: TypeFileSystem, Factory: BuiltinEntries()[2].Factory})
	require.NoError(t, err)
	_, err = fsOnly.New(gitConfig())
	assert.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestRegistryConcurrentUse(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.New(gitConfig())
			assert.NoError(t, err)
			assert.Len(t, r.Types(), 3)
		}()
	}
	wg.Wait()
}
