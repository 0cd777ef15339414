package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/plugin-sources/internal/config"
)

func TestNameFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewDefaultNameFilter()

	tests := []struct {
		name     string
		source   string
		include  []string
		exclude  []string
		expected bool
	}{
		{name: "no patterns", source: "team-a", expected: true},
		{name: "include match", source: "team-a", include: []string{"team-*"}, expected: true},
		{name: "include no match", source: "vendor", include: []string{"team-*"}, expected: false},
		{name: "exclude match", source: "team-old", exclude: []string{"*-old"}, expected: false},
		{name: "exclude no match", source: "team-a", exclude: []string{"*-old"}, expected: true},
		{
			name:     "exclude takes precedence",
			source:   "team-old",
			include:  []string{"team-*"},
			exclude:  []string{"*-old"},
			expected: false,
		},
		{name: "star crosses separators", source: "org/team.a", include: []string{"org*"}, expected: true},
		{name: "single character", source: "s3", include: []string{"s?"}, expected: true},
		{name: "invalid pattern", source: "team-a", include: []string{"team-["}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := filter.ShouldInclude(tt.source, tt.include, tt.exclude)
			assert.Equal(t, tt.expected, got, reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestTagFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewDefaultTagFilter()

	tests := []struct {
		name     string
		tags     []string
		include  []string
		exclude  []string
		expected bool
	}{
		{name: "no filters", tags: []string{"git"}, expected: true},
		{name: "nil tags no filters", expected: true},
		{name: "include match", tags: []string{"atoms.a", "atoms.b"}, include: []string{"atoms.b"}, expected: true},
		{name: "include no match", tags: []string{"git"}, include: []string{"s3"}, expected: false},
		{name: "nil tags with include", include: []string{"s3"}, expected: false},
		{name: "exclude match", tags: []string{"fs"}, exclude: []string{"fs"}, expected: false},
		{name: "exclude no match", tags: []string{"git"}, exclude: []string{"fs"}, expected: true},
		{
			name:     "exclude wins over include",
			tags:     []string{"atoms.a", "atoms.b"},
			include:  []string{"atoms.a"},
			exclude:  []string{"atoms.b"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := filter.ShouldInclude(tt.tags, tt.include, tt.exclude)
			assert.Equal(t, tt.expected, got, reason)
		})
	}
}

func testSources() []config.SourceConfig {
	return []config.SourceConfig{
		{
			Name:     "team-git",
			Packages: map[string]string{"atoms.hello": "1.0"},
			Git:      &config.GitConfig{Repository: "https://example.com/repo.git", Branch: "main"},
		},
		{
			Name:     "team-bucket",
			Packages: map[string]string{"atoms.bye": ""},
			S3:       &config.S3Config{ServiceAddress: "https://s3.example.com", Bucket: "atoms"},
		},
		{
			Name:     "local",
			Packages: map[string]string{"atoms.hello": "", "atoms.bye": ""},
			File:     &config.FileConfig{Path: "/srv/atoms"},
		},
	}
}

func names(cfgs []config.SourceConfig) []string {
	out := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, c.Name)
	}
	return out
}

func TestFilterService_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filter   *Filter
		expected []string
	}{
		{name: "nil filter", filter: nil, expected: []string{"team-git", "team-bucket", "local"}},
		{name: "empty filter", filter: &Filter{}, expected: []string{"team-git", "team-bucket", "local"}},
		{
			name:     "by name",
			filter:   &Filter{Names: Rule{Include: []string{"team-*"}}},
			expected: []string{"team-git", "team-bucket"},
		},
		{
			name:     "by type",
			filter:   &Filter{Types: Rule{Include: []string{config.SourceTypeS3, config.SourceTypeFileSystem}}},
			expected: []string{"team-bucket", "local"},
		},
		{
			name:     "by package",
			filter:   &Filter{Packages: Rule{Include: []string{"atoms.hello"}}},
			expected: []string{"team-git", "local"},
		},
		{
			name: "combined",
			filter: &Filter{
				Names:    Rule{Include: []string{"team-*"}},
				Packages: Rule{Include: []string{"atoms.hello"}},
			},
			expected: []string{"team-git"},
		},
		{
			name:     "nothing selected",
			filter:   &Filter{Types: Rule{Exclude: []string{"git", "s3", "fs"}}},
			expected: []string{},
		},
	}

	svc := NewDefaultFilterService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := svc.Apply(context.Background(), testSources(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(got))
		})
	}
}

func TestFilterService_ApplyInvalidPattern(t *testing.T) {
	t.Parallel()

	svc := NewDefaultFilterService()
	_, err := svc.Apply(context.Background(), testSources(), &Filter{Names: Rule{Exclude: []string{"["}}})
	require.ErrorIs(t, err, ErrInvalidFilter)
}
