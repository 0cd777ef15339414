package sources

import (
	"errors"
	"fmt"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
)

// FileSystemSource is a package source backed by a local directory
type FileSystemSource struct {
	base

	// Path is the directory holding the packages
	Path string
}

var _ Source = (*FileSystemSource)(nil)

// NewFileSystemSource builds a filesystem source from its configuration
func NewFileSystemSource(cfg *config.SourceConfig) (*FileSystemSource, error) {
	if cfg == nil || cfg.File == nil {
		return nil, errors.New("file configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid file source %s: %w", cfg.Name, err)
	}
	return &FileSystemSource{base: newBase(cfg), Path: cfg.File.Path}, nil
}

// Type returns TypeFileSystem
func (*FileSystemSource) Type() Type { return TypeFileSystem }

// Details returns the directory path
func (s *FileSystemSource) Details() map[string]string {
	return map[string]string{"path": s.Path}
}

// Importer returns a filesystem importer. Secure only mode and the proxy do not
// apply to local directories.
func (s *FileSystemSource) Importer(settings ImportSettings) (importer.Importer, error) {
	return importer.NewFileSystemImporter(importer.FileSystemConfig{
		Name:    s.name,
		Path:    s.Path,
		Modules: s.modules(),
	}, settings.Options...)
}
