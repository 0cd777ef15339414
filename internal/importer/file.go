package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-billy/v5/osfs"
)

// FileSystemConfig holds the parameters of a filesystem importer
type FileSystemConfig struct {
	// Name is the source name
	Name string
	// Path is the directory holding the modules
	Path string
	// Modules is the set of modules the importer may import
	Modules []string
}

// FileSystemImporter imports modules from a local directory
type FileSystemImporter struct {
	config  FileSystemConfig
	modules moduleSet
	opts    *options
}

var _ Importer = (*FileSystemImporter)(nil)

// NewFileSystemImporter creates an importer for a local directory
func NewFileSystemImporter(cfg FileSystemConfig, opts ...Option) (*FileSystemImporter, error) {
	if cfg.Name == "" {
		return nil, errors.New("filesystem importer requires a source name")
	}
	if cfg.Path == "" {
		return nil, errors.New("filesystem importer requires a path")
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
	return &FileSystemImporter{config: cfg, modules: modules, opts: o}, nil
}

// Source returns the source name
func (f *FileSystemImporter) Source() string { return f.config.Name }

// Modules returns the bound module set
func (f *FileSystemImporter) Modules() []string { return f.modules.list() }

// Path returns the directory modules are read from
func (f *FileSystemImporter) Path() string { return f.config.Path }

// Import copies a module from the source directory
func (f *FileSystemImporter) Import(ctx context.Context, module string) (*Module, error) {
	if !f.modules.contains(module) {
		return nil, notBound(f.config.Name, module)
	}
	modPath, err := modulePath(module)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(f.config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, f.config.Path, err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: source directory %s is not available", ErrConnection, root)
	}

	// Symlinks are resolved inside root so a module can never point outside it.
	dir, err := securejoin.SecureJoin(root, filepath.FromSlash(modPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsafePath, module, err)
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, &ModuleNotFoundError{Source: f.config.Name, Module: module}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, dir, err)
	}

	moduleFs := osfs.New(dir)
	files, err := walkFiles(moduleFs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list module %s: %w", module, err)
	}
	if len(files) == 0 {
		return nil, &ModuleNotFoundError{Source: f.config.Name, Module: module, Reason: "module directory is empty"}
	}

	return f.opts.materializeLocked(ctx, f.config.Name, module, files, func(rel string) (io.ReadCloser, error) {
		return moduleFs.Open(rel)
	})
}

// Close is a no-op
func (*FileSystemImporter) Close() error { return nil }
