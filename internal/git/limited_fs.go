package git

import (
	"fmt"
	"os"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
)

// LimitedFs wraps a billy filesystem and caps the number of files created and
// the total number of bytes written through it. Filesystems returned by Chroot
// share the limits of their parent.
type LimitedFs struct {
	Fs            billy.Filesystem
	MaxFiles      int64
	TotalFileSize int64

	parent *LimitedFs
	files  atomic.Int64
	size   atomic.Int64
}

var _ billy.Filesystem = (*LimitedFs)(nil)

func (f *LimitedFs) root() *LimitedFs {
	r := f
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (f *LimitedFs) addFile() error {
	r := f.root()
	if n := r.files.Add(1); r.MaxFiles > 0 && n > r.MaxFiles {
		return fmt.Errorf("%w: limit %d", ErrTooManyFiles, r.MaxFiles)
	}
	return nil
}

func (f *LimitedFs) addBytes(n int) error {
	r := f.root()
	if total := r.size.Add(int64(n)); r.TotalFileSize > 0 && total > r.TotalFileSize {
		return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, r.TotalFileSize)
	}
	return nil
}

// Usage returns the number of files created and bytes written so far.
func (f *LimitedFs) Usage() (files, bytes int64) {
	r := f.root()
	return r.files.Load(), r.size.Load()
}

func (f *LimitedFs) wrap(file billy.File, err error) (billy.File, error) {
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// Create creates the named file, counting it against the file limit.
func (f *LimitedFs) Create(filename string) (billy.File, error) {
	if err := f.addFile(); err != nil {
		return nil, err
	}
	return f.wrap(f.Fs.Create(filename))
}

// Open opens the named file for reading.
func (f *LimitedFs) Open(filename string) (billy.File, error) {
	return f.Fs.Open(filename)
}

// OpenFile opens the named file. Opening with os.O_CREATE counts against the file limit.
func (f *LimitedFs) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := f.addFile(); err != nil {
			return nil, err
		}
	}
	return f.wrap(f.Fs.OpenFile(filename, flag, perm))
}

func (f *LimitedFs) Stat(filename string) (os.FileInfo, error) {
	return f.Fs.Stat(filename)
}

func (f *LimitedFs) Rename(oldpath, newpath string) error {
	return f.Fs.Rename(oldpath, newpath)
}

func (f *LimitedFs) Remove(filename string) error {
	return f.Fs.Remove(filename)
}

func (f *LimitedFs) Join(elem ...string) string {
	return f.Fs.Join(elem...)
}

// TempFile creates a temporary file, counting it against the file limit.
func (f *LimitedFs) TempFile(dir, prefix string) (billy.File, error) {
	if err := f.addFile(); err != nil {
		return nil, err
	}
	return f.wrap(f.Fs.TempFile(dir, prefix))
}

func (f *LimitedFs) ReadDir(path string) ([]os.FileInfo, error) {
	return f.Fs.ReadDir(path)
}

func (f *LimitedFs) MkdirAll(filename string, perm os.FileMode) error {
	return f.Fs.MkdirAll(filename, perm)
}

func (f *LimitedFs) Lstat(filename string) (os.FileInfo, error) {
	return f.Fs.Lstat(filename)
}

// Symlink creates a symbolic link, counting it against the file limit.
func (f *LimitedFs) Symlink(target, link string) error {
	if err := f.addFile(); err != nil {
		return err
	}
	return f.Fs.Symlink(target, link)
}

func (f *LimitedFs) Readlink(link string) (string, error) {
	return f.Fs.Readlink(link)
}

// Chroot returns a filesystem rooted at path that shares this filesystem's limits.
func (f *LimitedFs) Chroot(path string) (billy.Filesystem, error) {
	fs, err := f.Fs.Chroot(path)
	if err != nil {
		return nil, err
	}
	return &LimitedFs{Fs: fs, parent: f.root()}, nil
}

func (f *LimitedFs) Root() string {
	return f.Fs.Root()
}

// Capabilities forwards the capabilities of the wrapped filesystem.
func (f *LimitedFs) Capabilities() billy.Capability {
	return billy.Capabilities(f.Fs)
}

type limitedFile struct {
	billy.File
	fs *LimitedFs
}

func (lf *limitedFile) Write(p []byte) (int, error) {
	if err := lf.fs.addBytes(len(p)); err != nil {
		return 0, err
	}
	return lf.File.Write(p)
}
