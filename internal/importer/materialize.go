package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// versionFile holds the optional version of a module
const versionFile = "VERSION"

// modulePath maps a dotted module name to its slash separated directory
func modulePath(module string) (string, error) {
	if module == "" {
		return "", fmt.Errorf("%w: empty module name", ErrUnsafePath)
	}
	if strings.ContainsAny(module, `/\`) {
		return "", fmt.Errorf("%w: module name %q contains a path separator", ErrUnsafePath, module)
	}
	parts := strings.Split(module, ".")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: module name %q has an empty segment", ErrUnsafePath, module)
		}
	}
	return path.Join(parts...), nil
}

// cleanRelPath validates a slash separated path relative to a module directory
func cleanRelPath(rel string) (string, error) {
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %q escapes the module directory", ErrUnsafePath, rel)
	}
	return path.Clean(rel), nil
}

// cacheKey turns a source name into a single directory name
func cacheKey(source string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(source)
}

// opener opens a module file given its path relative to the module directory
type opener func(rel string) (io.ReadCloser, error)

// materialize copies the given files into <cache>/<source>/<module path>. The
// module is written to a temporary directory first and renamed into place so a
// failed import never leaves a partial module behind. A non-nil verify sees the
// staged module and can reject it before the previous copy is replaced.
func materialize(
	cache billy.Filesystem, source, module string, files []string, open opener, verify func(*Module) error,
) (*Module, error) {
	modPath, err := modulePath(module)
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := cleanRelPath(f)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	rels = slices.Compact(rels)

	sourceDir := cacheKey(source)
	finalDir := path.Join(sourceDir, modPath)
	tmpDir := path.Join(sourceDir, ".tmp-"+module+"-"+strconv.FormatInt(time.Now().UnixNano(), 36))

	if err := cache.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	result := &Module{
		Name:   module,
		Source: source,
		Files:  rels,
	}

	hash := sha256.New()
	for _, rel := range rels {
		content, err := copyFile(cache, path.Join(tmpDir, rel), rel, open)
		if err != nil {
			_ = util.RemoveAll(cache, tmpDir)
			return nil, err
		}
		fmt.Fprintf(hash, "%s\x00%d\x00", rel, len(content))
		hash.Write(content)
		if rel == versionFile {
			result.Version = strings.TrimSpace(string(content))
		}
	}
	result.Digest = hex.EncodeToString(hash.Sum(nil))

	if verify != nil {
		if err := verify(result); err != nil {
			_ = util.RemoveAll(cache, tmpDir)
			return nil, err
		}
	}

	if err := util.RemoveAll(cache, finalDir); err != nil && !os.IsNotExist(err) {
		_ = util.RemoveAll(cache, tmpDir)
		return nil, fmt.Errorf("failed to remove previous module: %w", err)
	}
	if err := cache.MkdirAll(path.Dir(finalDir), 0o755); err != nil {
		_ = util.RemoveAll(cache, tmpDir)
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := cache.Rename(tmpDir, finalDir); err != nil {
		_ = util.RemoveAll(cache, tmpDir)
		return nil, fmt.Errorf("failed to move module into place: %w", err)
	}

	result.Dir = cache.Join(cache.Root(), finalDir)
	return result, nil
}

func copyFile(cache billy.Filesystem, dst, rel string, open opener) ([]byte, error) {
	src, err := open(rel)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if err := cache.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := util.WriteFile(cache, dst, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return content, nil
}

// walkFiles lists the regular files below dir in fs, relative to dir
func walkFiles(fs billy.Filesystem, dir string) ([]string, error) {
	var files []string
	err := util.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
