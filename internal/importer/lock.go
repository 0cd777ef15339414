package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the polling interval while another process holds a source lock
const lockRetryDelay = 100 * time.Millisecond

// materializeLocked materializes a module while holding the source's cache lock.
// Processes sharing an on-disk cache (serve and load) never swap the same
// module directory concurrently. In-memory caches are not locked.
func (o *options) materializeLocked(
	ctx context.Context, source, module string, files []string, open opener,
) (*Module, error) {
	unlock, err := o.lockSource(ctx, source)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return materialize(o.cache, source, module, files, open, o.verify)
}

func (o *options) lockSource(ctx context.Context, source string) (func(), error) {
	if o.cacheDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(o.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(o.cacheDir, "."+cacheKey(source)+".lock")
	lock := flock.New(path)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock module cache %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock module cache %s", path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock module cache", "path", path, "error", err)
		}
	}, nil
}
