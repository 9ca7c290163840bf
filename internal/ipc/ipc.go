// Package ipc implements Astrid's shared-memory primitives: named value
// cells, atomic counters, and the id registry that lets any process attach
// to a cell by filesystem path. Two backends satisfy the same Store
// interface — a flock-backed one for single-host multi-process use
// (regular files standing in for shared-memory segments + named
// semaphores), and a Redis-backed one for environments where a shared
// filesystem isn't available — selected by internal/config.Config.Redis.Enabled,
// the same dual-backend split internal/transport uses for its queues.
package ipc

import (
	"context"

	"github.com/astrid-audio/astrid/internal/config"
)

// Store is the shared boundary for cell and counter primitives: create_cell,
// set_cell, get_cell, destroy_cell, plus a locked read-and-increment for
// counters.
type Store interface {
	// CreateCell ensures a cell of size bytes exists at path, returning its
	// id. Idempotent: if the id file already exists, the existing id is
	// returned rather than a new allocation.
	CreateCell(ctx context.Context, path string, size int) (id uint64, err error)
	// SetCell writes bytes to the cell at path under its lock. The cell
	// must already exist.
	SetCell(ctx context.Context, path string, data []byte) error
	// GetCell reads the cell at path under its lock.
	GetCell(ctx context.Context, path string) ([]byte, error)
	// DestroyCell releases the cell's backing storage and id file.
	DestroyCell(ctx context.Context, path string) error

	// CreateCounter ensures a counter cell exists at path, starting at 1,
	// idempotently.
	CreateCounter(ctx context.Context, path string) error
	// ReadAndIncrement atomically returns the counter's current value and
	// increments it. For N concurrent callers across processes, the
	// returned values are a permutation of {start..start+N-1}.
	ReadAndIncrement(ctx context.Context, path string) (uint64, error)
	// DestroyCounter releases a counter's backing storage.
	DestroyCounter(ctx context.Context, path string) error

	Close() error
}

// New selects a Store implementation per cfg.Redis.Enabled.
func New(cfg *config.Config) (Store, error) {
	if cfg.Redis.Enabled {
		return newRedisStore(cfg)
	}
	return newShmStore(cfg)
}

// Path builds a well-known filesystem/key path for purpose under cfg's
// root and name prefix, e.g. Path(cfg, "msgq") -> "/tmp/astrid-msgq".
func Path(cfg *config.Config, purpose string) string {
	return cfg.Root + "/" + cfg.NamePrefix + "-" + purpose
}
