package ipc

import "context"

// Cell is a thin convenience wrapper binding a Store to one path, so
// callers (internal/midi in particular) don't have to pass the path on
// every call.
type Cell struct {
	store Store
	path  string
	size  int
}

// NewCell creates (idempotently) a cell of size bytes at path and returns
// a handle bound to it.
func NewCell(ctx context.Context, store Store, path string, size int) (*Cell, error) {
	if _, err := store.CreateCell(ctx, path, size); err != nil {
		return nil, err
	}
	return &Cell{store: store, path: path, size: size}, nil
}

func (c *Cell) Get(ctx context.Context) ([]byte, error) {
	return c.store.GetCell(ctx, c.path)
}

func (c *Cell) Set(ctx context.Context, data []byte) error {
	return c.store.SetCell(ctx, c.path, data)
}

func (c *Cell) Destroy(ctx context.Context) error {
	return c.store.DestroyCell(ctx, c.path)
}

// Counter is a thin convenience wrapper binding a Store to one counter
// path.
type Counter struct {
	store Store
	path  string
}

// NewCounter creates (idempotently) a counter at path, starting at 1.
func NewCounter(ctx context.Context, store Store, path string) (*Counter, error) {
	if err := store.CreateCounter(ctx, path); err != nil {
		return nil, err
	}
	return &Counter{store: store, path: path}, nil
}

// ReadAndIncrement returns the counter's current value and advances it.
func (c *Counter) ReadAndIncrement(ctx context.Context) (uint64, error) {
	return c.store.ReadAndIncrement(ctx, c.path)
}

func (c *Counter) Destroy(ctx context.Context) error {
	return c.store.DestroyCounter(ctx, c.path)
}
