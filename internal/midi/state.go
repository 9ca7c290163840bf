// Package midi implements per-device MIDI state cells and the per-note
// trigger notemap: latest-value cells for CCs and notes, and an
// append-only file of control messages replayed when a note arrives.
package midi

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/ipc"
)

const cellSize = 8 // one uint64, matching ipc counter-cell width

// State holds the latest CC and note values for every device, backed by
// ipc.Cell at deterministic paths. get of an uninitialised path returns 0
// and initialises the cell.
type State struct {
	cfg   *config.Config
	store ipc.Store
}

// NewState binds a State to store.
func NewState(cfg *config.Config, store ipc.Store) *State {
	return &State{cfg: cfg, store: store}
}

func ccPath(cfg *config.Config, device, cc int) string {
	return ipc.Path(cfg, fmt.Sprintf("midi-cc-%d-%d", device, cc))
}

func notePath(cfg *config.Config, device, note int) string {
	return ipc.Path(cfg, fmt.Sprintf("midi-note-%d-%d", device, note))
}

// SetCC stores value for (device, cc).
func (s *State) SetCC(ctx context.Context, device, cc int, value uint64) error {
	return s.set(ctx, ccPath(s.cfg, device, cc), value)
}

// GetCC returns the latest value for (device, cc), or 0 if never set.
func (s *State) GetCC(ctx context.Context, device, cc int) (uint64, error) {
	return s.get(ctx, ccPath(s.cfg, device, cc))
}

// SetNote stores value (e.g. velocity) for (device, note).
func (s *State) SetNote(ctx context.Context, device, note int, value uint64) error {
	return s.set(ctx, notePath(s.cfg, device, note), value)
}

// GetNote returns the latest value for (device, note), or 0 if never set.
func (s *State) GetNote(ctx context.Context, device, note int) (uint64, error) {
	return s.get(ctx, notePath(s.cfg, device, note))
}

func (s *State) set(ctx context.Context, path string, value uint64) error {
	if _, err := s.store.CreateCell(ctx, path, cellSize); err != nil {
		return err
	}
	var buf [cellSize]byte
	binary.NativeEndian.PutUint64(buf[:], value)
	return s.store.SetCell(ctx, path, buf[:])
}

func (s *State) get(ctx context.Context, path string) (uint64, error) {
	if _, err := s.store.CreateCell(ctx, path, cellSize); err != nil {
		return 0, err
	}
	data, err := s.store.GetCell(ctx, path)
	if err != nil {
		return 0, err
	}
	if len(data) < cellSize {
		return 0, nil
	}
	return binary.NativeEndian.Uint64(data[:cellSize]), nil
}
