package midi

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/ipc"
)

// Sender is satisfied by internal/queue.Broker; trigger re-emits recorded
// messages into the broker queue.
type Sender interface {
	Send(ctx context.Context, m astridmsg.Message) error
}

// NoteMap is the append-only per-(device, note) file of fixed-width
// Message records. The record offset equals
// index * astridmsg.Size(maxName, maxMsg); removal overwrites in place
// with a tombstone, never truncates.
type NoteMap struct {
	cfg     *config.Config
	path    string
	maxName int
	maxMsg  int

	mu sync.Mutex
}

// Open binds a NoteMap to the deterministic path for (device, note). A
// non-existent file is treated as empty, not an error — it is created
// lazily on first Append.
func Open(cfg *config.Config, device, note int) *NoteMap {
	return &NoteMap{
		cfg:     cfg,
		path:    ipc.Path(cfg, fmtNotemapPurpose(device, note)),
		maxName: cfg.MaxName,
		maxMsg:  cfg.MaxMsg,
	}
}

func fmtNotemapPurpose(device, note int) string {
	return fmt.Sprintf("midimap-note-%d-%d", device, note)
}

func (n *NoteMap) recordSize() int {
	return astridmsg.Size(n.maxName, n.maxMsg)
}

// Append adds msg to the end of the notemap file, an O(1) operation.
func (n *NoteMap) Append(msg astridmsg.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	buf, err := astridmsg.Encode(msg, n.maxName, n.maxMsg)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Append", err)
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Append", err)
	}
	return nil
}

// Remove rewrites the record at slot index to a tombstone in place.
// Removing an out-of-range index is a no-op (the file is the only state;
// there is nothing to remove).
func (n *NoteMap) Remove(index int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	f, err := os.OpenFile(n.path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Remove", err)
	}
	defer f.Close()

	size := n.recordSize()
	offset := int64(index) * int64(size)

	info, err := f.Stat()
	if err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Remove", err)
	}
	if index < 0 || offset+int64(size) > info.Size() {
		return nil
	}

	tombstone, err := astridmsg.Encode(astridmsg.EmptyMessage(), n.maxName, n.maxMsg)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(tombstone, offset); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Remove", err)
	}
	return nil
}

// Trigger iterates the notemap in file order; for each non-tombstone
// record it calls sender.Send. A non-existent map file is treated as
// empty. Trigger returns the first hard I/O error but skips and continues
// past individual records that fail to decode.
func (n *NoteMap) Trigger(ctx context.Context, sender Sender) error {
	n.mu.Lock()
	f, err := os.Open(n.path)
	if err != nil {
		n.mu.Unlock()
		if os.IsNotExist(err) {
			return nil
		}
		return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Trigger", err)
	}
	defer func() {
		f.Close()
		n.mu.Unlock()
	}()

	size := n.recordSize()
	buf := make([]byte, size)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "midi.NoteMap.Trigger", err)
		}

		msg, decodeErr := astridmsg.Decode(buf, n.maxName, n.maxMsg)
		if decodeErr != nil {
			continue
		}
		if msg.IsTombstone() {
			continue
		}
		if err := sender.Send(ctx, msg); err != nil {
			return err
		}
	}
}
