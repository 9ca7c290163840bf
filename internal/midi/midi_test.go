package midi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/ipc"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Root:       t.TempDir(),
		NamePrefix: "astrid",
		MaxName:    32,
		MaxMsg:     64,
	}
}

type recordingSender struct {
	msgs []astridmsg.Message
}

func (r *recordingSender) Send(_ context.Context, m astridmsg.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestNoteMapTriggerEmptyFile(t *testing.T) {
	cfg := testConfig(t)
	nm := Open(cfg, 0, 60)

	sender := &recordingSender{}
	require.NoError(t, nm.Trigger(context.Background(), sender))
	assert.Empty(t, sender.msgs)
}

// TestNoteMapRemoveThenTrigger checks remove(i); trigger() sends the same
// messages as trigger() would without the i-th record.
func TestNoteMapRemoveThenTrigger(t *testing.T) {
	cfg := testConfig(t)
	nm := Open(cfg, 0, 60)

	m1 := astridmsg.Message{Type: astridmsg.Trigger, InstrumentName: "kick", Msg: "m1"}
	m2 := astridmsg.Message{Type: astridmsg.Trigger, InstrumentName: "kick", Msg: "m2"}
	m3 := astridmsg.Message{Type: astridmsg.Trigger, InstrumentName: "kick", Msg: "m3"}

	require.NoError(t, nm.Append(m1))
	require.NoError(t, nm.Append(m2))
	require.NoError(t, nm.Append(m3))

	require.NoError(t, nm.Remove(1))

	sender := &recordingSender{}
	require.NoError(t, nm.Trigger(context.Background(), sender))

	require.Len(t, sender.msgs, 2)
	assert.Equal(t, "m1", sender.msgs[0].Msg)
	assert.Equal(t, "m3", sender.msgs[1].Msg)
}

func TestStateGetUninitializedReturnsZero(t *testing.T) {
	cfg := testConfig(t)
	store, err := ipc.New(cfg)
	require.NoError(t, err)

	s := NewState(cfg, store)
	v, err := s.GetCC(context.Background(), 0, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestStateSetGetRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	store, err := ipc.New(cfg)
	require.NoError(t, err)

	s := NewState(cfg, store)
	ctx := context.Background()
	require.NoError(t, s.SetNote(ctx, 0, 60, 127))
	v, err := s.GetNote(ctx, 0, 60)
	require.NoError(t, err)
	assert.Equal(t, uint64(127), v)
}
