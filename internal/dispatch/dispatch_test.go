package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
)

// fakeReader replays a fixed slice of messages, one per Read call, then
// blocks until ctx is cancelled.
type fakeReader struct {
	mu   sync.Mutex
	msgs []astridmsg.Message
}

func (r *fakeReader) Read(ctx context.Context) (astridmsg.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return astridmsg.Message{}, ctx.Err()
}

type recordingSender struct {
	mu   sync.Mutex
	sent []astridmsg.Message
}

func (s *recordingSender) SendPlay(_ context.Context, _ string, m astridmsg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

func (s *recordingSender) snapshot() []astridmsg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]astridmsg.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func testCfg() *config.Config {
	return &config.Config{DispatchPollInterval: time.Millisecond}
}

// TestDispatcherOrdersByTimestamp checks that given timestamps
// t1 <= t2 <= t3 (all already due), send_play calls respect that order
// regardless of arrival order.
func TestDispatcherOrdersByTimestamp(t *testing.T) {
	restore := freezeNow(0)
	defer restore()

	reader := &fakeReader{msgs: []astridmsg.Message{
		{Type: astridmsg.Play, Timestamp: -0.05, InstrumentName: "a"},
		{Type: astridmsg.Play, Timestamp: -0.10, InstrumentName: "b"},
		{Type: astridmsg.Play, Timestamp: -0.01, InstrumentName: "c"},
		{Type: astridmsg.Shutdown, Timestamp: 0},
	}}
	sender := &recordingSender{}

	svc := NewService(testCfg(), reader, sender, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Run(ctx)

	sent := sender.snapshot()
	require.Len(t, sent, 3)
	assert.Equal(t, "b", sent[0].InstrumentName)
	assert.Equal(t, "a", sent[1].InstrumentName)
	assert.Equal(t, "c", sent[2].InstrumentName)
}

// TestStopVoiceCancelsFutureMessage exercises scenario S4: a STOP_VOICE
// for a voice removes its not-yet-due PLAY from the queue entirely.
func TestStopVoiceCancelsFutureMessage(t *testing.T) {
	restore := freezeNow(0)
	defer restore()

	reader := &fakeReader{msgs: []astridmsg.Message{
		{Type: astridmsg.Play, Timestamp: 1.0, VoiceID: 7, InstrumentName: "kick"},
		{Type: astridmsg.StopVoice, Timestamp: 0.0, VoiceID: 7},
	}}
	sender := &recordingSender{}
	svc := NewService(testCfg(), reader, sender, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	svc.Run(ctx)

	for _, m := range sender.snapshot() {
		assert.NotEqual(t, uint64(7), m.VoiceID, "voice 7 should have been cancelled")
	}
}

func TestPQueueRemoveVoiceCollectsAllMatches(t *testing.T) {
	pq := newPQueue()
	pq.insert(astridmsg.Message{VoiceID: 1, Timestamp: 1})
	pq.insert(astridmsg.Message{VoiceID: 2, Timestamp: 2})
	pq.insert(astridmsg.Message{VoiceID: 1, Timestamp: 3})
	pq.insert(astridmsg.Message{VoiceID: 1, Timestamp: 4})

	removed := pq.removeVoice(1)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, pq.len())
}

// freezeNow overrides nowSeconds for the duration of a test, restoring the
// real clock on return.
func freezeNow(v float64) func() {
	prev := nowSeconds
	nowSeconds = func() float64 { return v }
	return func() { nowSeconds = prev }
}
