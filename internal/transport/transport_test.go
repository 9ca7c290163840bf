package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
)

func TestMemQueueSendRead(t *testing.T) {
	q := NewMemQueue(4)
	defer q.Close()

	ctx := context.Background()
	msg := astridmsg.Message{Type: astridmsg.Play, VoiceID: 1, InstrumentName: "sine"}
	require.NoError(t, q.Send(ctx, msg))

	got, err := q.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestMemQueueFullReturnsTransportFull(t *testing.T) {
	q := NewMemQueue(1)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Send(ctx, astridmsg.Message{Type: astridmsg.Play}))
	err := q.Send(ctx, astridmsg.Message{Type: astridmsg.Play})
	require.Error(t, err)
	assert.True(t, astriderr.Is(err, astriderr.TransportFull))
}

func TestMemQueueReadBlocksUntilSend(t *testing.T) {
	q := NewMemQueue(1)
	defer q.Close()

	ctx := context.Background()
	done := make(chan astridmsg.Message, 1)
	go func() {
		m, err := q.Read(ctx)
		require.NoError(t, err)
		done <- m
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Send(ctx, astridmsg.Message{Type: astridmsg.Shutdown}))

	select {
	case m := <-done:
		assert.Equal(t, astridmsg.Shutdown, m.Type)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after send")
	}
}

func TestMemQueueCloseUnblocksRead(t *testing.T) {
	q := NewMemQueue(1)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Read(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}
