// Package transport implements Astrid's message queue abstraction: one
// broker queue (all control messages) and one play queue per instrument,
// created lazily on first send. Three flavors satisfy the same Queue
// interface — a named pipe, an in-process bounded channel, and a Redis
// list. Broker and PlayqFor pick between the named pipe and Redis the
// same way internal/ipc picks between its shm and Redis stores; the
// in-process channel is only built directly through NewMemQueue.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
)

// Queue is the per-queue boundary: Read/Send/Close are the per-instance
// operations. A single complete Message is never split across reads; on
// EINTR a read is retried by the implementation, not the caller.
type Queue interface {
	// Read blocks until a Message is available, ctx is cancelled, or the
	// queue is closed (TransportClosed).
	Read(ctx context.Context) (astridmsg.Message, error)
	// Send enqueues m, the general control-plane entry point.
	Send(ctx context.Context, m astridmsg.Message) error
	Close() error
}

// SendPlay is semantically a Send to a play queue, kept as a distinct
// function so dispatcher code reads with send_play as a named operation.
func SendPlay(ctx context.Context, q Queue, m astridmsg.Message) error {
	return q.Send(ctx, m)
}

// Broker returns (opening or creating) the single broker queue ("msgq")
// that receives all control messages.
func Broker(cfg *config.Config) (Queue, error) {
	return open(cfg, "msgq", cfg.BrokerCapacity)
}

// PlayqFor returns (opening or creating) the named play queue for
// instrument, created lazily on first call. An instrument name containing
// a path separator is rejected as BadMessage.
func PlayqFor(cfg *config.Config, instrument string) (Queue, error) {
	if strings.ContainsAny(instrument, "/\\") {
		return nil, astriderr.New(astriderr.BadMessage, "transport.PlayqFor", fmt.Errorf("instrument name %q contains a path separator", instrument))
	}
	return open(cfg, "playq-"+instrument, cfg.PlayqCapacity)
}

func open(cfg *config.Config, purpose string, capacity int) (Queue, error) {
	if cfg.Redis.Enabled {
		return newRedisQueue(cfg, purpose)
	}
	return newFifoQueue(cfg, purpose, capacity)
}
