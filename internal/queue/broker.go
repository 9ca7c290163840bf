// Package queue manages Astrid's named queues at the deployment level: one
// broker queue, and a registry of per-instrument play queues created
// lazily on first send. It is the thin layer above internal/transport that
// names msgq and per-instrument playqs as first-class things rather than
// bare Queue values.
package queue

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/transport"
)

// Broker owns the single msgq and the map of lazily-created play queues.
// playqs is an xsync.Map rather than a mutex-guarded map: reads (the
// common case, once an instrument's queue is open) never contend with
// each other.
type Broker struct {
	cfg *config.Config

	msgq transport.Queue

	playqs *xsync.Map[string, transport.Queue]
}

// NewBroker opens (creating if needed) the broker queue.
func NewBroker(cfg *config.Config) (*Broker, error) {
	q, err := transport.Broker(cfg)
	if err != nil {
		return nil, err
	}
	return &Broker{cfg: cfg, msgq: q, playqs: xsync.NewMap[string, transport.Queue]()}, nil
}

// Send enqueues m onto the broker queue.
func (b *Broker) Send(ctx context.Context, m astridmsg.Message) error {
	return b.msgq.Send(ctx, m)
}

// Read blocks for the next message on the broker queue.
func (b *Broker) Read(ctx context.Context) (astridmsg.Message, error) {
	return b.msgq.Read(ctx)
}

// SendPlay forwards m to instrument's play queue, creating the queue on
// first use.
func (b *Broker) SendPlay(ctx context.Context, instrument string, m astridmsg.Message) error {
	q, err := b.playq(instrument)
	if err != nil {
		return err
	}
	return q.Send(ctx, m)
}

// ReadPlay blocks for the next message on instrument's play queue,
// creating the queue on first use.
func (b *Broker) ReadPlay(ctx context.Context, instrument string) (astridmsg.Message, error) {
	q, err := b.playq(instrument)
	if err != nil {
		return astridmsg.Message{}, err
	}
	return q.Read(ctx)
}

func (b *Broker) playq(instrument string) (transport.Queue, error) {
	if q, ok := b.playqs.Load(instrument); ok {
		return q, nil
	}
	q, err := transport.PlayqFor(b.cfg, instrument)
	if err != nil {
		return nil, err
	}
	actual, _ := b.playqs.LoadOrStore(instrument, q)
	if actual != q {
		// Lost the race to open this instrument's queue; close the one we
		// opened and use the winner's instead.
		q.Close()
	}
	return actual, nil
}

// Close closes the broker queue and every play queue opened so far.
func (b *Broker) Close() error {
	var firstErr error
	if err := b.msgq.Close(); err != nil {
		firstErr = err
	}
	b.playqs.Range(func(_ string, q transport.Queue) bool {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}
