package transport

import (
	"context"
	"sync"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
)

// memQueue is a bounded in-process channel transport flavor for
// single-binary deployments (tests, the CLI injector talking to an
// in-process broker): strict capacity and a blocking receive; Send does
// not block on a full queue but fails with TransportFull.
type memQueue struct {
	ch     chan astridmsg.Message
	closed chan struct{}
	once   sync.Once
}

// NewMemQueue constructs a bounded in-process Queue. Exported for tests
// and for any in-process deployment (CLI talking to an embedded broker)
// that doesn't need cross-process transport at all.
func NewMemQueue(capacity int) Queue {
	return newMemQueue(capacity)
}

func newMemQueue(capacity int) *memQueue {
	return &memQueue{
		ch:     make(chan astridmsg.Message, capacity),
		closed: make(chan struct{}),
	}
}

func (q *memQueue) Read(ctx context.Context) (astridmsg.Message, error) {
	select {
	case m, ok := <-q.ch:
		if !ok {
			return astridmsg.Message{}, astriderr.New(astriderr.TransportClosed, "transport.memQueue.Read", nil)
		}
		return m, nil
	case <-q.closed:
		return astridmsg.Message{}, astriderr.New(astriderr.TransportClosed, "transport.memQueue.Read", nil)
	case <-ctx.Done():
		return astridmsg.Message{}, astriderr.New(astriderr.Interrupted, "transport.memQueue.Read", ctx.Err())
	}
}

func (q *memQueue) Send(ctx context.Context, m astridmsg.Message) error {
	select {
	case q.ch <- m:
		return nil
	case <-q.closed:
		return astriderr.New(astriderr.TransportClosed, "transport.memQueue.Send", nil)
	case <-ctx.Done():
		return astriderr.New(astriderr.Interrupted, "transport.memQueue.Send", ctx.Err())
	default:
		return astriderr.New(astriderr.TransportFull, "transport.memQueue.Send", nil)
	}
}

func (q *memQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
