package transport

import (
	"context"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
)

// fifoQueue is the named-pipe transport flavor: each message is exactly
// astridmsg.Size(maxName, maxMsg) bytes, and a short read is retried by
// readExact below rather than surfaced as a split message.
type fifoQueue struct {
	path    string
	maxName int
	maxMsg  int

	mu   sync.Mutex
	read *os.File
	send *os.File
}

func newFifoQueue(cfg *config.Config, purpose string, _ int) (Queue, error) {
	path := cfg.Root + "/" + cfg.NamePrefix + "-" + purpose
	if err := unix.Mkfifo(path, 0o644); err != nil && !os.IsExist(err) {
		return nil, astriderr.New(astriderr.ResourceExhausted, "transport.newFifoQueue", err)
	}
	return &fifoQueue{path: path, maxName: cfg.MaxName, maxMsg: cfg.MaxMsg}, nil
}

func (q *fifoQueue) openRead() (*os.File, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.read != nil {
		return q.read, nil
	}
	f, err := os.OpenFile(q.path, os.O_RDONLY, os.ModeNamedPipe)
	if err != nil {
		return nil, astriderr.New(astriderr.TransportClosed, "transport.fifoQueue.openRead", err)
	}
	q.read = f
	return f, nil
}

func (q *fifoQueue) openWrite() (*os.File, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.send != nil {
		return q.send, nil
	}
	f, err := os.OpenFile(q.path, os.O_WRONLY, os.ModeNamedPipe)
	if err != nil {
		return nil, astriderr.New(astriderr.TransportClosed, "transport.fifoQueue.openWrite", err)
	}
	q.send = f
	return f, nil
}

func (q *fifoQueue) Read(ctx context.Context) (astridmsg.Message, error) {
	f, err := q.openRead()
	if err != nil {
		return astridmsg.Message{}, err
	}

	size := astridmsg.Size(q.maxName, q.maxMsg)
	buf, err := readExact(f, size)
	if err != nil {
		if err == io.EOF {
			return astridmsg.Message{}, astriderr.New(astriderr.TransportClosed, "transport.fifoQueue.Read", err)
		}
		return astridmsg.Message{}, err
	}

	return astridmsg.Decode(buf, q.maxName, q.maxMsg)
}

func (q *fifoQueue) Send(ctx context.Context, m astridmsg.Message) error {
	f, err := q.openWrite()
	if err != nil {
		return err
	}

	buf, err := astridmsg.Encode(m, q.maxName, q.maxMsg)
	if err != nil {
		return err
	}

	if _, err := f.Write(buf); err != nil {
		if isEINTR(err) {
			_, err2 := f.Write(buf)
			if err2 != nil {
				return astriderr.New(astriderr.TransportFull, "transport.fifoQueue.Send", err2)
			}
			return nil
		}
		return astriderr.New(astriderr.TransportFull, "transport.fifoQueue.Send", err)
	}
	return nil
}

func (q *fifoQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var firstErr error
	if q.read != nil {
		if err := q.read.Close(); err != nil {
			firstErr = err
		}
	}
	if q.send != nil {
		if err := q.send.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return astriderr.New(astriderr.TransportClosed, "transport.fifoQueue.Close", firstErr)
	}
	return nil
}

// readExact retries short reads and EINTR until exactly n bytes are read,
// so a caller never observes a message split across two reads.
func readExact(f *os.File, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := f.Read(buf[read:])
		if err != nil {
			if isEINTR(err) {
				continue
			}
			if err == io.EOF && read == 0 {
				return nil, io.EOF
			}
			return nil, err
		}
		read += m
	}
	return buf, nil
}

func isEINTR(err error) bool {
	return err == unix.EINTR
}
