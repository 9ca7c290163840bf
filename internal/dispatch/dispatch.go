package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
	"github.com/astrid-audio/astrid/internal/metrics"
	"github.com/astrid-audio/astrid/internal/session"
)

// PlaySender is satisfied by internal/queue.Broker: send_play delivers a
// due message to the named instrument's play queue.
type PlaySender interface {
	SendPlay(ctx context.Context, instrument string, m astridmsg.Message) error
}

// Reader is satisfied by internal/queue.Broker: the feeder blocks on the
// broker queue for arriving messages.
type Reader interface {
	Read(ctx context.Context) (astridmsg.Message, error)
}

// Service runs two cooperative tasks: the feeder (files arrivals into the
// pq) and the dispatcher (relays due messages, honours STOP_VOICE/SHUTDOWN).
// Both share one pqueue guarded by mu.
type Service struct {
	cfg     *config.Config
	reader  Reader
	sender  PlaySender
	metrics *metrics.Metrics
	logger  *slog.Logger
	session *session.Store

	mu sync.Mutex
	pq *pqueue

	running atomic.Bool
}

// NewService builds a dispatcher Service. metrics and logger may be nil;
// sessionStore may be nil (a nil *session.Store is itself a no-op, so
// callers can pass one through unconditionally whether or not session
// logging is configured).
func NewService(cfg *config.Config, reader Reader, sender PlaySender, m *metrics.Metrics, logger *slog.Logger, sessionStore *session.Store) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		reader:  reader,
		sender:  sender,
		metrics: m,
		logger:  logger,
		session: sessionStore,
		pq:      newPQueue(),
	}
}

// Run starts the feeder and dispatcher loops and blocks until both exit
// (on SHUTDOWN or ctx cancellation).
func (s *Service) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.feed(ctx)
	}()
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()
	wg.Wait()
}

// Running reports whether the service's loops are active, safe to read
// concurrently from signal handlers and other goroutines.
func (s *Service) Running() bool {
	return s.running.Load()
}

// feed blocks on the broker queue; for each arrival it inserts a pq node.
// On SHUTDOWN it inserts the node (so the dispatcher observes and acts on
// it) and returns.
func (s *Service) feed(ctx context.Context) {
	for {
		msg, err := s.reader.Read(ctx)
		if err != nil {
			s.logger.Warn("dispatch feeder: read failed", "error", err)
			return
		}

		s.mu.Lock()
		s.pq.insert(msg)
		depth := s.pq.len()
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.DispatcherQueueDepth.Set(float64(depth))
		}

		if msg.Type == astridmsg.Play || msg.Type == astridmsg.Trigger {
			if err := s.session.RecordMessage(msg.VoiceID, msg.InstrumentName, msg.Msg, msg.Timestamp); err != nil {
				s.logger.Warn("dispatch feeder: session record failed", "voice_id", msg.VoiceID, "error", err)
			}
		}

		if msg.Type == astridmsg.Shutdown {
			return
		}
	}
}

// dispatch loops: peek the earliest-deadline message, act on SHUTDOWN or
// STOP_VOICE, else wait for its deadline and send it.
func (s *Service) dispatch(ctx context.Context) {
	pollInterval := s.cfg.DispatchPollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Microsecond
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		head, ok := s.pq.peek()
		s.mu.Unlock()

		if !ok {
			if !sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		switch head.msg.Type {
		case astridmsg.Shutdown:
			return

		case astridmsg.StopVoice:
			s.mu.Lock()
			s.pq.removeVoice(head.msg.VoiceID)
			s.mu.Unlock()
			if err := s.session.RecordStop(head.msg.VoiceID); err != nil {
				s.logger.Warn("dispatch: session record stop failed", "voice_id", head.msg.VoiceID, "error", err)
			}
			continue
		}

		// STOP_INSTRUMENT is reserved for a future handler: no special
		// casing, it falls through to the timestamp check and send_play
		// like any other message.

		now := nowSeconds()
		if head.msg.Timestamp > now {
			if !sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		if err := s.sender.SendPlay(ctx, head.msg.InstrumentName, head.msg); err != nil {
			// Transient failure: sleep and retry the same head, never
			// drop the message.
			s.logger.Warn("dispatch: send_play failed, retrying", "instrument", head.msg.InstrumentName, "error", err)
			if !sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.pq.popHead()
		depth := s.pq.len()
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.DispatcherQueueDepth.Set(float64(depth))
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

var nowSeconds = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
