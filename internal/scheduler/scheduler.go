package scheduler

import (
	"sync"

	"github.com/astrid-audio/astrid/internal/metrics"
)

// Scheduler is the three-list intrusive state machine: every Event lives
// in exactly one of waiting, playing, nursery.
//
// The three event lists are meant to be owned exclusively by whichever
// thread calls Tick and ScheduleEvent; a single-producer/single-consumer
// lock-free hand-off is the real-time-safe discipline for this kind of
// structure. This implementation instead serializes both with one mutex
// for simplicity and portability — callers running Tick from a real audio
// callback thread should be aware a contended lock here can blow a
// real-time deadline, and should prefer a dedicated SPSC queue between
// the scheduling thread and the callback if that matters for their
// deployment.
type Scheduler struct {
	mu sync.Mutex

	channels   int
	sampleRate int
	tickNS     float64
	realtime   bool

	ticks uint64
	// nowSeconds is the scheduler's own notion of elapsed time. In
	// realtime mode it is refreshed every Tick from monotonicNow (a
	// wall-clock read unless WithMonotonicClock overrides it); in offline
	// mode it advances by tickNS every Tick.
	nowSeconds float64

	currentFrame []float32

	waiting eventList
	playing eventList
	nursery eventList
	nextID  uint64

	metrics *metrics.Metrics

	monotonicNow func() float64
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithMetrics attaches a metrics.Metrics for per-list gauge reporting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithMonotonicClock overrides the realtime-mode time source; defaults to
// a wall-clock read. Exposed mainly for tests.
func WithMonotonicClock(fn func() float64) Option {
	return func(s *Scheduler) { s.monotonicNow = fn }
}

// New builds a Scheduler for the given channel count and sample rate.
// tickNS is computed as 1e9/sampleRate — nanoseconds per frame, not
// sampleRate/1e9: nanoseconds-per-frame must grow as sample rate shrinks.
func New(channels, sampleRate int, realtime bool, opts ...Option) *Scheduler {
	s := &Scheduler{
		channels:     channels,
		sampleRate:   sampleRate,
		tickNS:       1e9 / float64(sampleRate),
		realtime:     realtime,
		currentFrame: make([]float32, channels),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TickNS returns nanoseconds per frame.
func (s *Scheduler) TickNS() float64 { return s.tickNS }

// Ticks returns the number of Tick calls so far.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Now returns the scheduler's own clock, in seconds.
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowSeconds
}

// CurrentFrame returns a copy of the most recently mixed frame.
func (s *Scheduler) CurrentFrame() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.currentFrame))
	copy(out, s.currentFrame)
	return out
}
