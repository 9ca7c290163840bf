package scheduler

import (
	"time"

	"github.com/astrid-audio/astrid/internal/audio"
)

// ScheduleEvent allocates (or reuses from the nursery) an Event for buf,
// due to start playing delayTicks from now, and appends it to the waiting
// list.
func (s *Scheduler) ScheduleEvent(buf *audio.Buffer, delayTicks uint64) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.nursery.popFront()
	if e == nil {
		s.nextID++
		e = &Event{ID: s.nextID}
	} else {
		e.reset()
	}

	e.Buf = buf
	e.Pos = 0
	e.Onset = s.ticks + delayTicks
	s.waiting.pushBack(e)

	s.reportCounts()
	return e
}

// Tick runs one output-frame step: promote due waiting events, mix all
// playing events into currentFrame, advance playing cursors, retire
// finished events to the nursery, then advance the scheduler's own clock.
// Order matters: promote/mix/advance/retire all use the ticks value from
// before this call's own increment.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Promote: waiting -> playing, preserving waiting-list (append)
	// order for events sharing an onset.
	due := s.waiting.removeMatching(func(e *Event) bool { return e.Onset <= s.ticks })
	for _, e := range due {
		s.playing.pushBack(e)
	}

	// 2. Mix.
	for c := 0; c < s.channels; c++ {
		var sum float32
		s.playing.forEach(func(e *Event) {
			if e.Buf == nil || e.Pos >= e.Buf.Length {
				return
			}
			v, err := e.Buf.Sample(e.Pos, c)
			if err != nil {
				return
			}
			sum += v
		})
		s.currentFrame[c] = sum
	}

	// 3. Advance.
	s.playing.forEach(func(e *Event) { e.Pos++ })

	// 4. Retire: pos >= length moves to nursery. The cursor at Length-1
	// still has one more sample to mix (step 2 already did, this tick)
	// before the event is done.
	finished := s.playing.removeMatching(func(e *Event) bool {
		return e.Buf == nil || e.Pos >= e.Buf.Length
	})
	for _, e := range finished {
		s.nursery.pushBack(e)
	}

	// 5. Advance the clock.
	s.ticks++
	if s.realtime {
		s.nowSeconds = s.monotonicNowLocked()
	} else {
		s.nowSeconds += s.tickNS / 1e9
	}

	s.reportCounts()
}

func (s *Scheduler) monotonicNowLocked() float64 {
	if s.monotonicNow != nil {
		return s.monotonicNow()
	}
	return float64(time.Now().UnixNano()) / 1e9
}

// IsPlaying reports whether any event is waiting or playing.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting.count > 0 || s.playing.count > 0
}

func (s *Scheduler) CountWaiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting.count
}

func (s *Scheduler) CountPlaying() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing.count
}

func (s *Scheduler) CountDone() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nursery.count
}

// Destroy frees every event on all three lists and the current frame.
// After Destroy, the Scheduler must not be used again.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiting = eventList{}
	s.playing = eventList{}
	s.nursery = eventList{}
	s.currentFrame = nil
}

// CleanupNursery destroys the buffers referenced by nursery events; the
// events themselves remain in the nursery for reuse by ScheduleEvent.
func (s *Scheduler) CleanupNursery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nursery.forEach(func(e *Event) { e.Buf = nil })
}

func (s *Scheduler) reportCounts() {
	if s.metrics == nil {
		return
	}
	s.metrics.SchedulerEventsTotal.WithLabelValues("waiting").Set(float64(s.waiting.count))
	s.metrics.SchedulerEventsTotal.WithLabelValues("playing").Set(float64(s.playing.count))
	s.metrics.SchedulerEventsTotal.WithLabelValues("nursery").Set(float64(s.nursery.count))
}
