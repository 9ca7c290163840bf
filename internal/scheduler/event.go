// Package scheduler implements the audio event scheduler: a three-list
// intrusive state machine (waiting -> playing -> nursery) that mixes
// active buffers into an output frame once per tick.
package scheduler

import "github.com/astrid-audio/astrid/internal/audio"

// Event is one scheduled audio buffer. It belongs to exactly one of the
// scheduler's three lists at all times; Next is the intrusive
// singly-linked-list pointer, never shared between lists.
type Event struct {
	ID    uint64
	Buf   *audio.Buffer
	Pos   int
	Onset uint64 // ticks
	Next  *Event
}

// reset fully clears pos/onset/next and drops the previous buffer before
// the event is reassigned from the nursery: a stale buffer reference must
// never survive into the next ScheduleEvent call.
func (e *Event) reset() {
	e.Pos = 0
	e.Onset = 0
	e.Next = nil
	e.Buf = nil
}
