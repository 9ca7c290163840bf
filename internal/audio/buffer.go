// Package audio defines the in-memory audio buffer type shared by the
// message codec, the event scheduler and the shared ADC ring buffer.
package audio

import "fmt"

// Buffer is an owned, contiguous block of interleaved samples: Data has
// Length*Channels elements, Data[i*Channels+c] is channel c of frame i.
type Buffer struct {
	Data       []float32
	Length     int
	Channels   int
	SampleRate int

	// Pos is the playback cursor. Invariant: Pos <= Length; Pos == Length
	// means the buffer is finished.
	Pos int
	// Looping is carried through serialization. The scheduler does not
	// read it: an event is retired on reaching Length whether or not its
	// buffer is marked looping.
	Looping bool
	// Onset is the offset (in ticks) at which this buffer's event should
	// begin playing, carried alongside the buffer so scheduling and
	// serialization share one field set.
	Onset uint64
}

// NewBuffer allocates a Buffer of the given shape with zeroed samples.
func NewBuffer(length, channels, sampleRate int) *Buffer {
	return &Buffer{
		Data:       make([]float32, length*channels),
		Length:     length,
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// Finished reports whether the playback cursor has reached the end.
func (b *Buffer) Finished() bool {
	return b.Pos >= b.Length
}

// Sample returns the sample for frame pos, output channel c, mapping c
// modulo the buffer's own channel count when the buffer has fewer channels
// than the caller's output.
func (b *Buffer) Sample(pos, c int) (float32, error) {
	if b.Channels == 0 {
		return 0, fmt.Errorf("audio: buffer has zero channels")
	}
	if pos < 0 || pos >= b.Length {
		return 0, fmt.Errorf("audio: frame %d out of range [0,%d)", pos, b.Length)
	}
	idx := pos*b.Channels + (c % b.Channels)
	return b.Data[idx], nil
}

// Reset clears cursor, onset and looping state so a buffer pulled from a
// nursery for reuse starts clean. Data is not reallocated; callers replace
// it (or resize it) before assigning new content.
func (b *Buffer) Reset() {
	b.Pos = 0
	b.Onset = 0
	b.Looping = false
}
