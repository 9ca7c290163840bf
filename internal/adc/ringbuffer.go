// Package adc implements the shared ADC ring buffer: a fixed-capacity
// interleaved-float buffer written by the audio callback and read by one
// or more separate consumers, with all index arithmetic done in a modular
// space to avoid underflowing near the start of the buffer.
package adc

import (
	"fmt"
	"sync"

	"github.com/astrid-audio/astrid/internal/astriderr"
)

// RingBuffer is a fixed-capacity circular buffer of interleaved float32
// frames, capacity = frames * channels elements.
type RingBuffer struct {
	mu       sync.Mutex
	data     []float32
	frames   int
	channels int
	// pos is the logical write position in frames, monotonically
	// non-decreasing; the physical index is pos % frames. Kept as uint64
	// specifically so "pos - offset - size - 1" style arithmetic never
	// underflows — every subtraction here happens in this same modular
	// u64 space before taking %frames.
	pos uint64
}

// New allocates a RingBuffer holding `frames` frames of `channels`
// interleaved float32 samples each, zero-initialized.
func New(frames, channels int) *RingBuffer {
	return &RingBuffer{
		data:     make([]float32, frames*channels),
		frames:   frames,
		channels: channels,
	}
}

func (r *RingBuffer) Channels() int { return r.channels }
func (r *RingBuffer) Frames() int   { return r.frames }

// Write copies one frame's worth of interleaved samples (len ==
// Channels()) at the physical slot pos % frames, then advances the logical
// pos by one frame.
func (r *RingBuffer) Write(frame []float32) error {
	if len(frame) != r.channels {
		return astriderr.New(astriderr.BadMessage, "adc.RingBuffer.Write", fmt.Errorf("frame has %d channels, want %d", len(frame), r.channels))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(r.pos % uint64(r.frames))
	copy(r.data[idx*r.channels:(idx+1)*r.channels], frame)
	r.pos++
	return nil
}

// Read returns `size` frames ending at (writePos - offset - 1), i.e. a
// window `size` frames wide starting `offset+size` frames behind the
// current write position. A request for more frames than the buffer
// holds is rejected rather than left undefined.
func (r *RingBuffer) Read(offset, size int) ([]float32, error) {
	if size <= 0 {
		return nil, astriderr.New(astriderr.BadMessage, "adc.RingBuffer.Read", fmt.Errorf("size must be positive, got %d", size))
	}
	if size > r.frames {
		return nil, astriderr.New(astriderr.BadMessage, "adc.RingBuffer.Read", fmt.Errorf("size %d exceeds capacity %d", size, r.frames))
	}
	if offset < 0 {
		return nil, astriderr.New(astriderr.BadMessage, "adc.RingBuffer.Read", fmt.Errorf("offset must be non-negative, got %d", offset))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// All arithmetic stays in an unsigned modular space: start is
	// computed as (pos - offset - size) mod frames without ever letting
	// the subtraction go negative in a signed/undersized type.
	shift := uint64(offset) + uint64(size)
	capacity := uint64(r.frames)
	// Reduce shift into [0, capacity) before subtracting so the
	// following subtraction from r.pos (itself reduced mod capacity)
	// cannot underflow.
	shiftMod := shift % capacity
	posMod := r.pos % capacity
	var startMod uint64
	if posMod >= shiftMod {
		startMod = posMod - shiftMod
	} else {
		startMod = capacity - (shiftMod - posMod)
	}

	out := make([]float32, size*r.channels)
	for i := 0; i < size; i++ {
		srcFrame := int((startMod + uint64(i)) % capacity)
		copy(out[i*r.channels:(i+1)*r.channels], r.data[srcFrame*r.channels:(srcFrame+1)*r.channels])
	}
	return out, nil
}

// Pos returns the current logical (monotonic) write position in frames.
func (r *RingBuffer) Pos() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}
