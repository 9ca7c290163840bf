package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	r := New(4, 2)
	require.NoError(t, r.Write([]float32{1, 1}))
	require.NoError(t, r.Write([]float32{2, 2}))
	require.NoError(t, r.Write([]float32{3, 3}))
	require.NoError(t, r.Write([]float32{4, 4}))

	out, err := r.Read(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 4}, out)
}

func TestRingBufferReadWraparound(t *testing.T) {
	r := New(3, 1)
	require.NoError(t, r.Write([]float32{1}))
	require.NoError(t, r.Write([]float32{2}))
	require.NoError(t, r.Write([]float32{3}))
	require.NoError(t, r.Write([]float32{4})) // wraps, overwrites frame 0 slot

	out, err := r.Read(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, out)
}

func TestRingBufferReadOversizeRejected(t *testing.T) {
	r := New(4, 1)
	_, err := r.Read(0, 5)
	require.Error(t, err)
}

func TestRingBufferWriteWrongChannelsRejected(t *testing.T) {
	r := New(4, 2)
	err := r.Write([]float32{1})
	require.Error(t, err)
}

// TestRingBufferNoUnderflowBeforeWraparound checks that a read whose
// offset+size exceeds the write position (before the buffer has even
// wrapped once) does not underflow or panic.
func TestRingBufferNoUnderflowBeforeWraparound(t *testing.T) {
	r := New(8, 1)
	require.NoError(t, r.Write([]float32{1}))

	out, err := r.Read(2, 3)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
