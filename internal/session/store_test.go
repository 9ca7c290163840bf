package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmptyDSNIsNoop(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NoError(t, s.RecordMessage(1, "sine", "", 0))
	require.NoError(t, s.Close())
}

func TestVoiceLifecycleTransitions(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "session.sqlite3")
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordMessage(42, "kick", "amp=0.8", 1.5))

	v, err := s.Get(42)
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.Equal(t, uint64(0), v.RenderCount)

	require.NoError(t, s.RecordRender(42))
	v, err = s.Get(42)
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.Equal(t, uint64(1), v.RenderCount)
	require.NotNil(t, v.Started)

	require.NoError(t, s.RecordRender(42))
	v, err = s.Get(42)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.RenderCount)

	require.NoError(t, s.RecordStop(42))
	v, err = s.Get(42)
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.NotNil(t, v.Ended)
}

func TestRecordMessageRejectsPathSeparatorInName(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "session.sqlite3")
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()

	err = s.RecordMessage(1, "../etc/passwd", "", 0)
	require.Error(t, err)
}
