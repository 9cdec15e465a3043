package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerReportsOncePerInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProfiler(slog.New(slog.NewTextHandler(&buf, nil)))

	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }
	p.Reset()

	for i := 0; i < 9; i++ {
		clock = clock.Add(100 * time.Millisecond)
		_, reported := p.Tick()
		require.False(t, reported)
	}
	clock = clock.Add(100 * time.Millisecond)
	s, reported := p.Tick()
	require.True(t, reported)

	assert.InDelta(t, 10.0, s.FPS, 1e-9)
	assert.Equal(t, 100*time.Millisecond, s.FrameTime)
	assert.Positive(t, s.SysMB)
	assert.Equal(t, s, p.Last())
	assert.Contains(t, buf.String(), "msg=profiler")
	assert.Contains(t, buf.String(), "fps=10")

	clock = clock.Add(time.Millisecond)
	_, reported = p.Tick()
	assert.False(t, reported)
}

func TestProfilerInterval(t *testing.T) {
	p := NewProfiler(nil)
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }
	p.Reset()

	p.SetInterval(0)
	assert.Equal(t, time.Second, p.updateInterval)

	p.SetInterval(50 * time.Millisecond)
	clock = clock.Add(50 * time.Millisecond)
	_, reported := p.Tick()
	assert.True(t, reported)
}
