package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineWindowClampsSize(t *testing.T) {
	w := newEngineWindow(WithWidth(10), WithHeight(9000), WithTitle("t"), WithIdleTimeout(-1))
	assert.Equal(t, 320, w.Width())
	assert.Equal(t, 2160, w.Height())
	assert.Equal(t, "t", w.title)
	assert.Equal(t, 250*time.Millisecond, w.idleTimeout)
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
}

func TestDragReportsDeltasForHeldButton(t *testing.T) {
	w := newEngineWindow()

	type drag struct {
		button MouseButton
		dx, dy float32
	}
	var drags []drag
	var ended []MouseButton
	var moves int
	w.SetDragCallback(func(b MouseButton, dx, dy float32) { drags = append(drags, drag{b, dx, dy}) })
	w.SetDragEndCallback(func(b MouseButton) { ended = append(ended, b) })
	w.SetMouseMoveCallback(func(x, y int32) { moves++ })

	w.handleCursor(5, 5)
	assert.Empty(t, drags)

	w.handleButton(MouseButtonLeft, true, 10, 10)
	w.handleCursor(14, 7)
	w.handleCursor(14, 7)
	w.handleButton(MouseButtonRight, true, 14, 7)
	w.handleCursor(20, 7)
	w.handleButton(MouseButtonRight, false, 20, 7)
	w.handleButton(MouseButtonLeft, false, 20, 7)
	w.handleCursor(30, 30)

	assert.Equal(t, []drag{{MouseButtonLeft, 4, -3}, {MouseButtonLeft, 6, 0}}, drags)
	assert.Equal(t, []MouseButton{MouseButtonLeft}, ended)
	assert.Equal(t, 5, moves)
}

func TestWakeWithoutPlatformWindowIsNoop(t *testing.T) {
	w := newEngineWindow()
	w.SetIdle(true)
	assert.NotPanics(t, w.Wake)
	assert.True(t, w.idle)
}
