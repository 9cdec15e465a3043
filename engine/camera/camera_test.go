package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	active  bool
	removed bool
	fn      common.FrameFunc
}

func (h *fakeHandle) SetActive(active bool) { h.active = active }
func (h *fakeHandle) Active() bool          { return h.active }
func (h *fakeHandle) Remove()               { h.removed = true }

type fakeScheduler struct {
	handles []*fakeHandle
}

func (s *fakeScheduler) OnFrame(active bool, fn common.FrameFunc) common.FrameHandle {
	h := &fakeHandle{active: active, fn: fn}
	s.handles = append(s.handles, h)
	return h
}

// frame runs every active, attached callback once.
func (s *fakeScheduler) frame() {
	for _, h := range s.handles {
		if h.active && !h.removed {
			h.fn(0)
		}
	}
}

func TestOrbitDecay(t *testing.T) {
	oc := NewOrbitControl(WithSensitivity(1), WithFriction(0.1))
	assert.Equal(t, OrbitIdle, oc.State())

	oc.Drag(10, 0)
	oc.EndGesture()
	require.Equal(t, OrbitAnimating, oc.State())

	assert.True(t, oc.Tick())
	pan, zoom := oc.Velocity()
	assert.InDelta(t, 9, pan[0], 1e-5)
	assert.Zero(t, pan[1])
	assert.Zero(t, zoom)
	assert.InDelta(t, 10, oc.Yaw(), 1e-5)

	ticks := 1
	for oc.Tick() {
		ticks++
		require.Less(t, ticks, 1000)
	}
	assert.Equal(t, OrbitIdle, oc.State())
	pan, _ = oc.Velocity()
	assert.Equal(t, [2]float32{}, pan)
	// geometric series 10 / 0.1
	assert.InDelta(t, 100, oc.Yaw(), 0.01)
	assert.False(t, oc.Tick())
}

func TestOrbitDragAccumulates(t *testing.T) {
	oc := NewOrbitControl(WithSensitivity(0.5))
	oc.Drag(2, 4)
	oc.Drag(2, 0)
	pan, _ := oc.Velocity()
	assert.Equal(t, [2]float32{2, 2}, pan)
}

func TestOrbitPitchClamp(t *testing.T) {
	oc := NewOrbitControl(WithSensitivity(1), WithPitchBounds(-120, 120))
	oc.Drag(0, 500)
	oc.Tick()
	assert.Equal(t, float32(89.9), oc.Pitch())

	oc.Drag(0, -5000)
	for oc.Tick() {
	}
	assert.Equal(t, float32(-89.9), oc.Pitch())
}

func TestOrbitPosition(t *testing.T) {
	oc := NewOrbitControl(WithYaw(90), WithDistance(2), WithTarget(1, 0, 0))
	pos := oc.Position()
	assert.InDelta(t, -1, pos[0], 1e-5)
	assert.InDelta(t, 0, pos[1], 1e-5)
	assert.InDelta(t, 0, pos[2], 1e-5)

	oc = NewOrbitControl(WithPitch(30), WithDistance(2))
	pos = oc.Position()
	assert.InDelta(t, -1, pos[1], 1e-5)
	assert.Less(t, pos[2], float32(0))
}

func TestOrbitMagnifyMovesCloser(t *testing.T) {
	oc := NewOrbitControl(WithDistance(4), WithZoomSensitivity(1), WithDistanceBounds(1, 10))
	oc.Magnify(1)
	oc.Tick()
	assert.InDelta(t, 3, oc.Distance(), 1e-5)

	oc.Magnify(100)
	oc.Tick()
	assert.Equal(t, float32(1), oc.Distance())
}

func TestOrbitReset(t *testing.T) {
	oc := NewOrbitControl(WithYaw(15), WithDistance(3))
	oc.Drag(40, 10)
	oc.Tick()
	oc.SetTarget([3]float32{1, 2, 3})

	oc.Reset()
	assert.Equal(t, float32(15), oc.Yaw())
	assert.Equal(t, float32(3), oc.Distance())
	assert.Equal(t, [3]float32{}, oc.Target())
	assert.Equal(t, OrbitIdle, oc.State())
}

func TestOrbitStopKeepsPosition(t *testing.T) {
	oc := NewOrbitControl(WithSensitivity(1), WithFriction(0.1))
	oc.Drag(10, 0)
	oc.Tick()
	yaw := oc.Yaw()

	oc.Stop()
	assert.Equal(t, OrbitIdle, oc.State())
	assert.False(t, oc.Tick())
	assert.Equal(t, yaw, oc.Yaw())
	pan, zoom := oc.Velocity()
	assert.Equal(t, [2]float32{}, pan)
	assert.Zero(t, zoom)
}

func TestOrbitZeroFrictionStillSettles(t *testing.T) {
	oc := NewOrbitControl(WithSensitivity(1), WithFriction(0), WithEpsilon(0.01))
	oc.Drag(10, 0)
	oc.EndGesture()

	ticks := 0
	for oc.Tick() && ticks < 100000 {
		ticks++
	}
	assert.Equal(t, OrbitIdle, oc.State())
	assert.Less(t, ticks, 100000)
}

func TestOrbitAttachFollowsState(t *testing.T) {
	frames := &fakeScheduler{}
	oc := NewOrbitControl(WithSensitivity(1), WithFriction(0.5))
	oc.Attach(frames)
	require.Len(t, frames.handles, 1)
	h := frames.handles[0]
	assert.False(t, h.active)

	oc.Drag(1, 0)
	assert.True(t, h.active)

	for i := 0; i < 100 && h.active; i++ {
		frames.frame()
	}
	assert.False(t, h.active)
	assert.Equal(t, OrbitIdle, oc.State())

	oc.Detach()
	assert.True(t, h.removed)
}

func TestLensProjection(t *testing.T) {
	p := Perspective{FovY: 90, Near: 0.1, Far: 10}.Projection(2)
	assert.InDelta(t, 0.5, p[0], 1e-5)
	assert.InDelta(t, 1, p[5], 1e-5)
	assert.Equal(t, float32(-1), p[11])

	o := Orthographic{Scale: 2, Near: 0, Far: 10}.Projection(1)
	assert.InDelta(t, 0.5, o[0], 1e-6)
	assert.Equal(t, float32(1), o[15])
}

func TestFixedSnapshot(t *testing.T) {
	oc := NewOrbitControl(WithDistance(5))
	snap := Snapshot(oc)
	assert.Equal(t, oc.Position(), snap.Position())
	assert.Equal(t, oc.ViewMatrix(), snap.ViewMatrix())
	assert.True(t, snap.Equal(oc.Snapshot()))

	f := Fixed{Eye: [3]float32{0, 0, 3}}
	assert.Equal(t, [3]float32{0, 1, 0}, f.Up())
	assert.True(t, f.Equal(Fixed{Eye: [3]float32{0, 0, 3}, UpVector: [3]float32{0, 1, 0}, Lens: DefaultLens()}))
	assert.False(t, f.Equal(NewFixed([3]float32{0, 0, 4}, [3]float32{})))

	def := Snapshot(nil)
	assert.Equal(t, [3]float32{0, 0, 4}, def.Eye)
}
