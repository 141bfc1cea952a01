package backdrop

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestResizeCoordinator_Debounce(t *testing.T) {
	start := time.Unix(0, 0)
	loop := NewFrameLoop(start)
	cam := NewCamera(800, 600)
	r := &fakeRenderer{}
	rc := NewResizeCoordinator(loop, cam, r, NewNopLogger())

	now := start
	for i := 0; i < 10; i++ {
		rc.OnResize(1000+i*10, 700)
		now = now.Add(50 * time.Millisecond)
		loop.Pump(now)
	}
	assert.True(t, rc.Pending())
	assert.Empty(t, r.resizes)
	assert.Equal(t, 800, cam.Width)

	loop.Pump(now.Add(ResizeDebounce))
	assert.False(t, rc.Pending())
	assert.Equal(t, [][2]int{{1090, 700}}, r.resizes, "only the last size is applied")
	assert.Equal(t, 1090, cam.Width)
	assert.Equal(t, 700, cam.Height)
}

func TestResizeCoordinator_IgnoresEmptyAndStops(t *testing.T) {
	loop := NewFrameLoop(time.Unix(0, 0))
	r := &fakeRenderer{}
	rc := NewResizeCoordinator(loop, NewCamera(100, 100), r, nil)

	rc.OnResize(0, 500)
	assert.False(t, rc.Pending())

	rc.OnResize(300, 200)
	rc.Stop()
	loop.Pump(time.Unix(10, 0))
	assert.Empty(t, r.resizes)
	assert.False(t, rc.Pending())
}

func TestCamera(t *testing.T) {
	c := NewCamera(1600, 800)
	assert.InDelta(t, 2.0, c.Aspect(), 1e-6)

	c.SetViewport(0, 0)
	assert.Equal(t, 1600, c.Width, "empty viewport is ignored")

	// The origin projects to the centre of clip space.
	clip := c.ViewProjection().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5)
	assert.Greater(t, clip.W(), float32(0))
}
