package backdrop

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a fixed perspective camera looking at the scene origin.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
	Width    int
	Height   int
}

func NewCamera(width, height int) *Camera {
	c := &Camera{
		Position: mgl32.Vec3{0, 0, 30},
		FovY:     75,
		Near:     0.1,
		Far:      1000,
	}
	c.SetViewport(width, height)
	return c
}

// SetViewport updates the projection for a new output size. Non-positive
// sizes are ignored.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Width = width
	c.Height = height
}

func (c *Camera) Aspect() float32 {
	if c.Height == 0 {
		return 1
	}
	return float32(c.Width) / float32(c.Height)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect(), c.Near, c.Far)
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}
