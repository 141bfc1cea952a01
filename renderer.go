package backdrop

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNoGraphics is returned by backends that cannot obtain a device.
	ErrNoGraphics = errors.New("no usable graphics context")
	ErrDisposed   = errors.New("session disposed")
)

// Surface is the drawable target a host hands to Acquire. Backends define
// the concrete types; the engine only asks for its size.
type Surface interface {
	Size() (width, height int)
}

// RendererOptions are derived from the tier at session start.
type RendererOptions struct {
	Antialias bool
	Tier      PerformanceTier
	Logger    Logger
}

// Backend creates renderers for a kind of surface.
type Backend interface {
	Name() string
	// Probe describes the graphics device behind the surface.
	Probe(surface Surface) DeviceInfo
	NewRenderer(surface Surface, opts RendererOptions) (Renderer, error)
}

// Frame is everything a renderer needs to draw one frame.
type Frame struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4
	Width, Height  int
	Groups         []*ParticleGroup
}

// Renderer owns the device-side copies of textures and particle buffers.
// Release must be safe to call more than once and must not fail.
type Renderer interface {
	LoadTexture(tex *Texture) error
	AddGroup(g *ParticleGroup) error
	// Attach makes output visible on the surface.
	Attach() error
	Draw(frame *Frame) error
	Resize(width, height int)
	Release()
}
