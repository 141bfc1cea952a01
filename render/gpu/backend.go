package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/backdrop"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowSurface is a GLFW window used as a drawing target.
type WindowSurface struct {
	Window *glfw.Window
}

func (s *WindowSurface) Size() (int, int) {
	if s == nil || s.Window == nil {
		return 0, 0
	}
	return s.Window.GetFramebufferSize()
}

// Backend draws particle groups with WebGPU into GLFW windows.
type Backend struct {
	PowerPreference wgpu.PowerPreference
}

func NewBackend() *Backend {
	return &Backend{PowerPreference: wgpu.PowerPreferenceHighPerformance}
}

func (b *Backend) Name() string { return "gpu" }

// Probe opens a throwaway adapter for the window to read the device name.
// A window without a usable adapter reports no graphics.
func (b *Backend) Probe(surface backdrop.Surface) backdrop.DeviceInfo {
	ws, ok := surface.(*WindowSurface)
	if !ok || ws.Window == nil {
		return backdrop.ProbeHost("", false)
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	wsurface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(ws.Window))
	defer wsurface.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: wsurface,
		PowerPreference:   b.PowerPreference,
	})
	if err != nil {
		return backdrop.ProbeHost("", false)
	}
	defer adapter.Release()

	info := adapter.GetInfo()
	return backdrop.ProbeHost(info.Name, true)
}

func (b *Backend) NewRenderer(surface backdrop.Surface, opts backdrop.RendererOptions) (backdrop.Renderer, error) {
	ws, ok := surface.(*WindowSurface)
	if !ok || ws.Window == nil {
		return nil, fmt.Errorf("gpu backend: unsupported surface %T", surface)
	}
	return newRenderer(ws, b.PowerPreference, opts)
}

// WindowOptions control the window created by OpenWindow.
type WindowOptions struct {
	Width       int
	Height      int
	Title       string
	Transparent bool
}

// OpenWindow initialises GLFW and creates a window without a client API.
// The caller must have locked the OS thread and must call glfw.Terminate.
func OpenWindow(opts WindowOptions) (*WindowSurface, error) {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Title == "" {
		opts.Title = "backdrop"
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialising glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	if opts.Transparent {
		glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	}

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}
	return &WindowSurface{Window: win}, nil
}

// Watch forwards window events that matter to a session: framebuffer
// resizes and iconify/restore as visibility.
func Watch(ws *WindowSurface, s *backdrop.Session) {
	ws.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		s.Resize(width, height)
	})
	ws.Window.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		s.SetVisible(!iconified)
	})
}
