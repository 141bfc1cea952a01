// Package term renders particle groups as coloured glyphs on a terminal.
package term

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/backdrop"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// CellAspect is the height of a terminal cell in units of its width.
const CellAspect = 2

// minIntensity hides cells that received almost no light.
const minIntensity = 0.04

// ScreenSurface adapts a tcell screen. Size is reported in half-rows so the
// camera sees square units.
type ScreenSurface struct {
	Screen tcell.Screen
}

func (s *ScreenSurface) Size() (int, int) {
	if s == nil || s.Screen == nil {
		return 0, 0
	}
	cols, rows := s.Screen.Size()
	return cols, rows * CellAspect
}

// Backend renders to terminals. It never reports graphics hardware, so
// sessions on it detect the low tier unless one is forced.
type Backend struct{}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "term" }

func (b *Backend) Probe(surface backdrop.Surface) backdrop.DeviceInfo {
	return backdrop.ProbeHost("", false)
}

func (b *Backend) NewRenderer(surface backdrop.Surface, opts backdrop.RendererOptions) (backdrop.Renderer, error) {
	ss, ok := surface.(*ScreenSurface)
	if !ok || ss.Screen == nil {
		return nil, fmt.Errorf("term backend: unsupported surface %T", surface)
	}
	logger := opts.Logger
	if logger == nil {
		logger = backdrop.NewNopLogger()
	}
	return &Renderer{
		screen: ss.Screen,
		logger: logger,
		glyphs: make(map[backdrop.TextureKey]rune),
	}, nil
}

// Glyph is the character drawn for particles using a texture.
func Glyph(key backdrop.TextureKey) rune {
	switch key {
	case backdrop.TextureGlow:
		return '•'
	case backdrop.TextureStar:
		return '*'
	case backdrop.TextureSmoke:
		return '░'
	case backdrop.TextureSparkle:
		return '+'
	}
	return '·'
}

type cell struct {
	r, g, b   float64
	intensity float64
	glyph     rune
	peak      float64
}

type Renderer struct {
	screen tcell.Screen
	logger backdrop.Logger

	glyphs map[backdrop.TextureKey]rune
	groups []*backdrop.ParticleGroup
	cells  []cell

	attached bool
	released bool
}

func (r *Renderer) LoadTexture(tex *backdrop.Texture) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	if tex == nil {
		return fmt.Errorf("term renderer: nil texture")
	}
	r.glyphs[tex.Key] = Glyph(tex.Key)
	return nil
}

func (r *Renderer) AddGroup(g *backdrop.ParticleGroup) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	r.groups = append(r.groups, g)
	return nil
}

func (r *Renderer) Attach() error {
	if r.released {
		return backdrop.ErrDisposed
	}
	r.screen.HideCursor()
	r.screen.Clear()
	r.screen.Show()
	r.attached = true
	return nil
}

// Draw accumulates every particle into the cell it projects to and paints
// each lit cell with the glyph of its brightest contributor.
func (r *Renderer) Draw(frame *backdrop.Frame) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	if !r.attached {
		return fmt.Errorf("term renderer: not attached")
	}
	cols, rows := r.screen.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	if len(r.cells) != cols*rows {
		r.cells = make([]cell, cols*rows)
	} else {
		clear(r.cells)
	}

	for _, g := range r.groups {
		if g.Disposed() || g.Count == 0 {
			continue
		}
		glyph, ok := r.glyphs[texKey(g)]
		if !ok {
			glyph = Glyph(texKey(g))
		}
		mvp := frame.ViewProjection.Mul4(g.Model())
		for i := 0; i < g.Count; i++ {
			col, row, ok := project(mvp, g.Position(i), cols, rows)
			if !ok {
				continue
			}
			weight := float64(g.Opacity[i]) * g.MaterialOpacity
			c := &r.cells[row*cols+col]
			c.r += float64(g.Colors[3*i]) * weight
			c.g += float64(g.Colors[3*i+1]) * weight
			c.b += float64(g.Colors[3*i+2]) * weight
			c.intensity += weight
			if weight > c.peak {
				c.peak = weight
				c.glyph = glyph
			}
		}
		g.PositionsDirty = false
		g.ColorsDirty = false
	}

	r.screen.Clear()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := r.cells[row*cols+col]
			if c.intensity < minIntensity {
				continue
			}
			r.screen.SetContent(col, row, c.glyph, nil, tcell.StyleDefault.Foreground(cellColor(c)))
		}
	}
	r.screen.Show()
	return nil
}

func texKey(g *backdrop.ParticleGroup) backdrop.TextureKey {
	if g.Texture == nil {
		return ""
	}
	return g.Texture.Key
}

// project maps a model-space point to a screen cell.
func project(mvp mgl32.Mat4, p mgl32.Vec3, cols, rows int) (int, int, bool) {
	clip := mvp.Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, false
	}
	x := clip.X() / clip.W()
	y := clip.Y() / clip.W()
	if x < -1 || x >= 1 || y <= -1 || y > 1 {
		return 0, 0, false
	}
	col := int((x + 1) / 2 * float32(cols))
	row := int((1 - y) / 2 * float32(rows))
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return 0, 0, false
	}
	return col, row, true
}

// cellColor averages the contributions and brightens by total intensity.
func cellColor(c cell) tcell.Color {
	avg := colorful.Color{R: c.r / c.intensity, G: c.g / c.intensity, B: c.b / c.intensity}
	gain := math.Min(1, 0.35+c.intensity)
	lit := colorful.Color{R: avg.R * gain, G: avg.G * gain, B: avg.B * gain}.Clamped()
	r, g, b := lit.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// Resize only resyncs the screen. The cell grid is re-read every frame.
func (r *Renderer) Resize(width, height int) {
	if r.released {
		return
	}
	r.logger.Debugf("terminal resized to %dx%d", width, height/CellAspect)
	r.screen.Sync()
}

func (r *Renderer) Release() {
	if r.released {
		return
	}
	r.released = true
	r.attached = false
	r.groups = nil
	r.cells = nil
	r.screen.Clear()
	r.screen.Show()
}
