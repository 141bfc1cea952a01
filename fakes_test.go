package backdrop

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeSurface struct {
	w, h int
}

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }

type fakeBackend struct {
	info      DeviceInfo
	failTiers map[PerformanceTier]bool
	attachErr error
	renderers []*fakeRenderer
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		info: DeviceInfo{Platform: "linux/amd64", LogicalCores: 16, GPURenderer: "NVIDIA GeForce RTX 4070", HasGraphics: true},
	}
}

func (b *fakeBackend) Name() string                     { return "fake" }
func (b *fakeBackend) Probe(surface Surface) DeviceInfo { return b.info }

func (b *fakeBackend) NewRenderer(surface Surface, opts RendererOptions) (Renderer, error) {
	if b.failTiers[opts.Tier] {
		return nil, ErrNoGraphics
	}
	r := &fakeRenderer{opts: opts, attachErr: b.attachErr}
	b.renderers = append(b.renderers, r)
	return r, nil
}

type fakeRenderer struct {
	opts      RendererOptions
	attachErr error

	textures []*Texture
	groups   []*ParticleGroup
	attached bool
	released int
	draws    int
	resizes  [][2]int
	last     *Frame
}

func (r *fakeRenderer) LoadTexture(tex *Texture) error {
	if tex == nil {
		return errors.New("nil texture")
	}
	r.textures = append(r.textures, tex)
	return nil
}

func (r *fakeRenderer) AddGroup(g *ParticleGroup) error {
	r.groups = append(r.groups, g)
	return nil
}

func (r *fakeRenderer) Attach() error {
	if r.attachErr != nil {
		return r.attachErr
	}
	r.attached = true
	return nil
}

func (r *fakeRenderer) Draw(frame *Frame) error {
	r.draws++
	r.last = frame
	for _, g := range frame.Groups {
		g.PositionsDirty = false
		g.ColorsDirty = false
	}
	return nil
}

func (r *fakeRenderer) Resize(width, height int) {
	r.resizes = append(r.resizes, [2]int{width, height})
}

func (r *fakeRenderer) Release() {
	r.released++
	r.attached = false
}

// gatedLoader returns tiny textures once gate is closed.
type gatedLoader struct {
	gate  chan struct{}
	calls int
}

func (l *gatedLoader) LoadAll(ctx context.Context, keys []TextureKey) TextureSet {
	if l.gate != nil {
		<-l.gate
	}
	set := make(TextureSet, len(keys))
	for _, k := range keys {
		set[k] = &Texture{ID: makeTextureID(), Key: k, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	}
	return set
}

type harness struct {
	t       *testing.T
	loop    *FrameLoop
	backend *fakeBackend
	manager *Manager
	loader  *gatedLoader
	surface *fakeSurface
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &harness{
		t:       t,
		loop:    NewFrameLoop(start),
		backend: newFakeBackend(),
		loader:  &gatedLoader{},
		surface: &fakeSurface{w: 800, h: 600},
		now:     start,
	}
	h.manager = NewManager(h.backend, h.loop, NewNopLogger())
	h.manager.NewLoader = func(cfg *Config) TextureLoader {
		h.loader.calls++
		return h.loader
	}
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Density = DensityLow
	return cfg
}

// awaitPost blocks until the texture continuation has been posted, then
// pumps the loop once.
func (h *harness) awaitPost() {
	h.t.Helper()
	select {
	case <-h.loop.Wake():
	case <-time.After(2 * time.Second):
		h.t.Fatal("texture load continuation was never posted")
	}
	h.loop.Pump(h.now)
}

// advance moves the clock by d and pumps.
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
	h.loop.Pump(h.now)
}

// acquireReady acquires a session and drives it to StateReady.
func (h *harness) acquireReady(cfg Config) *Session {
	h.t.Helper()
	s, err := h.manager.Acquire(h.surface, cfg)
	if err != nil {
		h.t.Fatalf("acquire: %v", err)
	}
	h.awaitPost()
	if s.State() != StateReady {
		h.t.Fatalf("expected ready session, got %s (err %v)", s.State(), s.Err())
	}
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func countLines(s string) int {
	return strings.Count(s, "\n")
}
