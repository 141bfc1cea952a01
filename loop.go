package backdrop

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
)

type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StatePaused
	StateDisposing
	StateDisposed
	// StateFailed is terminal: initialisation aborted and nothing is drawn.
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StateDisposing:
		return "disposing"
	case StateDisposed:
		return "disposed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MaxFrameDelta caps the simulated time step of a single frame.
const MaxFrameDelta = 100 * time.Millisecond

// TextureLoader resolves the session's textures. LoadAll runs off the loop
// thread and must return an entry for every key.
type TextureLoader interface {
	LoadAll(ctx context.Context, keys []TextureKey) TextureSet
}

// Session is one live assembly of camera, renderer, textures and particle
// groups. Sessions are created by Manager.Acquire; every method must be
// called from the scheduler's loop thread.
type Session struct {
	ID string

	manager *Manager
	surface Surface
	backend Backend
	sched   Scheduler
	loader  TextureLoader
	cfg     Config
	logger  Logger
	rng     *rand.Rand

	state    SessionState
	err      error
	tier     PerformanceTier
	settings TierSettings

	camera   *Camera
	renderer Renderer
	textures TextureSet
	groups   []*ParticleGroup
	osc      *Oscillators
	sim      *Simulator
	resize   *ResizeCoordinator
	profiler *Profiler
	stats    *StatsWriter
	statsOut io.Closer

	frame        FrameHandle
	framePending bool
	wait         TimerHandle
	waitPending  bool
	lastFrame    time.Time
	lastStep     time.Time
	resumed      bool
	hidden       bool
	frames       uint64
	cancelLoad   context.CancelFunc

	ready chan struct{}
	done  chan struct{}
}

func newSession(m *Manager, surface Surface, cfg Config, loader TextureLoader) *Session {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		manager: m,
		surface: surface,
		backend: m.backend,
		sched:   m.sched,
		loader:  loader,
		cfg:     cfg,
		logger:  WithScope(cfg.Logger, "session "+id[:8]),
		rng:     rand.New(rand.NewSource(seed)),
		state:   StateUninitialized,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Session) State() SessionState { return s.state }

// Err is the initialisation error of a failed session.
func (s *Session) Err() error { return s.err }

// Ready is closed once the first frame has been drawn.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done is closed when the session is disposed or has failed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Tier() PerformanceTier     { return s.tier }
func (s *Session) Settings() TierSettings    { return s.settings }
func (s *Session) Surface() Surface          { return s.surface }
func (s *Session) Camera() *Camera           { return s.camera }
func (s *Session) Renderer() Renderer        { return s.renderer }
func (s *Session) Textures() TextureSet      { return s.textures }
func (s *Session) Oscillators() *Oscillators { return s.osc }
func (s *Session) Profiler() *Profiler       { return s.profiler }
func (s *Session) Frames() uint64            { return s.frames }

// Groups returns the live particle groups in draw order.
func (s *Session) Groups() []*ParticleGroup {
	out := make([]*ParticleGroup, len(s.groups))
	copy(out, s.groups)
	return out
}

// start runs the synchronous half of initialisation and kicks off texture
// loading. The rest happens in finishInit once textures have settled.
func (s *Session) start() {
	s.state = StateInitializing
	if err := s.guarded(s.prepare); err != nil {
		s.fail(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLoad = cancel
	keys := TextureKeys()
	go func() {
		textures := s.loader.LoadAll(ctx, keys)
		s.sched.Post(func() { s.finishInit(textures) })
	}()
}

func (s *Session) prepare() error {
	tier, forced, err := ParseTier(s.cfg.Tier)
	if err != nil {
		return err
	}
	if !forced {
		info := s.backend.Probe(s.surface)
		tier = DetectTier(info)
		s.logger.Infof("device %q, %d cores, gpu %q: tier %s", info.Platform, info.LogicalCores, info.GPURenderer, tier)
	}

	renderer, err := s.backend.NewRenderer(s.surface, RendererOptions{
		Antialias: tier.Settings().Antialias,
		Tier:      tier,
		Logger:    s.logger,
	})
	if err != nil && tier != TierLow {
		s.logger.Warnf("renderer unavailable at tier %s, retrying at low: %v", tier, err)
		tier = TierLow
		renderer, err = s.backend.NewRenderer(s.surface, RendererOptions{Tier: tier, Logger: s.logger})
	}
	if err != nil {
		return fmt.Errorf("creating %s renderer: %w", s.backend.Name(), err)
	}
	s.renderer = renderer
	s.tier = tier
	s.settings = tier.Settings()

	w, h := s.surface.Size()
	s.camera = NewCamera(w, h)
	s.osc = NewOscillators(s.cfg.ColorTransition.Resolve())
	s.sim = NewSimulator(s.rng)
	s.profiler = NewProfiler(s.cfg.Stats.Window)

	if s.cfg.Stats.Path != "" {
		f, err := os.Create(s.cfg.Stats.Path)
		if err != nil {
			return fmt.Errorf("opening stats output: %w", err)
		}
		s.statsOut = f
		s.stats = NewStatsWriter(f)
	}
	return nil
}

// finishInit is the continuation of texture loading. It does nothing but
// free the textures when the session was torn down in the meantime.
func (s *Session) finishInit(textures TextureSet) {
	if s.state != StateInitializing {
		s.logger.Debugf("no longer mounted, dropping %d textures", len(textures))
		textures.Release()
		return
	}
	s.textures = textures

	err := s.guarded(func() error {
		for _, key := range TextureKeys() {
			if err := s.renderer.LoadTexture(textures.Get(key)); err != nil {
				return fmt.Errorf("uploading texture %s: %w", key, err)
			}
		}
		s.groups = BuildGroups(Presets(), s.settings, s.cfg.Modifiers(), textures, s.rng)
		for _, g := range s.groups {
			if err := s.renderer.AddGroup(g); err != nil {
				return fmt.Errorf("allocating group %s: %w", g.Name, err)
			}
		}
		if w, h := s.surface.Size(); w > 0 && h > 0 {
			s.camera.SetViewport(w, h)
			s.renderer.Resize(w, h)
		}
		return s.renderer.Attach()
	})
	if err != nil {
		s.fail(err)
		return
	}

	s.resize = NewResizeCoordinator(s.sched, s.camera, s.renderer, s.logger)
	count := 0
	for _, g := range s.groups {
		count += g.Count
	}
	s.profiler.SetCount("particles", count)
	s.logger.Infof("ready: tier %s, %d particles in %d groups", s.tier, count, len(s.groups))

	s.lastFrame = s.sched.Now()
	s.lastStep = s.lastFrame
	if s.hidden {
		s.state = StatePaused
		return
	}
	s.state = StateReady
	s.schedule()
}

// schedule requests the next frame callback. Until the frame interval has
// elapsed it only arms a timer, so the host can sleep until the frame is due.
func (s *Session) schedule() {
	due := s.lastFrame.Add(s.frameInterval())
	if wait := due.Sub(s.sched.Now()); wait > 0 {
		s.wait = s.sched.AfterFunc(wait, s.requestFrame)
		s.waitPending = true
		return
	}
	s.requestFrame()
}

func (s *Session) requestFrame() {
	s.waitPending = false
	s.frame = s.sched.RequestFrame(s.onFrame)
	s.framePending = true
}

func (s *Session) cancelFrame() {
	if s.waitPending {
		s.sched.CancelTimer(s.wait)
		s.waitPending = false
	}
	if s.framePending {
		s.sched.CancelFrame(s.frame)
		s.framePending = false
	}
}

// NextFrameDue is when the next frame may be drawn. ok is false unless the
// session is Ready.
func (s *Session) NextFrameDue() (time.Time, bool) {
	if s.state != StateReady {
		return time.Time{}, false
	}
	return s.lastFrame.Add(s.frameInterval()), true
}

func (s *Session) frameInterval() time.Duration {
	fps := s.settings.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}

func (s *Session) onFrame(now time.Time) {
	s.framePending = false
	if s.state != StateReady {
		return
	}
	interval := s.frameInterval()
	elapsed := now.Sub(s.lastFrame)
	if elapsed < interval {
		s.schedule()
		return
	}
	// Keep the part of elapsed past the last whole interval so a host
	// pumping slightly faster than the target rate still hits every slot.
	s.lastFrame = now.Add(-(elapsed % interval))

	// lastFrame is a throttle slot; the simulated step is the real time
	// since the previous step.
	elapsed = now.Sub(s.lastStep)
	s.lastStep = now
	dt := elapsed
	if s.resumed && dt > interval {
		dt = interval
	}
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}
	s.resumed = false

	s.step(dt.Seconds())
	s.recordFrame(elapsed)
	s.schedule()
}

// step runs one frame: oscillators, then every group, then a single draw.
func (s *Session) step(dt float64) {
	s.profiler.BeginScope("simulate")
	s.osc.Advance(dt, s.rng)
	for _, g := range s.groups {
		if s.settings.GroupSkipChance > 0 && s.rng.Float64() < s.settings.GroupSkipChance {
			continue
		}
		s.sim.Advance(g, dt, s.osc, s.settings.UpdateFraction)
	}
	s.profiler.EndScope("simulate")

	s.profiler.BeginScope("draw")
	err := s.renderer.Draw(&Frame{
		View:           s.camera.ViewMatrix(),
		Projection:     s.camera.ProjectionMatrix(),
		ViewProjection: s.camera.ViewProjection(),
		Width:          s.camera.Width,
		Height:         s.camera.Height,
		Groups:         s.groups,
	})
	s.profiler.EndScope("draw")
	if err != nil {
		s.logger.Warnf("draw failed: %v", err)
		return
	}

	s.frames++
	if s.frames == 1 {
		close(s.ready)
	}
}

func (s *Session) recordFrame(elapsed time.Duration) {
	if !s.profiler.RecordFrame(elapsed) {
		return
	}
	summary := s.profiler.Summary()
	s.profiler.ResetWindow()
	if s.logger.DebugEnabled() {
		s.logger.Debugf("%.1f fps (p95 %.2f ms)\n%s", summary.FPS, summary.P95MS, s.profiler.GetStatsString())
	}
	if err := s.stats.Write(summary); err != nil {
		s.logger.Warnf("%v", err)
	}
}

// SetVisible pauses drawing while the surface is hidden. Resuming restarts
// the frame clock so hidden time is not simulated.
func (s *Session) SetVisible(visible bool) {
	s.hidden = !visible
	switch {
	case !visible && s.state == StateReady:
		s.cancelFrame()
		s.state = StatePaused
		s.logger.Debugf("paused")
	case visible && s.state == StatePaused:
		s.state = StateReady
		s.lastFrame = s.sched.Now()
		s.lastStep = s.lastFrame
		s.resumed = true
		s.schedule()
		s.logger.Debugf("resumed")
	}
}

// Resize forwards a viewport change to the debounced coordinator.
func (s *Session) Resize(width, height int) {
	if s.resize == nil {
		return
	}
	if s.state == StateReady || s.state == StatePaused {
		s.resize.OnResize(width, height)
	}
}

// dispose tears everything down. It is idempotent and never panics.
func (s *Session) dispose() {
	switch s.state {
	case StateDisposing, StateDisposed:
		return
	case StateFailed:
		s.state = StateDisposed
		return
	}
	s.state = StateDisposing
	s.cancelFrame()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	if s.resize != nil {
		s.resize.Stop()
	}
	s.releaseResources()
	s.state = StateDisposed
	close(s.done)
	s.logger.Infof("disposed after %d frames", s.frames)
}

func (s *Session) fail(err error) {
	s.err = err
	s.logger.Errorf("failed to initialise: %v", err)
	s.cancelFrame()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.releaseResources()
	s.state = StateFailed
	close(s.done)
	s.manager.sessionEnded(s)
}

func (s *Session) releaseResources() {
	for _, g := range s.groups {
		g.Dispose()
	}
	s.groups = nil
	if s.renderer != nil {
		s.safely("renderer release", s.renderer.Release)
		s.renderer = nil
	}
	if s.textures != nil {
		s.textures.Release()
		s.textures = nil
	}
	if s.statsOut != nil {
		if err := s.statsOut.Close(); err != nil {
			s.logger.Warnf("closing stats output: %v", err)
		}
		s.statsOut = nil
		s.stats = nil
	}
}

func (s *Session) guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (s *Session) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("%s: %v", what, r)
		}
	}()
	fn()
}
