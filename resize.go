package backdrop

import "time"

// ResizeDebounce is how long the viewport must stay unchanged before a
// resize is applied.
const ResizeDebounce = 200 * time.Millisecond

// ResizeCoordinator collapses bursts of resize notifications into a single
// camera and renderer update. It never touches particle data.
type ResizeCoordinator struct {
	sched    Scheduler
	camera   *Camera
	renderer Renderer
	logger   Logger

	pending       bool
	timer         TimerHandle
	width, height int
}

func NewResizeCoordinator(sched Scheduler, camera *Camera, renderer Renderer, logger Logger) *ResizeCoordinator {
	return &ResizeCoordinator{
		sched:    sched,
		camera:   camera,
		renderer: renderer,
		logger:   loggerOr(logger),
	}
}

func (r *ResizeCoordinator) OnResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	if r.pending {
		r.sched.CancelTimer(r.timer)
	}
	r.pending = true
	r.timer = r.sched.AfterFunc(ResizeDebounce, r.apply)
}

func (r *ResizeCoordinator) apply() {
	r.pending = false
	r.logger.Debugf("resize applied: %dx%d", r.width, r.height)
	r.camera.SetViewport(r.width, r.height)
	if r.renderer != nil {
		r.renderer.Resize(r.width, r.height)
	}
}

// Pending reports whether a resize is waiting for the debounce to expire.
func (r *ResizeCoordinator) Pending() bool { return r.pending }

// Stop drops a pending resize.
func (r *ResizeCoordinator) Stop() {
	if r.pending {
		r.sched.CancelTimer(r.timer)
		r.pending = false
	}
}
