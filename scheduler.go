package backdrop

import (
	"sort"
	"sync"
	"time"
)

type FrameCallback func(now time.Time)

type FrameHandle uint64

type TimerHandle uint64

// Scheduler is the host's frame primitive. Every callback it runs is
// invoked on the host's loop thread.
type Scheduler interface {
	// RequestFrame runs cb once, on the next frame.
	RequestFrame(cb FrameCallback) FrameHandle
	CancelFrame(h FrameHandle)
	// AfterFunc runs fn once the loop clock has advanced by d.
	AfterFunc(d time.Duration, fn func()) TimerHandle
	CancelTimer(h TimerHandle)
	// Post queues fn for the loop thread. It may be called from any goroutine.
	Post(fn func())
	Now() time.Time
}

type pendingFrame struct {
	handle FrameHandle
	cb     FrameCallback
}

type pendingTimer struct {
	handle   TimerHandle
	deadline time.Time
	fn       func()
}

// FrameLoop is a Scheduler driven by explicit Pump calls from the host
// loop. Nothing runs between pumps.
type FrameLoop struct {
	mu     sync.Mutex
	posted []func()
	wake   chan struct{}

	next   uint64
	now    time.Time
	frames []pendingFrame
	timers []pendingTimer
}

func NewFrameLoop(now time.Time) *FrameLoop {
	return &FrameLoop{
		now:  now,
		wake: make(chan struct{}, 1),
	}
}

func (l *FrameLoop) Now() time.Time { return l.now }

func (l *FrameLoop) RequestFrame(cb FrameCallback) FrameHandle {
	l.next++
	h := FrameHandle(l.next)
	l.frames = append(l.frames, pendingFrame{handle: h, cb: cb})
	return h
}

func (l *FrameLoop) CancelFrame(h FrameHandle) {
	for i, f := range l.frames {
		if f.handle == h {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

func (l *FrameLoop) AfterFunc(d time.Duration, fn func()) TimerHandle {
	l.next++
	h := TimerHandle(l.next)
	l.timers = append(l.timers, pendingTimer{handle: h, deadline: l.now.Add(d), fn: fn})
	return h
}

func (l *FrameLoop) CancelTimer(h TimerHandle) {
	for i, t := range l.timers {
		if t.handle == h {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}

func (l *FrameLoop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake is signalled whenever Post queues work.
func (l *FrameLoop) Wake() <-chan struct{} { return l.wake }

// HasFrames reports whether a frame callback is waiting.
func (l *FrameLoop) HasFrames() bool { return len(l.frames) > 0 }

// NextDeadline returns the earliest timer deadline.
func (l *FrameLoop) NextDeadline() (time.Time, bool) {
	if len(l.timers) == 0 {
		return time.Time{}, false
	}
	earliest := l.timers[0].deadline
	for _, t := range l.timers[1:] {
		if t.deadline.Before(earliest) {
			earliest = t.deadline
		}
	}
	return earliest, true
}

// Pump advances the loop clock to now and runs, in order, posted work, due
// timers and then the pending frame callbacks. Frames requested by the posted
// work or timers of this pump run in it too; frames requested from a frame
// callback wait for the next pump.
func (l *FrameLoop) Pump(now time.Time) {
	if now.After(l.now) {
		l.now = now
	}

	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	l.runTimers()

	frames := l.frames
	l.frames = nil
	for _, f := range frames {
		f.cb(l.now)
	}
}

func (l *FrameLoop) runTimers() {
	if len(l.timers) == 0 {
		return
	}
	var due []pendingTimer
	kept := l.timers[:0]
	for _, t := range l.timers {
		if !t.deadline.After(l.now) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	l.timers = kept
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}
