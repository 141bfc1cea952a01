package backdrop

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSurfaceBusy is returned when Acquire targets a different surface while
// another session is still live.
var ErrSurfaceBusy = errors.New("another session is live on a different surface")

type guardState int

const (
	guardIdle guardState = iota
	guardHeld
)

// Manager is the only owner of live sessions and keeps at most one alive
// at a time.
type Manager struct {
	backend Backend
	sched   Scheduler
	logger  Logger

	// NewLoader builds the texture loader for a session. Defaults to an
	// AtlasLoader reading Config.Assets.
	NewLoader func(cfg *Config) TextureLoader

	mu    sync.Mutex
	guard guardState
	live  *Session
}

func NewManager(backend Backend, sched Scheduler, logger Logger) *Manager {
	m := &Manager{
		backend: backend,
		sched:   sched,
		logger:  loggerOr(logger),
	}
	m.NewLoader = func(cfg *Config) TextureLoader {
		return NewAtlasLoader(cfg.Assets, cfg.AssetTimeout, cfg.Logger)
	}
	return m
}

// Acquire returns the live session for surface, starting a new one when
// none exists. A call made while a session is still initialising returns
// that session instead of building a second renderer. Surfaces are compared
// with ==, so backends use pointer surfaces.
//
// The returned session is initialising; its Ready channel closes after the
// first frame. If initialisation fails synchronously the failed session is
// returned with its error.
func (m *Manager) Acquire(surface Surface, cfg Config) (*Session, error) {
	if surface == nil {
		return nil, errors.New("acquire: nil surface")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.mu.Lock()
	if m.guard == guardHeld {
		live := m.live
		m.mu.Unlock()
		if live.surface != surface {
			return nil, ErrSurfaceBusy
		}
		m.logger.Debugf("acquire while session %s is %s, reusing it", live.ID, live.state)
		return live, nil
	}
	s := newSession(m, surface, cfg, m.NewLoader(&cfg))
	m.guard = guardHeld
	m.live = s
	m.mu.Unlock()

	m.logger.Debugf("session %s acquired on %s backend", s.ID, m.backend.Name())
	s.start()
	if s.State() == StateFailed {
		return s, s.Err()
	}
	return s, nil
}

// Release disposes s and frees the slot for the next Acquire. Releasing a
// nil, stale or already released session does nothing.
func (m *Manager) Release(s *Session) {
	if s == nil || s.manager != m {
		return
	}
	s.dispose()
	m.sessionEnded(s)
}

// Active returns the live session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *Manager) sessionEnded(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == s {
		m.live = nil
		m.guard = guardIdle
	}
}
