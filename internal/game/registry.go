package game

import (
	"sync"
	"time"
)

type graceKey struct {
	lobbyCode string
	playerID  string
}

// Registry is the process-wide map of active session engines keyed by lobby
// code, plus the pending disconnect grace timers keyed by (lobby, player).
// It is the only process-wide mutable component and is constructed once at
// program start.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	grace   map[graceKey]*time.Timer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		grace:   make(map[graceKey]*time.Timer),
	}
}

// Get returns the engine for a lobby, if one is active.
func (r *Registry) Get(lobbyCode string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[lobbyCode]
	return e, ok
}

// Create registers an engine for a lobby. Fails with ALREADY_ACTIVE when a
// session already exists for that code.
func (r *Registry) Create(lobbyCode string, e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[lobbyCode]; exists {
		return ErrAlreadyActive
	}
	r.engines[lobbyCode] = e
	return nil
}

// Destroy removes a lobby's engine and cancels all of its pending grace
// timers in a single step.
func (r *Registry) Destroy(lobbyCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.engines, lobbyCode)
	for key, timer := range r.grace {
		if key.lobbyCode == lobbyCode {
			timer.Stop()
			delete(r.grace, key)
		}
	}
}

// ScheduleGrace arms a disconnect grace timer. An existing timer for the
// same (lobby, player) is replaced. fn runs on its own goroutine after d.
func (r *Registry) ScheduleGrace(lobbyCode, playerID string, d time.Duration, fn func()) {
	key := graceKey{lobbyCode: lobbyCode, playerID: playerID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.grace[key]; exists {
		old.Stop()
	}
	r.grace[key] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.grace, key)
		r.mu.Unlock()
		fn()
	})
}

// CancelGrace stops a pending grace timer. Reports whether one was armed.
func (r *Registry) CancelGrace(lobbyCode, playerID string) bool {
	key := graceKey{lobbyCode: lobbyCode, playerID: playerID}

	r.mu.Lock()
	defer r.mu.Unlock()

	timer, exists := r.grace[key]
	if !exists {
		return false
	}
	timer.Stop()
	delete(r.grace, key)
	return true
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// CleanupAll shuts down every engine and clears all timers. Used on process
// shutdown and in tests.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.engines = make(map[string]*Engine)
	for key, timer := range r.grace {
		timer.Stop()
		delete(r.grace, key)
	}
	r.mu.Unlock()

	for _, e := range engines {
		e.Shutdown()
	}
}
