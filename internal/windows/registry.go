package windows

import (
	"sync"

	"orbit/internal/bus"
	"orbit/internal/logging"
)

// WindowState is the per-window lifecycle state the orchestrator tracks.
type WindowState int

const (
	StateHidden WindowState = iota
	StateAnimatingIn
	StateVisible
	StatePendingHide // settings only: hide requested, debounce timer running
	StateAnimatingOut
)

func (s WindowState) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateAnimatingIn:
		return "animating-in"
	case StateVisible:
		return "visible"
	case StatePendingHide:
		return "pending-hide"
	case StateAnimatingOut:
		return "animating-out"
	default:
		return "unknown"
	}
}

// Registry is the keyed collection of logical windows. Only the
// orchestrator mutates it; everything else addresses windows through
// intents on the bus.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[bus.Window]Surface
	states   map[bus.Window]WindowState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		surfaces: make(map[bus.Window]Surface),
		states:   make(map[bus.Window]WindowState),
	}
}

// Put registers a surface under a name.
func (r *Registry) Put(name bus.Window, s Surface) {
	r.mu.Lock()
	r.surfaces[name] = s
	r.states[name] = StateHidden
	r.mu.Unlock()
}

// Get returns the live surface for a name, or nil if absent or destroyed.
func (r *Registry) Get(name bus.Window) Surface {
	r.mu.RLock()
	s := r.surfaces[name]
	r.mu.RUnlock()
	if s == nil || s.IsDestroyed() {
		return nil
	}
	return s
}

// Has reports whether a live surface exists for the name.
func (r *Registry) Has(name bus.Window) bool {
	return r.Get(name) != nil
}

// Remove destroys and forgets the surface for a name.
func (r *Registry) Remove(name bus.Window) {
	r.mu.Lock()
	s := r.surfaces[name]
	delete(r.surfaces, name)
	delete(r.states, name)
	r.mu.Unlock()
	if s != nil && !s.IsDestroyed() {
		s.Destroy()
	}
}

// Range calls fn for every live surface.
func (r *Registry) Range(fn func(name bus.Window, s Surface)) {
	r.mu.RLock()
	snapshot := make(map[bus.Window]Surface, len(r.surfaces))
	for n, s := range r.surfaces {
		snapshot[n] = s
	}
	r.mu.RUnlock()
	for n, s := range snapshot {
		if s != nil && !s.IsDestroyed() {
			fn(n, s)
		}
	}
}

// VisibleSet returns the names of all currently visible windows.
func (r *Registry) VisibleSet() map[bus.Window]bool {
	visible := make(map[bus.Window]bool)
	r.Range(func(name bus.Window, s Surface) {
		if s.IsVisible() {
			visible[name] = true
		}
	})
	return visible
}

// State returns the tracked lifecycle state for a name.
func (r *Registry) State(name bus.Window) WindowState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[name]
}

func (r *Registry) setState(name bus.Window, st WindowState) {
	r.mu.Lock()
	prev := r.states[name]
	r.states[name] = st
	r.mu.Unlock()
	if prev != st {
		logging.WindowsDebug("window '%s': %s -> %s", name, prev, st)
	}
}
