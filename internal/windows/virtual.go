package windows

import (
	"sync"

	"orbit/internal/bus"
	"orbit/internal/logging"
)

// VirtualSurface is an in-memory Surface. It backs the headless runtime,
// where no native shell is attached: the orchestrator's decisions are
// fully tracked and queryable, just not drawn.
type VirtualSurface struct {
	mu          sync.Mutex
	name        bus.Window
	bounds      Bounds
	visible     bool
	destroyed   bool
	opacity     float64
	alwaysOnTop bool
	ignoreMouse bool
	resizable   bool
}

func (s *VirtualSurface) GetBounds() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

func (s *VirtualSurface) SetBounds(b Bounds) {
	s.mu.Lock()
	s.bounds = b
	s.mu.Unlock()
}

func (s *VirtualSurface) SetPosition(x, y int) {
	s.mu.Lock()
	s.bounds.X, s.bounds.Y = x, y
	s.mu.Unlock()
}

func (s *VirtualSurface) Show() {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
	logging.WindowsDebug("virtual '%s' shown", s.name)
}

func (s *VirtualSurface) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
	logging.WindowsDebug("virtual '%s' hidden", s.name)
}

func (s *VirtualSurface) SetOpacity(o float64) {
	s.mu.Lock()
	s.opacity = o
	s.mu.Unlock()
}

func (s *VirtualSurface) SetAlwaysOnTop(v bool) {
	s.mu.Lock()
	s.alwaysOnTop = v
	s.mu.Unlock()
}

func (s *VirtualSurface) SetIgnoreMouseEvents(v bool) {
	s.mu.Lock()
	s.ignoreMouse = v
	s.mu.Unlock()
}

func (s *VirtualSurface) SetResizable(v bool) {
	s.mu.Lock()
	s.resizable = v
	s.mu.Unlock()
}

func (s *VirtualSurface) IsResizable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizable
}

func (s *VirtualSurface) IsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible && !s.destroyed
}

func (s *VirtualSurface) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *VirtualSurface) MoveTop() {}

func (s *VirtualSurface) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.visible = false
	s.mu.Unlock()
}

// VirtualFactory creates VirtualSurfaces.
type VirtualFactory struct{}

func (VirtualFactory) Create(name bus.Window, initial Bounds) (Surface, error) {
	return &VirtualSurface{name: name, bounds: initial, opacity: 1}, nil
}

// StaticScreen reports a fixed work area.
type StaticScreen struct {
	Work Bounds
}

func (s StaticScreen) PrimaryWorkArea() Bounds {
	return s.Work
}
