package windows

import (
	"sync"

	"orbit/internal/bus"
)

// fakeSurface records every mutation so tests can assert on ordering.
type fakeSurface struct {
	mu            sync.Mutex
	bounds        Bounds
	boundsHistory []Bounds
	visible       bool
	destroyed     bool
	opacity       float64
	alwaysOnTop   bool
	ignoreMouse   bool
	resizable     bool
	showCalls     int
	moveTopCalls  int
	resizableLog  []bool
}

func newFakeSurface(b Bounds) *fakeSurface {
	return &fakeSurface{bounds: b, opacity: 1}
}

func (f *fakeSurface) GetBounds() Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bounds
}

func (f *fakeSurface) SetBounds(b Bounds) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = b
	f.boundsHistory = append(f.boundsHistory, b)
}

func (f *fakeSurface) SetPosition(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds.X, f.bounds.Y = x, y
	f.boundsHistory = append(f.boundsHistory, f.bounds)
}

func (f *fakeSurface) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	f.showCalls++
}

func (f *fakeSurface) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
}

func (f *fakeSurface) SetOpacity(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opacity = v
}

func (f *fakeSurface) SetAlwaysOnTop(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alwaysOnTop = v
}

func (f *fakeSurface) SetIgnoreMouseEvents(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoreMouse = v
}

func (f *fakeSurface) SetResizable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizable = v
	f.resizableLog = append(f.resizableLog, v)
}

func (f *fakeSurface) IsResizable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resizable
}

func (f *fakeSurface) IsVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible && !f.destroyed
}

func (f *fakeSurface) IsDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeSurface) MoveTop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveTopCalls++
}

func (f *fakeSurface) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	f.visible = false
}

func (f *fakeSurface) snapshot() fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeSurface{
		bounds:       f.bounds,
		visible:      f.visible,
		destroyed:    f.destroyed,
		opacity:      f.opacity,
		alwaysOnTop:  f.alwaysOnTop,
		ignoreMouse:  f.ignoreMouse,
		resizable:    f.resizable,
		showCalls:    f.showCalls,
		moveTopCalls: f.moveTopCalls,
	}
}

func (f *fakeSurface) history() []Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Bounds, len(f.boundsHistory))
	copy(out, f.boundsHistory)
	return out
}

type fakeScreen struct {
	work Bounds
}

func (f fakeScreen) PrimaryWorkArea() Bounds { return f.work }

type fakeFactory struct {
	mu      sync.Mutex
	created map[bus.Window]*fakeSurface
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{created: make(map[bus.Window]*fakeSurface)}
}

func (f *fakeFactory) Create(name bus.Window, initial Bounds) (Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeSurface(initial)
	f.created[name] = s
	return s, nil
}

func (f *fakeFactory) get(name bus.Window) *fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[name]
}
