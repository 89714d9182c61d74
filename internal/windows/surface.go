// Package windows owns the logical window registry and the visibility
// orchestrator. Logical state is the source of truth; the OS window behind
// a Surface is a mirror of it.
package windows

import (
	"time"

	"orbit/internal/bus"
)

// Bounds represents a screen rectangle.
type Bounds struct {
	X, Y, Width, Height int
}

// Surface is the capability the orchestrator needs from a concrete window.
// Implementations wrap native windowing primitives; the core never touches
// those directly.
type Surface interface {
	GetBounds() Bounds
	SetBounds(Bounds)
	SetPosition(x, y int)
	Show()
	Hide()
	SetOpacity(float64)
	SetAlwaysOnTop(bool)
	SetIgnoreMouseEvents(bool)
	SetResizable(bool)
	IsResizable() bool
	IsVisible() bool
	IsDestroyed() bool
	MoveTop()
	Destroy()
}

// Factory creates surfaces for logical windows on demand.
type Factory interface {
	Create(name bus.Window, initial Bounds) (Surface, error)
}

// Screen exposes display geometry. The primary display's work area anchors
// the fixed header position.
type Screen interface {
	PrimaryWorkArea() Bounds
}

// Animator applies bounds and opacity transitions. The orchestrator decides
// targets; how smoothly they are reached is the UI layer's business.
type Animator interface {
	// AnimateBounds moves a surface toward target bounds and invokes
	// onComplete when the transition settles. onComplete may be nil.
	AnimateBounds(s Surface, target Bounds, onComplete func())
	// AnimatePosition moves a surface toward a position without resizing.
	AnimatePosition(s Surface, x, y int)
	// Fade transitions opacity toward `to` and invokes onComplete when done.
	Fade(s Surface, to float64, onComplete func())
	// AnimateLayout moves several surfaces toward their target bounds.
	AnimateLayout(targets map[bus.Window]Bounds, resolve func(bus.Window) Surface)
}

// InstantAnimator applies every transition immediately. Used headless and
// in tests; a real compositor-backed animator lives outside the core.
type InstantAnimator struct{}

func (InstantAnimator) AnimateBounds(s Surface, target Bounds, onComplete func()) {
	s.SetBounds(target)
	if onComplete != nil {
		onComplete()
	}
}

func (InstantAnimator) AnimatePosition(s Surface, x, y int) {
	s.SetPosition(x, y)
}

func (InstantAnimator) Fade(s Surface, to float64, onComplete func()) {
	s.SetOpacity(to)
	if onComplete != nil {
		onComplete()
	}
}

func (InstantAnimator) AnimateLayout(targets map[bus.Window]Bounds, resolve func(bus.Window) Surface) {
	for name, b := range targets {
		if s := resolve(name); s != nil && !s.IsDestroyed() {
			s.SetBounds(b)
		}
	}
}

// Clock abstracts timer scheduling so the debounced hide and the periodic
// position enforcement are testable.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is the stoppable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock { return realClock{} }
