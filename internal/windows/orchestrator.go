package windows

import (
	"context"
	"sync"
	"time"

	"orbit/internal/bus"
	"orbit/internal/logging"
)

// Default feature window sizes, used when a window is created.
var defaultSizes = map[bus.Window]Bounds{
	bus.WindowListen:           {Width: 400, Height: 400},
	bus.WindowAsk:              {Width: 600, Height: 420},
	bus.WindowSettings:         {Width: 240, Height: 400},
	bus.WindowShortcutSettings: {Width: 353, Height: 720},
}

// Options configures the orchestrator.
type Options struct {
	HeaderWidth       int
	HeaderHeight      int
	HeaderMarginTop   int
	SettingsHideDelay time.Duration
	EnforceInterval   time.Duration
	AnimOffsetX       int
	AnimOffsetY       int
}

// DefaultOptions mirrors the stock overlay geometry.
func DefaultOptions() Options {
	return Options{
		HeaderWidth:       500,
		HeaderHeight:      47,
		HeaderMarginTop:   10,
		SettingsHideDelay: 200 * time.Millisecond,
		EnforceInterval:   5 * time.Second,
		AnimOffsetX:       50,
		AnimOffsetY:       20,
	}
}

// Orchestrator is the single authority translating visibility intents into
// bounds, animation and ordering actions. It owns the registry; everything
// else reaches it through the bus.
type Orchestrator struct {
	registry *Registry
	screen   Screen
	anim     Animator
	factory  Factory
	clock    Clock
	opts     Options

	settingsHide *Debouncer

	mu          sync.Mutex
	lastVisible map[bus.Window]bool // recorded set for toggle-all restore
	headerState string

	policies map[bus.Window]visibilityPolicy

	// OnSettled, when set, is invoked after a window reaches its requested
	// visibility (post-animation, post-debounce).
	OnSettled func(name bus.Window, visible bool)
}

// New constructs the orchestrator and creates the long-lived header window
// at its canonical position.
func New(registry *Registry, screen Screen, anim Animator, factory Factory, clock Clock, opts Options) (*Orchestrator, error) {
	if clock == nil {
		clock = NewRealClock()
	}
	o := &Orchestrator{
		registry:     registry,
		screen:       screen,
		anim:         anim,
		factory:      factory,
		clock:        clock,
		opts:         opts,
		settingsHide: NewDebouncer(opts.SettingsHideDelay, clock),
		lastVisible:  map[bus.Window]bool{bus.WindowHeader: true},
		headerState:  "apikey",
	}
	o.policies = map[bus.Window]visibilityPolicy{
		bus.WindowSettings:         settingsPolicy{},
		bus.WindowShortcutSettings: shortcutSettingsPolicy{},
		bus.WindowAsk:              askPolicy{},
		bus.WindowListen:           listenPolicy{},
	}

	work := screen.PrimaryWorkArea()
	home := HeaderHome(work, opts.HeaderWidth, opts.HeaderHeight, opts.HeaderMarginTop)
	header, err := factory.Create(bus.WindowHeader, home)
	if err != nil {
		return nil, err
	}
	registry.Put(bus.WindowHeader, header)
	header.SetAlwaysOnTop(true)
	header.Show()
	registry.setState(bus.WindowHeader, StateVisible)
	logging.Windows("header created at (%d, %d)", home.X, home.Y)

	return o, nil
}

// Registry exposes the window registry for read-only queries.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Run services bus intents and drives the periodic fixed-header correction
// loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, b *bus.Bus) {
	events := b.Subscribe()
	defer b.Unsubscribe(events)

	ticker := o.clock.NewTicker(o.opts.EnforceInterval)
	defer ticker.Stop()

	o.EnforceFixedHeaderPosition()

	for {
		select {
		case <-ctx.Done():
			o.settingsHide.Cancel()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.dispatch(ev)
		case <-ticker.C():
			o.EnforceFixedHeaderPosition()
		}
	}
}

func (o *Orchestrator) dispatch(ev bus.Event) {
	switch e := ev.(type) {
	case bus.VisibilityIntent:
		o.RequestVisibility(e.Target, e.Visible)
	case bus.ResizeHeader:
		o.ResizeHeader(e.Width, e.Height)
	case bus.AdjustWindowHeight:
		o.AdjustWindowHeight(e.Target, e.Height)
	case bus.ToggleAllWindows:
		o.ToggleAll(e.Target)
	case bus.HeaderAnimationFinished:
		o.handleHeaderAnimationFinished(e.State)
	case bus.DisplayChanged:
		o.EnforceFixedHeaderPosition()
		o.updateFeatureLayouts()
	case bus.HeaderStateChanged:
		o.HandleHeaderStateChanged(e.State)
	}
}

// RequestVisibility applies a visibility intent for a named window.
// Unknown or destroyed windows are a logged no-op; nothing propagates to
// the caller.
func (o *Orchestrator) RequestVisibility(name bus.Window, shouldBeVisible bool) {
	logging.WindowsDebug("request: set '%s' visibility to %v", name, shouldBeVisible)

	win := o.registry.Get(name)
	if win == nil {
		logging.WindowsWarn("window '%s' not found or destroyed", name)
		return
	}

	// The settings panel supports re-entrant show to reset a pending hide
	// timer; every other window drops no-op intents to avoid redundant
	// animation.
	if name != bus.WindowSettings && win.IsVisible() == shouldBeVisible {
		logging.WindowsDebug("window '%s' already in desired state", name)
		return
	}

	policy, ok := o.policies[name]
	if !ok {
		policy = defaultPolicy{}
	}
	policy.apply(o, name, win, shouldBeVisible)
}

// ToggleAll hides the whole overlay, recording which windows were visible,
// or restores exactly that recorded set. A target that matches the
// header's current visibility is dropped.
func (o *Orchestrator) ToggleAll(target *bool) {
	header := o.registry.Get(bus.WindowHeader)
	if header == nil {
		return
	}

	if target != nil && header.IsVisible() == *target {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if header.IsVisible() {
		o.lastVisible = map[bus.Window]bool{bus.WindowHeader: true}
		o.registry.Range(func(name bus.Window, s Surface) {
			if s.IsVisible() {
				o.lastVisible[name] = true
			}
		})

		for name := range o.lastVisible {
			if name == bus.WindowHeader {
				continue
			}
			if s := o.registry.Get(name); s != nil {
				s.Hide()
				o.registry.setState(name, StateHidden)
			}
		}
		header.Hide()
		o.registry.setState(bus.WindowHeader, StateHidden)
		return
	}

	for name := range o.lastVisible {
		if s := o.registry.Get(name); s != nil {
			s.Show()
			o.registry.setState(name, StateVisible)
		}
	}
}

// EnforceFixedHeaderPosition recomputes the canonical header position and
// repositions only on drift. Invoked at startup, after display changes,
// after resizes, and periodically.
func (o *Orchestrator) EnforceFixedHeaderPosition() {
	header := o.registry.Get(bus.WindowHeader)
	if header == nil {
		return
	}

	work := o.screen.PrimaryWorkArea()
	cur := header.GetBounds()
	home := HeaderHome(work, cur.Width, cur.Height, o.opts.HeaderMarginTop)

	if cur.X != home.X || cur.Y != home.Y {
		logging.Windows("enforcing fixed header position: (%d, %d)", home.X, home.Y)
		header.SetPosition(home.X, home.Y)
	}
}

// ResizeHeader animates the header to new dimensions, temporarily making
// it resizable, then re-enforces the fixed position and re-lays-out
// dependent windows.
func (o *Orchestrator) ResizeHeader(width, height int) {
	header := o.registry.Get(bus.WindowHeader)
	if header == nil {
		return
	}

	target := HeaderResize(header.GetBounds(), width, height)

	wasResizable := header.IsResizable()
	if !wasResizable {
		header.SetResizable(true)
	}

	o.anim.AnimateBounds(header, target, func() {
		if !wasResizable {
			header.SetResizable(false)
		}
		o.EnforceFixedHeaderPosition()
		o.updateFeatureLayouts()
	})
}

// AdjustWindowHeight animates a named window to a new height.
func (o *Orchestrator) AdjustWindowHeight(name bus.Window, targetHeight int) {
	win := o.registry.Get(name)
	if win == nil {
		return
	}

	target := HeightAdjustment(win.GetBounds(), targetHeight)

	wasResizable := win.IsResizable()
	if !wasResizable {
		win.SetResizable(true)
	}

	o.anim.AnimateBounds(win, target, func() {
		if !wasResizable {
			win.SetResizable(false)
		}
		o.updateFeatureLayouts()
	})
}

// HandleHeaderStateChanged creates the feature windows when the header
// enters main mode and destroys them when it leaves.
func (o *Orchestrator) HandleHeaderStateChanged(state string) {
	o.mu.Lock()
	o.headerState = state
	o.mu.Unlock()
	logging.Windows("header state changed to: %s", state)

	if state == "main" {
		o.createFeatureWindows()
		return
	}
	o.destroyFeatureWindows()
}

func (o *Orchestrator) createFeatureWindows() {
	for _, name := range bus.FeatureWindows {
		if o.registry.Has(name) {
			continue
		}
		size := defaultSizes[name]
		win, err := o.factory.Create(name, size)
		if err != nil {
			logging.WindowsWarn("could not create window '%s': %v", name, err)
			continue
		}
		o.registry.Put(name, win)
	}
}

func (o *Orchestrator) destroyFeatureWindows() {
	o.settingsHide.Cancel()
	for _, name := range bus.FeatureWindows {
		o.registry.Remove(name)
	}
}

func (o *Orchestrator) handleHeaderAnimationFinished(state string) {
	header := o.registry.Get(bus.WindowHeader)
	if header == nil {
		return
	}
	switch state {
	case "hidden":
		header.Hide()
		o.registry.setState(bus.WindowHeader, StateHidden)
	case "visible":
		o.registry.setState(bus.WindowHeader, StateVisible)
		o.updateFeatureLayouts()
	}
}

// updateFeatureLayouts re-lays-out the currently visible feature windows
// into their mutually consistent arrangement.
func (o *Orchestrator) updateFeatureLayouts() {
	visible := make(map[bus.Window]bool)
	for _, name := range []bus.Window{bus.WindowListen, bus.WindowAsk} {
		if s := o.registry.Get(name); s != nil && s.IsVisible() {
			visible[name] = true
		}
	}
	if len(visible) == 0 {
		return
	}

	layout := o.featureLayout(visible)
	o.anim.AnimateLayout(layout, o.registry.Get)
}

func (o *Orchestrator) featureLayout(visible map[bus.Window]bool) map[bus.Window]Bounds {
	header := o.registry.Get(bus.WindowHeader)
	if header == nil {
		return nil
	}
	return FeatureLayout(visible, header.GetBounds(), o.screen.PrimaryWorkArea(), o.sizeOf)
}

func (o *Orchestrator) sizeOf(name bus.Window) Bounds {
	if s := o.registry.Get(name); s != nil {
		return s.GetBounds()
	}
	return defaultSizes[name]
}

func (o *Orchestrator) settled(name bus.Window, visible bool) {
	if o.OnSettled != nil {
		o.OnSettled(name, visible)
	}
}

// ---------------------------------------------------------------------------
// Per-window visibility policies
// ---------------------------------------------------------------------------

type visibilityPolicy interface {
	apply(o *Orchestrator, name bus.Window, win Surface, visible bool)
}

// settingsPolicy: show cancels a pending hide and pins the panel above its
// peers; hide is debounced so mouse flicker between the trigger button and
// the panel never collapses it.
type settingsPolicy struct{}

func (settingsPolicy) apply(o *Orchestrator, name bus.Window, win Surface, visible bool) {
	if visible {
		o.settingsHide.Cancel()

		header := o.registry.Get(bus.WindowHeader)
		if header == nil {
			logging.WindowsWarn("could not calculate settings position: no header")
			return
		}
		pos := SettingsPosition(header.GetBounds(), o.screen.PrimaryWorkArea(), win.GetBounds())
		win.SetBounds(pos)
		win.Show()
		win.MoveTop()
		win.SetAlwaysOnTop(true)
		o.registry.setState(name, StateVisible)
		o.settled(name, true)
		return
	}

	o.registry.setState(name, StatePendingHide)
	o.settingsHide.Debounce(func() {
		if w := o.registry.Get(name); w != nil {
			w.SetAlwaysOnTop(false)
			w.Hide()
			o.registry.setState(name, StateHidden)
			o.settled(name, false)
		}
	})
}

// shortcutSettingsPolicy: a modal-like editor. While open, every other
// window ignores mouse input.
type shortcutSettingsPolicy struct{}

func (shortcutSettingsPolicy) apply(o *Orchestrator, name bus.Window, win Surface, visible bool) {
	if visible {
		pos := ShortcutSettingsPosition(o.screen.PrimaryWorkArea(), win.GetBounds())
		win.SetBounds(pos)
		win.SetAlwaysOnTop(true)

		o.registry.Range(func(other bus.Window, s Surface) {
			if other != name {
				s.SetIgnoreMouseEvents(true)
			}
		})
		win.Show()
		o.registry.setState(name, StateVisible)
		o.settled(name, true)
		return
	}

	win.SetAlwaysOnTop(false)
	o.registry.Range(func(_ bus.Window, s Surface) {
		s.SetIgnoreMouseEvents(false)
	})
	win.Hide()
	o.registry.setState(name, StateHidden)
	o.settled(name, false)
}

// askPolicy: layout-aware show, raised above peers while visible.
type askPolicy struct{}

func (askPolicy) apply(o *Orchestrator, name bus.Window, win Surface, visible bool) {
	if visible {
		layout := o.featureLayout(map[bus.Window]bool{bus.WindowAsk: true})
		if pos, ok := layout[bus.WindowAsk]; ok {
			win.SetBounds(pos)
		}
		win.SetAlwaysOnTop(true)
		win.Show()
		win.MoveTop()
		o.registry.setState(name, StateVisible)
		o.settled(name, true)
		return
	}

	win.SetAlwaysOnTop(false)
	win.Hide()
	o.registry.setState(name, StateHidden)
	o.settled(name, false)
}

// listenPolicy: slides in from a horizontal offset while fading, and
// re-lays-out the other visible feature windows in the same motion.
type listenPolicy struct{}

func (listenPolicy) apply(o *Orchestrator, name bus.Window, win Surface, visible bool) {
	if visible {
		finalVisibility := o.registry.VisibleSet()
		finalVisibility[name] = true
		layout := o.featureLayout(featureOnly(finalVisibility))
		target, ok := layout[name]
		if !ok {
			return
		}

		start := target
		start.X -= o.opts.AnimOffsetX

		win.SetOpacity(0)
		win.SetBounds(start)
		win.Show()
		o.registry.setState(name, StateAnimatingIn)

		o.anim.Fade(win, 1, func() {
			o.registry.setState(name, StateVisible)
			o.settled(name, true)
		})
		o.anim.AnimateLayout(layout, o.registry.Get)
		return
	}

	if !win.IsVisible() {
		return
	}

	cur := win.GetBounds()
	o.registry.setState(name, StateAnimatingOut)

	o.anim.Fade(win, 0, func() {
		win.Hide()
		o.registry.setState(name, StateHidden)
		o.settled(name, false)
	})
	o.anim.AnimatePosition(win, cur.X-o.opts.AnimOffsetX, cur.Y)

	remaining := o.registry.VisibleSet()
	delete(remaining, name)
	others := o.featureLayout(featureOnly(remaining))
	delete(others, name)
	o.anim.AnimateLayout(others, o.registry.Get)
}

// defaultPolicy covers the header and any future window without special
// rules: plain show/hide.
type defaultPolicy struct{}

func (defaultPolicy) apply(o *Orchestrator, name bus.Window, win Surface, visible bool) {
	if visible {
		win.Show()
		o.registry.setState(name, StateVisible)
	} else {
		win.Hide()
		o.registry.setState(name, StateHidden)
	}
	o.settled(name, visible)
}

func featureOnly(set map[bus.Window]bool) map[bus.Window]bool {
	out := make(map[bus.Window]bool)
	for _, name := range []bus.Window{bus.WindowListen, bus.WindowAsk} {
		if set[name] {
			out[name] = true
		}
	}
	return out
}
