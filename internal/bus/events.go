// Package bus provides the process-wide intent bus that decouples
// UI-triggered window intents from the orchestrator that owns the
// actual window objects.
package bus

// Window identifies a logical window. The set is closed; the orchestrator
// drops intents for names it does not know.
type Window string

const (
	WindowHeader           Window = "header"
	WindowListen           Window = "listen"
	WindowAsk              Window = "ask"
	WindowSettings         Window = "settings"
	WindowShortcutSettings Window = "shortcut-settings"
)

// FeatureWindows is the set of non-header windows whose layout depends on
// which other feature windows are visible.
var FeatureWindows = []Window{WindowListen, WindowAsk, WindowSettings, WindowShortcutSettings}

// Event is a typed intent carried by the bus. Events are ephemeral:
// consumed once by the orchestrator, never persisted.
type Event interface {
	isEvent()
}

// VisibilityIntent requests that a named window become visible or hidden.
type VisibilityIntent struct {
	Target  Window
	Visible bool
}

// ResizeHeader requests an animated header resize.
type ResizeHeader struct {
	Width  int
	Height int
}

// AdjustWindowHeight requests an animated height change for a named window.
type AdjustWindowHeight struct {
	Target Window
	Height int
}

// ToggleAllWindows hides or restores the whole overlay. Target nil means
// "flip based on the header's current visibility".
type ToggleAllWindows struct {
	Target *bool
}

// HeaderAnimationFinished notifies the orchestrator that a header
// show/hide animation completed in the UI layer.
type HeaderAnimationFinished struct {
	State string // "visible" or "hidden"
}

// DisplayChanged notifies the orchestrator that display topology changed,
// so the fixed header position must be re-enforced.
type DisplayChanged struct{}

// HeaderStateChanged notifies that the header flipped between the main
// overlay mode and a pre-auth mode; feature windows are created or
// destroyed accordingly.
type HeaderStateChanged struct {
	State string // "main", "apikey", "permission"
}

func (VisibilityIntent) isEvent()        {}
func (ResizeHeader) isEvent()            {}
func (AdjustWindowHeight) isEvent()      {}
func (ToggleAllWindows) isEvent()        {}
func (HeaderAnimationFinished) isEvent() {}
func (DisplayChanged) isEvent()         {}
func (HeaderStateChanged) isEvent()      {}
