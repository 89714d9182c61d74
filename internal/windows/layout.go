package windows

import (
	"math"

	"orbit/internal/bus"
)

// Layout math is pure: visible-set plus anchor bounds in, target bounds out.
// The orchestrator is the only caller.

const featureGap = 8

// HeaderHome returns the canonical header position: horizontally centered
// on the primary display, marginTop below the top of the work area. The
// header is not user-movable; drift gets corrected back to this.
func HeaderHome(work Bounds, headerWidth, headerHeight, marginTop int) Bounds {
	return Bounds{
		X:      int(math.Round(float64(work.Width-headerWidth) / 2)),
		Y:      work.Y + marginTop,
		Width:  headerWidth,
		Height: headerHeight,
	}
}

// FeatureLayout maps the set of visible feature windows to their mutually
// consistent bounds below the header. Each window keeps its current size;
// only position is computed. Windows absent from the registry are skipped
// by the caller.
func FeatureLayout(visible map[bus.Window]bool, header Bounds, work Bounds, sizeOf func(bus.Window) Bounds) map[bus.Window]Bounds {
	out := make(map[bus.Window]Bounds)
	if len(visible) == 0 {
		return out
	}

	top := header.Y + header.Height + featureGap
	headerCenter := header.X + header.Width/2

	listen := visible[bus.WindowListen]
	ask := visible[bus.WindowAsk]

	if listen {
		size := sizeOf(bus.WindowListen)
		b := Bounds{Width: size.Width, Height: size.Height, Y: top}
		if ask {
			// Side by side: listen sits left of the header center line
			b.X = headerCenter - size.Width - featureGap/2
		} else {
			b.X = headerCenter - size.Width/2
		}
		out[bus.WindowListen] = clampToWork(b, work)
	}

	if ask {
		size := sizeOf(bus.WindowAsk)
		b := Bounds{Width: size.Width, Height: size.Height, Y: top}
		if listen {
			b.X = headerCenter + featureGap/2
		} else {
			b.X = headerCenter - size.Width/2
		}
		out[bus.WindowAsk] = clampToWork(b, work)
	}

	return out
}

// SettingsPosition anchors the settings panel under the right edge of the
// header, where its trigger button lives.
func SettingsPosition(header Bounds, work Bounds, size Bounds) Bounds {
	b := Bounds{
		X:      header.X + header.Width - size.Width,
		Y:      header.Y + header.Height + featureGap,
		Width:  size.Width,
		Height: size.Height,
	}
	return clampToWork(b, work)
}

// ShortcutSettingsPosition centers the shortcut editor on the work area.
func ShortcutSettingsPosition(work Bounds, size Bounds) Bounds {
	return Bounds{
		X:      work.X + (work.Width-size.Width)/2,
		Y:      work.Y + (work.Height-size.Height)/2,
		Width:  size.Width,
		Height: size.Height,
	}
}

// HeaderResize computes new header bounds for a resize request, keeping
// the header centered on its current midpoint.
func HeaderResize(current Bounds, width, height int) Bounds {
	if width <= 0 {
		width = current.Width
	}
	if height <= 0 {
		height = current.Height
	}
	return Bounds{
		X:      current.X + (current.Width-width)/2,
		Y:      current.Y,
		Width:  width,
		Height: height,
	}
}

// HeightAdjustment computes new bounds for a height change, anchored at
// the window's top edge.
func HeightAdjustment(current Bounds, targetHeight int) Bounds {
	if targetHeight <= 0 {
		targetHeight = current.Height
	}
	return Bounds{
		X:      current.X,
		Y:      current.Y,
		Width:  current.Width,
		Height: targetHeight,
	}
}

func clampToWork(b Bounds, work Bounds) Bounds {
	if work.Width == 0 && work.Height == 0 {
		return b
	}
	if b.X < work.X {
		b.X = work.X
	}
	if max := work.X + work.Width - b.Width; b.X > max && max >= work.X {
		b.X = max
	}
	if b.Y < work.Y {
		b.Y = work.Y
	}
	if max := work.Y + work.Height - b.Height; b.Y > max && max >= work.Y {
		b.Y = max
	}
	return b
}
