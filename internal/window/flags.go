package window

import "strings"

// Flags are pending-work markers. The event bottom half only ORs flags in;
// the top half clears them one by one as each is resolved. No other
// component touches them.
type Flags uint32

const (
	// FlagPixmapStale: the bound window pixmap is out of date.
	FlagPixmapStale Flags = 1 << iota
	// FlagPixmapError: binding the pixmap failed; suppresses retries until
	// FlagPixmapStale is independently set again.
	FlagPixmapError
	// FlagClientStale: the client window needs to be re-resolved.
	FlagClientStale
	// FlagMapped: the window was mapped by X; the map transition is pending.
	FlagMapped
	// FlagPropertyStale: at least one tracked property changed.
	FlagPropertyStale
	// FlagSizeStale: an unhandled size or shape change.
	FlagSizeStale
	// FlagPositionStale: an unhandled position change.
	FlagPositionStale
	// FlagFactorChanged: some input to policy matching changed; rules must
	// be re-evaluated. Always resolved last.
	FlagFactorChanged
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagPixmapStale, "pixmap-stale"},
	{FlagPixmapError, "pixmap-error"},
	{FlagClientStale, "client-stale"},
	{FlagMapped, "mapped"},
	{FlagPropertyStale, "property-stale"},
	{FlagSizeStale, "size-stale"},
	{FlagPositionStale, "position-stale"},
	{FlagFactorChanged, "factor-changed"},
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Set ORs in flags. Bottom-half entry point.
func (w *Win) Set(f Flags) { w.flags |= f }

// Clear removes flags after their resolution succeeded. Top-half entry
// point.
func (w *Win) Clear(f Flags) { w.flags &^= f }

// Has reports whether all of f are set.
func (w *Win) Has(f Flags) bool { return w.flags&f == f }

// HasAny reports whether any of f are set.
func (w *Win) HasAny(f Flags) bool { return w.flags&f != 0 }

// Flags returns the current pending-work set.
func (w *Win) Flags() Flags { return w.flags }
