// Package window holds per-window render state: the lifecycle state machine,
// the consistency flag set marked by the event bottom half and resolved by
// the top half, and the double buffered geometry that keeps repaints on the
// last server-acknowledged extents.
package window

import (
	"github.com/ItsNotGoodName/x-compd/internal/region"
	"github.com/ItsNotGoodName/x-compd/internal/wintree"
	"github.com/google/uuid"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
)

// Geometry is a window's position and size as reported by the server.
// Position is parent-relative, size excludes the border.
type Geometry struct {
	X, Y          int16
	Width, Height uint16
	BorderWidth   uint16
}

func (g Geometry) Eq(o Geometry) bool { return g == o }

// PaintMode classifies how a window's pixels are composited.
type PaintMode uint8

const (
	// ModeTrans: the window body itself has translucent pixels.
	ModeTrans PaintMode = iota
	// ModeFrameTrans: opaque body, translucent frame.
	ModeFrameTrans
	// ModeSolid: fully opaque.
	ModeSolid
)

func (m PaintMode) String() string {
	switch m {
	case ModeFrameTrans:
		return "frame-trans"
	case ModeSolid:
		return "solid"
	}
	return "trans"
}

// Margins are frame extents around the client area.
type Margins struct {
	Top, Left, Bottom, Right uint16
}

// Type is the EWMH window type, reduced to the kinds policy cares about.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeDesktop
	TypeDock
	TypeToolbar
	TypeMenu
	TypeUtility
	TypeSplash
	TypeDialog
	TypeNormal
	TypeDropdownMenu
	TypePopupMenu
	TypeTooltip
	TypeNotification
	TypeCombo
	TypeDND
)

func (t Type) String() string {
	switch t {
	case TypeDesktop:
		return "desktop"
	case TypeDock:
		return "dock"
	case TypeToolbar:
		return "toolbar"
	case TypeMenu:
		return "menu"
	case TypeUtility:
		return "utility"
	case TypeSplash:
		return "splash"
	case TypeDialog:
		return "dialog"
	case TypeNormal:
		return "normal"
	case TypeDropdownMenu:
		return "dropdown-menu"
	case TypePopupMenu:
		return "popup-menu"
	case TypeTooltip:
		return "tooltip"
	case TypeNotification:
		return "notification"
	case TypeCombo:
		return "combo"
	case TypeDND:
		return "dnd"
	}
	return "unknown"
}

// Policy is the effect set rules resolve for a window.
type Policy struct {
	Shadow  bool
	Fade    bool
	Opacity float64
	Paint   bool
}

// Win is the managed state for one toplevel. It is created by the top half
// when a toplevel-new change is drained and hangs off the tree node until
// the node is reaped.
type Win struct {
	// Tree identity. Ref stays valid while we hold a reference on the node,
	// including zombie retention after destruction.
	Ref wintree.Ref
	ID  wintree.TreeID

	// Client is the client window carrying the ICCCM properties, the
	// toplevel's own identity when no client was found.
	Client wintree.TreeID

	// MappedTarget is the map state the server last reported. It may run
	// ahead of the lifecycle state until the pending map is resolved.
	MappedTarget bool

	state State
	flags Flags

	// committed is the geometry the current pixmap and repaints are based
	// on. pending accumulates ConfigureNotify updates until the top half
	// reconciles them (refreshing the pixmap) and promotes pending to
	// committed. On destruction any unreconciled pending geometry stays
	// where it is; the final fade renders from committed.
	committed Geometry
	pending   Geometry

	StaleProps StaleProps

	EverDamaged bool
	Pixmap      xproto.Pixmap
	Damage      damage.Damage

	// Ignore is the screen area obscured by solid windows above; damage
	// reports falling entirely inside it are dropped.
	Ignore region.Region

	Mode           PaintMode
	Depth          byte
	BoundingShaped bool

	// Cached properties, refreshed by the top half when the corresponding
	// stale bit is set.
	Name          string
	ClassInstance string
	ClassGeneral  string
	Role          string
	WindowType    Type
	Transient     bool
	Opacity       uint32
	HasOpacity    bool
	FrameExtents  Margins

	EWMHFullscreen   bool
	Fullscreen       bool
	Focused          bool
	OverrideRedirect bool

	// ToPaint is the render layer's verdict from the previous frame.
	ToPaint bool

	// Policy is the rules outcome, refreshed whenever a matching factor
	// changes.
	Policy Policy

	// AnimationToken identifies the animation currently blocking a state
	// transition. uuid.Nil means none. A stale completion for a superseded
	// animation carries the old token and is ignored.
	AnimationToken uuid.UUID
}

// New returns a Win for a freshly managed toplevel. The initial server
// geometry seeds both buffers so the first reconcile is a no-op.
func New(ref wintree.Ref, id wintree.TreeID, geom Geometry) *Win {
	return &Win{
		Ref:       ref,
		ID:        id,
		state:     StateUnmapped,
		committed: geom,
		pending:   geom,
		Opacity:   0xffffffff,
	}
}

// Geometry returns the committed geometry, the extents the current pixmap
// was named against. Everything the render layer draws uses this.
func (w *Win) Geometry() Geometry { return w.committed }

// PendingGeometry returns the latest server-reported geometry, which may be
// ahead of committed.
func (w *Win) PendingGeometry() Geometry { return w.pending }

// UpdatePending folds a configure notification into the pending buffer and
// marks the matching stale flags. Bottom half only; no round trips.
func (w *Win) UpdatePending(g Geometry) {
	if g.X != w.pending.X || g.Y != w.pending.Y {
		w.Set(FlagPositionStale)
	}
	if g.Width != w.pending.Width || g.Height != w.pending.Height || g.BorderWidth != w.pending.BorderWidth {
		w.Set(FlagSizeStale)
	}
	w.pending = g
}

// CommitGeometry promotes pending to committed. The top half calls this
// after the pixmap has been refreshed for the new size, so committed never
// runs ahead of the pixels we can actually draw.
func (w *Win) CommitGeometry() Geometry {
	w.committed = w.pending
	return w.committed
}

// GeometryDirty reports whether pending has diverged from committed.
func (w *Win) GeometryDirty() bool { return w.pending != w.committed }

// DetermineMode classifies how the window's pixels composite. A 32-bit
// visual is assumed to carry an alpha channel.
func (w *Win) DetermineMode() PaintMode {
	switch {
	case w.Depth == 32, w.HasOpacity && w.Opacity != 0xffffffff:
		return ModeTrans
	case w.FrameExtents != (Margins{}) && w.Policy.Opacity < 1:
		return ModeFrameTrans
	}
	return ModeSolid
}
