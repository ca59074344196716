package comp

import (
	"github.com/ItsNotGoodName/x-compd/internal/xconn"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
)

// Poster issues requests whose replies are never waited for. The event loop
// is restricted to this surface: a round trip there would stall behind
// whatever the server is still streaming at us.
type Poster interface {
	SelectWindowEvents(wid xproto.Window)
	SubtractDamage(d damage.Damage)
	DestroyDamage(d damage.Damage)
	FreePixmap(p xproto.Pixmap)
}

// Querier adds the round-trip requests. Only the reconciliation pass may
// use these, and only while it holds the server grab with the event queue
// drained, so replies cannot interleave with unprocessed events.
type Querier interface {
	Poster

	GrabServer()
	UngrabServer()

	QueryTree(wid xproto.Window) ([]xproto.Window, error)
	GetWindowAttributes(wid xproto.Window) (xconn.WinAttrs, error)
	GetGeometry(wid xproto.Window) (xconn.WinGeom, error)
	CreateDamage(wid xproto.Window) (damage.Damage, error)
	NameWindowPixmap(wid xproto.Window) (xproto.Pixmap, error)

	HasWMState(wid xproto.Window) (bool, error)
	GetStringProp(wid xproto.Window, prop xproto.Atom) (string, error)
	GetWMClass(wid xproto.Window) (instance, general string, err error)
	GetCardinalProp(wid xproto.Window, prop xproto.Atom) (uint32, bool, error)
	GetCardinalListProp(wid xproto.Window, prop xproto.Atom) ([]uint32, error)
	GetAtomListProp(wid xproto.Window, prop xproto.Atom) ([]xproto.Atom, error)
	GetWindowProp(wid xproto.Window, prop xproto.Atom) (xproto.Window, bool, error)
}

var _ Querier = (*xconn.Conn)(nil)
