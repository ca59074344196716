package xconn

import (
	"fmt"

	"github.com/jezek/xgb/composite"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
)

// WinAttrs is the slice of GetWindowAttributes the session cares about.
type WinAttrs struct {
	InputOnly        bool
	OverrideRedirect bool
	Viewable         bool
}

// QueryTree returns a window's children, bottom to top as the server
// reports them.
func (c *Conn) QueryTree(wid xproto.Window) ([]xproto.Window, error) {
	reply, err := xproto.QueryTree(c.X, wid).Reply()
	if err != nil {
		return nil, fmt.Errorf("query tree %#x: %w", wid, err)
	}
	return reply.Children, nil
}

func (c *Conn) GetWindowAttributes(wid xproto.Window) (WinAttrs, error) {
	reply, err := xproto.GetWindowAttributes(c.X, wid).Reply()
	if err != nil {
		return WinAttrs{}, fmt.Errorf("get attributes %#x: %w", wid, err)
	}
	return WinAttrs{
		InputOnly:        reply.Class == xproto.WindowClassInputOnly,
		OverrideRedirect: reply.OverrideRedirect,
		Viewable:         reply.MapState == xproto.MapStateViewable,
	}, nil
}

// WinGeom is a GetGeometry reply reduced to what the session keeps.
type WinGeom struct {
	X, Y          int16
	Width, Height uint16
	Border        uint16
	Depth         byte
}

func (c *Conn) GetGeometry(wid xproto.Window) (WinGeom, error) {
	reply, err := xproto.GetGeometry(c.X, xproto.Drawable(wid)).Reply()
	if err != nil {
		return WinGeom{}, fmt.Errorf("get geometry %#x: %w", wid, err)
	}
	return WinGeom{
		X: reply.X, Y: reply.Y,
		Width: reply.Width, Height: reply.Height,
		Border: reply.BorderWidth,
		Depth:  reply.Depth,
	}, nil
}

// CreateDamage starts damage tracking on a window, reporting non-empty
// transitions only.
func (c *Conn) CreateDamage(wid xproto.Window) (damage.Damage, error) {
	d, err := damage.NewDamageId(c.X)
	if err != nil {
		return 0, err
	}
	if err := damage.CreateChecked(c.X, d, xproto.Drawable(wid), damage.ReportLevelNonEmpty).Check(); err != nil {
		return 0, fmt.Errorf("create damage for %#x: %w", wid, err)
	}
	return d, nil
}

// DestroyDamage tears down damage tracking. Fire and forget; the damage
// object dies with the window anyway.
func (c *Conn) DestroyDamage(d damage.Damage) {
	damage.Destroy(c.X, d)
}

// SubtractDamage acknowledges all accumulated damage on d so the server
// reports the next batch.
func (c *Conn) SubtractDamage(d damage.Damage) {
	damage.Subtract(c.X, d, 0, 0)
}

// NameWindowPixmap binds the window's current backing pixmap to a fresh
// pixmap ID. Fails when the window is unviewable or already gone.
func (c *Conn) NameWindowPixmap(wid xproto.Window) (xproto.Pixmap, error) {
	p, err := xproto.NewPixmapId(c.X)
	if err != nil {
		return 0, err
	}
	if err := composite.NameWindowPixmapChecked(c.X, wid, p).Check(); err != nil {
		return 0, fmt.Errorf("name pixmap of %#x: %w", wid, err)
	}
	return p, nil
}

func (c *Conn) FreePixmap(p xproto.Pixmap) {
	xproto.FreePixmap(c.X, p)
}
