package xconn

import (
	"bytes"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

const propLengthMax = 1024 // in 32-bit words, plenty for anything we track

// GetProp fetches a whole property. A zero-length reply means the property
// is absent, which is not an error here.
func (c *Conn) GetProp(wid xproto.Window, prop, typ xproto.Atom) (*xproto.GetPropertyReply, error) {
	reply, err := xproto.GetProperty(c.X, false, wid, prop, typ, 0, propLengthMax).Reply()
	if err != nil {
		return nil, fmt.Errorf("get property %d of %#x: %w", prop, wid, err)
	}
	c.Seq.Observe(reply.Sequence)
	return reply, nil
}

// GetStringProp fetches a text property, accepting both STRING and
// UTF8_STRING encodings.
func (c *Conn) GetStringProp(wid xproto.Window, prop xproto.Atom) (string, error) {
	reply, err := c.GetProp(wid, prop, xproto.GetPropertyTypeAny)
	if err != nil {
		return "", err
	}
	if reply.Format != 8 {
		return "", nil
	}
	if reply.Type != xproto.AtomString && reply.Type != c.Atoms.UTF8String {
		return "", nil
	}
	// Some clients null-terminate.
	return string(bytes.TrimRight(reply.Value, "\x00")), nil
}

// GetWMClass fetches WM_CLASS and splits it into instance and general
// class, the two null-separated fields of the property.
func (c *Conn) GetWMClass(wid xproto.Window) (instance, general string, err error) {
	reply, err := c.GetProp(wid, xproto.AtomWmClass, xproto.AtomString)
	if err != nil || reply.Format != 8 {
		return "", "", err
	}
	parts := bytes.SplitN(reply.Value, []byte{0}, 3)
	if len(parts) > 0 {
		instance = string(parts[0])
	}
	if len(parts) > 1 {
		general = string(parts[1])
	}
	return instance, general, nil
}

// GetCardinalProp fetches a single 32-bit CARDINAL. ok is false when the
// property is absent or malformed.
func (c *Conn) GetCardinalProp(wid xproto.Window, prop xproto.Atom) (value uint32, ok bool, err error) {
	reply, err := c.GetProp(wid, prop, xproto.AtomCardinal)
	if err != nil {
		return 0, false, err
	}
	if reply.Format != 32 || len(reply.Value) < 4 {
		return 0, false, nil
	}
	return xgb.Get32(reply.Value), true, nil
}

// GetCardinalListProp fetches a list of 32-bit CARDINALs, e.g.
// _NET_FRAME_EXTENTS.
func (c *Conn) GetCardinalListProp(wid xproto.Window, prop xproto.Atom) ([]uint32, error) {
	reply, err := c.GetProp(wid, prop, xproto.AtomCardinal)
	if err != nil {
		return nil, err
	}
	if reply.Format != 32 {
		return nil, nil
	}
	out := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		out = append(out, xgb.Get32(reply.Value[i:]))
	}
	return out, nil
}

// GetAtomListProp fetches an ATOM list, e.g. _NET_WM_WINDOW_TYPE or
// _NET_WM_STATE.
func (c *Conn) GetAtomListProp(wid xproto.Window, prop xproto.Atom) ([]xproto.Atom, error) {
	reply, err := c.GetProp(wid, prop, xproto.AtomAtom)
	if err != nil {
		return nil, err
	}
	if reply.Format != 32 {
		return nil, nil
	}
	out := make([]xproto.Atom, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		out = append(out, xproto.Atom(xgb.Get32(reply.Value[i:])))
	}
	return out, nil
}

// GetWindowProp fetches a single WINDOW property, e.g. WM_CLIENT_LEADER.
func (c *Conn) GetWindowProp(wid xproto.Window, prop xproto.Atom) (value xproto.Window, ok bool, err error) {
	reply, err := c.GetProp(wid, prop, xproto.AtomWindow)
	if err != nil {
		return 0, false, err
	}
	if reply.Format != 32 || len(reply.Value) < 4 {
		return 0, false, nil
	}
	return xproto.Window(xgb.Get32(reply.Value)), true, nil
}

// HasWMState reports whether ICCCM WM_STATE is set on the window, which is
// what marks a window as the client window of its frame.
func (c *Conn) HasWMState(wid xproto.Window) (bool, error) {
	reply, err := c.GetProp(wid, c.Atoms.WMState, c.Atoms.WMState)
	if err != nil {
		return false, err
	}
	return reply.Format != 0 && len(reply.Value) > 0, nil
}
