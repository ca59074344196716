package xconn

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Atoms holds every atom the session touches, interned once at connect.
// Core-protocol predefined atoms (WM_NAME, WM_CLASS, WM_TRANSIENT_FOR) are
// not listed; use the xproto constants for those.
type Atoms struct {
	WMState        xproto.Atom
	WMWindowRole   xproto.Atom
	WMClientLeader xproto.Atom
	UTF8String     xproto.Atom

	NetWMName             xproto.Atom
	NetWMWindowType       xproto.Atom
	NetWMOpacity          xproto.Atom
	NetFrameExtents       xproto.Atom
	NetWMState            xproto.Atom
	NetWMStateFullscreen  xproto.Atom
	NetActiveWindow       xproto.Atom
	NetWMCMS0             xproto.Atom
	NetWMBypassCompositor xproto.Atom

	TypeDesktop      xproto.Atom
	TypeDock         xproto.Atom
	TypeToolbar      xproto.Atom
	TypeMenu         xproto.Atom
	TypeUtility      xproto.Atom
	TypeSplash       xproto.Atom
	TypeDialog       xproto.Atom
	TypeNormal       xproto.Atom
	TypeDropdownMenu xproto.Atom
	TypePopupMenu    xproto.Atom
	TypeTooltip      xproto.Atom
	TypeNotification xproto.Atom
	TypeCombo        xproto.Atom
	TypeDND          xproto.Atom
}

// InternAtoms sends all InternAtom requests before collecting any reply, so
// the whole table costs one round trip.
func InternAtoms(x *xgb.Conn) (Atoms, error) {
	var a Atoms
	table := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_STATE", &a.WMState},
		{"WM_WINDOW_ROLE", &a.WMWindowRole},
		{"WM_CLIENT_LEADER", &a.WMClientLeader},
		{"UTF8_STRING", &a.UTF8String},
		{"_NET_WM_NAME", &a.NetWMName},
		{"_NET_WM_WINDOW_TYPE", &a.NetWMWindowType},
		{"_NET_WM_WINDOW_OPACITY", &a.NetWMOpacity},
		{"_NET_FRAME_EXTENTS", &a.NetFrameExtents},
		{"_NET_WM_STATE", &a.NetWMState},
		{"_NET_WM_STATE_FULLSCREEN", &a.NetWMStateFullscreen},
		{"_NET_ACTIVE_WINDOW", &a.NetActiveWindow},
		{"_NET_WM_CM_S0", &a.NetWMCMS0},
		{"_NET_WM_BYPASS_COMPOSITOR", &a.NetWMBypassCompositor},
		{"_NET_WM_WINDOW_TYPE_DESKTOP", &a.TypeDesktop},
		{"_NET_WM_WINDOW_TYPE_DOCK", &a.TypeDock},
		{"_NET_WM_WINDOW_TYPE_TOOLBAR", &a.TypeToolbar},
		{"_NET_WM_WINDOW_TYPE_MENU", &a.TypeMenu},
		{"_NET_WM_WINDOW_TYPE_UTILITY", &a.TypeUtility},
		{"_NET_WM_WINDOW_TYPE_SPLASH", &a.TypeSplash},
		{"_NET_WM_WINDOW_TYPE_DIALOG", &a.TypeDialog},
		{"_NET_WM_WINDOW_TYPE_NORMAL", &a.TypeNormal},
		{"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU", &a.TypeDropdownMenu},
		{"_NET_WM_WINDOW_TYPE_POPUP_MENU", &a.TypePopupMenu},
		{"_NET_WM_WINDOW_TYPE_TOOLTIP", &a.TypeTooltip},
		{"_NET_WM_WINDOW_TYPE_NOTIFICATION", &a.TypeNotification},
		{"_NET_WM_WINDOW_TYPE_COMBO", &a.TypeCombo},
		{"_NET_WM_WINDOW_TYPE_DND", &a.TypeDND},
	}

	cookies := make([]xproto.InternAtomCookie, len(table))
	for i, e := range table {
		cookies[i] = xproto.InternAtom(x, false, uint16(len(e.name)), e.name)
	}
	for i, e := range table {
		reply, err := cookies[i].Reply()
		if err != nil {
			return Atoms{}, err
		}
		*e.dst = reply.Atom
	}
	return a, nil
}

// Tracked reports whether a PropertyNotify for atom is interesting at all.
// Everything else is dropped in the event loop without marking any window
// stale.
func (a *Atoms) Tracked(atom xproto.Atom) bool {
	switch atom {
	case xproto.AtomWmName, xproto.AtomWmClass, xproto.AtomWmTransientFor,
		a.WMState, a.WMWindowRole, a.WMClientLeader,
		a.NetWMName, a.NetWMWindowType, a.NetWMOpacity,
		a.NetFrameExtents, a.NetWMState:
		return true
	}
	return false
}
