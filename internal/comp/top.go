package comp

import (
	"log/slog"

	"github.com/ItsNotGoodName/x-compd/internal/bus"
	"github.com/ItsNotGoodName/x-compd/internal/region"
	"github.com/ItsNotGoodName/x-compd/internal/rules"
	"github.com/ItsNotGoodName/x-compd/internal/window"
	"github.com/ItsNotGoodName/x-compd/internal/wintree"
	"github.com/google/uuid"
	"github.com/jezek/xgb/xproto"
)

// Refresh reconciles everything the event loop marked stale. It runs with
// the server grabbed and the event channel drained, so round trips observe
// a world that cannot shift mid-pass. The order is fixed: imports, queued
// tree changes, then per-window flags with the map resolved first and the
// rules factor last.
func (s *Session) Refresh() {
	s.x.GrabServer()
	defer s.x.UngrabServer()

	s.completeImports()
	s.drainChanges()
	if s.focusStale {
		s.resolveFocus()
		s.focusStale = false
	}
	for _, ref := range s.tree.Children(s.tree.Root()) {
		if w := s.win(ref); w != nil {
			s.processWin(w)
		}
	}
	s.updateIgnoreRegions()
	s.updates = false
}

// updateIgnoreRegions rebuilds each window's obscured area from the solid
// windows stacked above it, so damage reports for hidden content can be
// dropped at the source. Children are topmost first.
func (s *Session) updateIgnoreRegions() {
	var cover region.Region
	for _, ref := range s.tree.Children(s.tree.Root()) {
		w := s.win(ref)
		if w == nil {
			continue
		}
		w.Ignore = region.New(cover.Rects()...)
		if w.State() == window.StateMapped && w.Mode == window.ModeSolid &&
			w.Policy.Paint && !w.BoundingShaped {
			cover.AddRect(s.extents(w))
		}
	}
}

// completeImports enumerates children of every node whose subtree we have
// not seen. Each enumeration may uncover more unqueried nodes, so loop to
// a fixed point.
func (s *Session) completeImports() {
	for {
		var pending []wintree.Ref
		s.eachNode(s.tree.Root(), func(ref wintree.Ref) {
			if !s.tree.TreeQueried(ref) {
				pending = append(pending, ref)
			}
		})
		if len(pending) == 0 {
			return
		}
		for _, ref := range pending {
			s.importChildren(ref)
		}
	}
}

func (s *Session) importChildren(ref wintree.Ref) {
	wid := s.tree.ID(ref).Window
	children, err := s.x.QueryTree(wid)
	if err != nil {
		// Window already destroyed; its DestroyNotify is still in flight.
		slog.Debug("query tree failed, window gone", "window", wid, "error", err)
		s.tree.SetTreeQueried(ref, true)
		return
	}
	// Children arrive bottom to top and Attach prepends, leaving the list
	// topmost first.
	for _, child := range children {
		if _, ok := s.tree.Find(child); ok {
			continue
		}
		cref := s.tree.NewWindow(child)
		s.tree.SetTreeQueried(cref, false)
		s.tree.Attach(cref, ref)
		// Candidate client windows must be watched before WM_STATE shows
		// up, and their current state answered now: the property may have
		// been set long before we connected.
		s.x.SelectWindowEvents(child)
		s.tree.SetReceivingEvents(cref, true)
		if present, err := s.x.HasWMState(child); err == nil {
			s.tree.SetWMState(cref, present)
		}
	}
	s.tree.SetTreeQueried(ref, true)
}

func (s *Session) eachNode(ref wintree.Ref, fn func(wintree.Ref)) {
	fn(ref)
	for _, c := range s.tree.Children(ref) {
		s.eachNode(c, fn)
	}
}

func (s *Session) drainChanges() {
	for {
		c, ok := s.tree.DequeueChange()
		if !ok {
			break
		}
		switch c.Kind {
		case wintree.ChangeToplevelNew:
			ref, ok := s.tree.Find(c.Toplevel.Window)
			if !ok || s.tree.ID(ref) != c.Toplevel {
				// The identity this change was queued for no longer exists.
				continue
			}
			s.manage(ref)
		case wintree.ChangeToplevelKilled:
			s.restacked = true
		case wintree.ChangeClient:
			if w := s.win(c.TopRef); w != nil {
				w.Client = c.NewClient
				w.Set(window.FlagClientStale)
			}
		case wintree.ChangeRestacked:
			s.restacked = true
		}
	}
	if s.restacked {
		s.restacked = false
		s.damage.AddRect(s.screen)
		bus.Publish(EventRestacked{})
	}
}

// manage turns a toplevel node into a managed window. Runs under the grab,
// so the attributes and geometry we read are the ones the window keeps
// until we release it.
func (s *Session) manage(ref wintree.Ref) {
	id := s.tree.ID(ref)
	wid := id.Window
	if wid == s.overlay || wid == s.selection {
		return
	}

	attrs, err := s.x.GetWindowAttributes(wid)
	if err != nil {
		slog.Debug("window vanished before manage", "window", id, "error", err)
		return
	}
	if attrs.InputOnly {
		return
	}
	geom, err := s.x.GetGeometry(wid)
	if err != nil {
		slog.Debug("window vanished before manage", "window", id, "error", err)
		return
	}

	w := window.New(ref, id, window.Geometry{
		X: geom.X, Y: geom.Y,
		Width: geom.Width, Height: geom.Height,
		BorderWidth: geom.Border,
	})
	w.Client = id
	w.Depth = geom.Depth
	w.OverrideRedirect = attrs.OverrideRedirect
	s.tree.SetData(ref, w)
	// Hold the node until the exit transition finishes; this is what keeps
	// destroyed windows around as zombies.
	s.tree.Retain(ref)
	s.wins[id] = ref

	if !s.tree.ReceivingEvents(ref) {
		s.x.SelectWindowEvents(wid)
		s.tree.SetReceivingEvents(ref, true)
	}
	if d, err := s.x.CreateDamage(wid); err != nil {
		slog.Warn("damage tracking unavailable", "window", id, "error", err)
	} else {
		w.Damage = d
	}

	w.Set(window.FlagClientStale | window.FlagPropertyStale | window.FlagFactorChanged)
	if attrs.Viewable {
		w.MappedTarget = true
		w.Set(window.FlagMapped)
	}
	bus.Publish(EventWindowManaged{ID: id})
}

func (s *Session) resolveFocus() {
	focus, ok, err := s.x.GetWindowProp(s.rootWID, s.atoms.NetActiveWindow)
	if err != nil {
		slog.Warn("fetch active window failed", "error", err)
		s.focusStale = true
		return
	}
	var focused wintree.TreeID
	if ok && focus != xproto.WindowNone {
		if ref, found := s.tree.Find(focus); found {
			if w := s.win(s.tree.ToplevelOf(ref)); w != nil {
				focused = w.ID
			}
		}
	}
	if focused == s.focus {
		return
	}
	for _, id := range []wintree.TreeID{s.focus, focused} {
		if ref, ok := s.wins[id]; ok {
			if w := s.win(ref); w != nil {
				w.Focused = id == focused
				w.Set(window.FlagFactorChanged)
			}
		}
	}
	s.focus = focused
}

// processWin resolves a window's pending work. Each step clears its flag
// only on success; a failed step leaves the flag for the next pass.
func (s *Session) processWin(w *window.Win) {
	if w.State() == window.StateDestroyed {
		w.Clear(^window.Flags(0))
		return
	}
	if w.Has(window.FlagMapped) {
		s.resolveMap(w)
	}
	if w.Has(window.FlagClientStale) {
		s.resolveClient(w)
	}
	if w.HasAny(window.FlagSizeStale | window.FlagPositionStale) {
		s.resolveGeometry(w)
	}
	if w.Has(window.FlagPixmapStale) && !w.Has(window.FlagPixmapError) {
		s.resolvePixmap(w)
	}
	if w.Has(window.FlagPropertyStale) {
		s.resolveProps(w)
	}
	if w.Has(window.FlagFactorChanged) {
		s.resolveFactor(w)
	}
}

func (s *Session) resolveMap(w *window.Win) {
	w.Clear(window.FlagMapped)
	if !w.MappedTarget {
		// Unmapped again before we got here; the map never happened as far
		// as the lifecycle is concerned.
		return
	}
	if w.State() == window.StateUnmapping {
		// The remap raced the unmap animation; finish that exit now so the
		// map starts from a clean unmapped state.
		w.AnimationToken = uuid.Nil
		s.transition(w, window.EventAnimationDone)
	}
	// Content from a previous map cycle is stale.
	w.EverDamaged = false
	w.Set(window.FlagPixmapStale)
	w.Clear(window.FlagPixmapError)
	w.Mode = w.DetermineMode()
	s.transition(w, window.EventMapResolved)
	s.addDamage(s.extents(w))
}

func (s *Session) resolveClient(w *window.Win) {
	ref := s.wins[w.ID]
	client := s.tree.ClientOf(ref)
	if client == wintree.NoneRef {
		w.Client = w.ID
	} else {
		w.Client = s.tree.ID(client)
		if !s.tree.ReceivingEvents(client) {
			s.x.SelectWindowEvents(w.Client.Window)
			s.tree.SetReceivingEvents(client, true)
		}
	}
	// Every property we track lives on the client; refetch the lot.
	s.markAllProps(w)
	w.Set(window.FlagPropertyStale | window.FlagFactorChanged)
	w.Clear(window.FlagClientStale)
}

func (s *Session) markAllProps(w *window.Win) {
	for _, atom := range []xproto.Atom{
		xproto.AtomWmName, xproto.AtomWmClass, xproto.AtomWmTransientFor,
		s.atoms.WMWindowRole, s.atoms.WMClientLeader,
		s.atoms.NetWMName, s.atoms.NetWMWindowType, s.atoms.NetWMOpacity,
		s.atoms.NetFrameExtents, s.atoms.NetWMState,
	} {
		w.StaleProps.Mark(atom)
	}
}

func (s *Session) resolveGeometry(w *window.Win) {
	old := w.Geometry()
	pending := w.PendingGeometry()
	resized := old.Width != pending.Width || old.Height != pending.Height ||
		old.BorderWidth != pending.BorderWidth

	s.addDamage(s.extents(w))
	w.CommitGeometry()
	s.addDamage(s.extents(w))

	if resized {
		w.Set(window.FlagPixmapStale)
		w.Clear(window.FlagPixmapError)
	}
	w.Clear(window.FlagSizeStale | window.FlagPositionStale)
}

func (s *Session) resolvePixmap(w *window.Win) {
	switch w.State() {
	case window.StateMapping, window.StateMapped, window.StateFading:
	default:
		// No viewable pixels to bind; nothing to do until the next map.
		w.Clear(window.FlagPixmapStale | window.FlagPixmapError)
		return
	}

	p, err := s.x.NameWindowPixmap(w.ID.Window)
	if err != nil {
		// Latch the failure so we stop retrying until something changes:
		// fresh damage, a resize or a remap all lift the latch. The last
		// good pixmap keeps serving frames in the meantime.
		slog.Warn("pixmap bind failed", "window", w.ID, "error", err)
		w.Clear(window.FlagPixmapStale)
		w.Set(window.FlagPixmapError)
		return
	}
	s.releasePixmap(w)
	w.Pixmap = p
	w.Clear(window.FlagPixmapStale | window.FlagPixmapError)
}

func (s *Session) resolveProps(w *window.Win) {
	cw := w.Client.Window
	failed := false

	fetch := func(atom xproto.Atom, fn func() error) {
		if !w.StaleProps.FetchAndClear(atom) {
			return
		}
		if err := fn(); err != nil {
			slog.Warn("property fetch failed", "window", w.ID, "atom", atom, "error", err)
			w.StaleProps.Mark(atom)
			failed = true
		}
	}

	fetch(s.atoms.NetWMName, func() error {
		name, err := s.x.GetStringProp(cw, s.atoms.NetWMName)
		if err == nil && name != "" {
			w.Name = name
		}
		return err
	})
	fetch(xproto.AtomWmName, func() error {
		name, err := s.x.GetStringProp(cw, xproto.AtomWmName)
		if err == nil && w.Name == "" {
			w.Name = name
		}
		return err
	})
	fetch(xproto.AtomWmClass, func() error {
		instance, general, err := s.x.GetWMClass(cw)
		if err == nil {
			w.ClassInstance, w.ClassGeneral = instance, general
		}
		return err
	})
	fetch(s.atoms.WMWindowRole, func() error {
		role, err := s.x.GetStringProp(cw, s.atoms.WMWindowRole)
		if err == nil {
			w.Role = role
		}
		return err
	})
	fetch(s.atoms.WMClientLeader, func() error {
		leader, ok, err := s.x.GetWindowProp(cw, s.atoms.WMClientLeader)
		if err != nil {
			return err
		}
		if ref, found := s.wins[w.ID]; found && ok {
			s.tree.SetLeader(ref, leader)
		}
		return nil
	})
	fetch(xproto.AtomWmTransientFor, func() error {
		leader, ok, err := s.x.GetWindowProp(cw, xproto.AtomWmTransientFor)
		if err != nil {
			return err
		}
		w.Transient = ok
		if ref, found := s.wins[w.ID]; found && ok && s.tree.Leader(ref) == xproto.WindowNone {
			s.tree.SetLeader(ref, leader)
		}
		return nil
	})
	fetch(s.atoms.NetWMWindowType, func() error {
		atoms, err := s.x.GetAtomListProp(cw, s.atoms.NetWMWindowType)
		if err != nil {
			return err
		}
		typ := s.windowType(atoms)
		if typ == window.TypeUnknown {
			// ICCCM fallback: transients behave like dialogs, everything
			// else like a normal window.
			if w.Transient {
				typ = window.TypeDialog
			} else {
				typ = window.TypeNormal
			}
		}
		w.WindowType = typ
		return nil
	})
	fetch(s.atoms.NetWMOpacity, func() error {
		v, ok, err := s.x.GetCardinalProp(cw, s.atoms.NetWMOpacity)
		if err != nil {
			return err
		}
		w.HasOpacity = ok
		if ok {
			w.Opacity = v
		} else {
			w.Opacity = 0xffffffff
		}
		if w.State() == window.StateMapped || w.State() == window.StateFading {
			s.transition(w, window.EventOpacityTarget)
		}
		return nil
	})
	fetch(s.atoms.NetFrameExtents, func() error {
		vals, err := s.x.GetCardinalListProp(cw, s.atoms.NetFrameExtents)
		if err == nil && len(vals) == 4 {
			w.FrameExtents = window.Margins{
				Left: uint16(vals[0]), Right: uint16(vals[1]),
				Top: uint16(vals[2]), Bottom: uint16(vals[3]),
			}
		}
		return err
	})
	fetch(s.atoms.NetWMState, func() error {
		atoms, err := s.x.GetAtomListProp(cw, s.atoms.NetWMState)
		if err != nil {
			return err
		}
		w.EWMHFullscreen = false
		for _, a := range atoms {
			if a == s.atoms.NetWMStateFullscreen {
				w.EWMHFullscreen = true
			}
		}
		return nil
	})
	if !failed {
		w.Clear(window.FlagPropertyStale)
	}
}

func (s *Session) windowType(atoms []xproto.Atom) window.Type {
	for _, a := range atoms {
		switch a {
		case s.atoms.TypeDesktop:
			return window.TypeDesktop
		case s.atoms.TypeDock:
			return window.TypeDock
		case s.atoms.TypeToolbar:
			return window.TypeToolbar
		case s.atoms.TypeMenu:
			return window.TypeMenu
		case s.atoms.TypeUtility:
			return window.TypeUtility
		case s.atoms.TypeSplash:
			return window.TypeSplash
		case s.atoms.TypeDialog:
			return window.TypeDialog
		case s.atoms.TypeNormal:
			return window.TypeNormal
		case s.atoms.TypeDropdownMenu:
			return window.TypeDropdownMenu
		case s.atoms.TypePopupMenu:
			return window.TypePopupMenu
		case s.atoms.TypeTooltip:
			return window.TypeTooltip
		case s.atoms.TypeNotification:
			return window.TypeNotification
		case s.atoms.TypeCombo:
			return window.TypeCombo
		case s.atoms.TypeDND:
			return window.TypeDND
		}
	}
	return window.TypeUnknown
}

// resolveFactor re-runs the rules last, once every input it matches on has
// settled.
func (s *Session) resolveFactor(w *window.Win) {
	g := w.Geometry()
	w.Fullscreen = w.EWMHFullscreen ||
		(int32(g.X) <= s.screen.X1 && int32(g.Y) <= s.screen.Y1 &&
			int32(g.X)+int32(g.Width) >= s.screen.X2 &&
			int32(g.Y)+int32(g.Height) >= s.screen.Y2)

	policy := s.rules.Match(rules.Target{
		Name:       w.Name,
		Class:      w.ClassGeneral,
		Instance:   w.ClassInstance,
		Role:       w.Role,
		Type:       w.WindowType,
		Fullscreen: w.Fullscreen,
		Focused:    w.Focused,
	})
	if policy != w.Policy {
		w.Policy = policy
		s.addDamage(s.extents(w))
	}
	// Opacity, frame extents and policy all feed the paint mode; it settles
	// here once they have.
	w.Mode = w.DetermineMode()
	w.Clear(window.FlagFactorChanged)
}
