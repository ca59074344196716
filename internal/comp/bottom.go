package comp

import (
	"fmt"
	"log/slog"

	"github.com/ItsNotGoodName/x-compd/internal/region"
	"github.com/ItsNotGoodName/x-compd/internal/window"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xproto"
)

// HandleEvent applies one X event to the session. Handlers here never wait
// for a reply: everything they need is in the event payload, and anything
// that needs the server's current state is deferred to the reconciliation
// pass through the flag set.
func (s *Session) HandleEvent(ev any) error {
	switch ev := ev.(type) {
	case xproto.CreateNotifyEvent:
		s.onCreate(ev)
	case xproto.DestroyNotifyEvent:
		s.onDestroy(ev)
	case xproto.MapNotifyEvent:
		s.onMap(ev)
	case xproto.UnmapNotifyEvent:
		s.onUnmap(ev)
	case xproto.ReparentNotifyEvent:
		s.onReparent(ev)
	case xproto.ConfigureNotifyEvent:
		s.onConfigure(ev)
	case xproto.CirculateNotifyEvent:
		s.onCirculate(ev)
	case xproto.GravityNotifyEvent:
		s.onGravity(ev)
	case xproto.PropertyNotifyEvent:
		s.onProperty(ev)
	case xproto.ExposeEvent:
		s.addDamage(region.Rect{
			X1: int32(ev.X), Y1: int32(ev.Y),
			X2: int32(ev.X) + int32(ev.Width), Y2: int32(ev.Y) + int32(ev.Height),
		})
	case damage.NotifyEvent:
		s.onDamage(ev)
	case shape.NotifyEvent:
		s.onShape(ev)
	case randr.ScreenChangeNotifyEvent:
		s.onScreenChange(ev)
	case xproto.FocusInEvent, xproto.FocusOutEvent:
		// Focus needs a fetch to attribute; resolved with the next pass.
		s.focusStale = true
		s.updates = true
	case xproto.SelectionClearEvent:
		if ev.Owner == s.selection {
			return fmt.Errorf("lost compositor selection to another client")
		}
	case xproto.MapRequestEvent, xproto.ConfigureRequestEvent, xproto.CirculateRequestEvent:
		// We are not the window manager.
	case xproto.ClientMessageEvent, xproto.MappingNotifyEvent, xproto.NoExposureEvent:
		// Not interesting.
	default:
		slog.Debug("unknown event", "event", ev)
	}
	return nil
}

func (s *Session) onCreate(ev xproto.CreateNotifyEvent) {
	parent, ok := s.tree.Find(ev.Parent)
	if !ok {
		// Parent under a subtree we have not imported yet; the pending
		// import will pick this window up.
		return
	}
	if _, ok := s.tree.Find(ev.Window); ok {
		slog.Error("create for a window we already track", "window", ev.Window)
		return
	}
	ref := s.tree.NewWindow(ev.Window)
	// A brand new window has no children to enumerate, and no properties
	// yet; watch it so WM_STATE is seen the moment it appears.
	s.tree.SetTreeQueried(ref, true)
	s.tree.Attach(ref, parent)
	s.x.SelectWindowEvents(ev.Window)
	s.tree.SetReceivingEvents(ref, true)
	s.tree.SetWMState(ref, false)
	s.updates = true
}

func (s *Session) onDestroy(ev xproto.DestroyNotifyEvent) {
	ref, ok := s.tree.Find(ev.Window)
	if !ok {
		return
	}
	if w := s.win(ref); w != nil {
		// Managed toplevel. The tree reference taken at manage time keeps
		// the node as a zombie until the exit transition finishes, so any
		// unreconciled pending geometry stays parked on the window and the
		// fade renders from the committed extents.
		s.transition(w, window.EventDestroy)
	}
	s.tree.Destroy(ref)
	s.updates = true
}

func (s *Session) onMap(ev xproto.MapNotifyEvent) {
	ref, ok := s.tree.Find(ev.Window)
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil {
		// Either not a toplevel or not yet managed; manage reads the map
		// state from the server.
		return
	}
	w.MappedTarget = true
	w.Set(window.FlagMapped)
	s.updates = true
}

func (s *Session) onUnmap(ev xproto.UnmapNotifyEvent) {
	ref, ok := s.tree.Find(ev.Window)
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil {
		return
	}
	w.MappedTarget = false
	s.addDamage(s.extents(w))
	s.transition(w, window.EventUnmap)
	s.updates = true
}

// onReparent tears down the window's old identity and starts a fresh one
// under the new parent. The new node's children are unknown until the next
// reconciliation enumerates them.
func (s *Session) onReparent(ev xproto.ReparentNotifyEvent) {
	if ref, ok := s.tree.Find(ev.Window); ok {
		if s.tree.Parent(ref) == s.tree.Root() {
			if w := s.win(ref); w != nil {
				// Leaving the toplevel set is the end of this identity.
				s.transition(w, window.EventDestroy)
			}
		}
		s.tree.Detach(ref)
	}
	parent, ok := s.tree.Find(ev.Parent)
	if !ok {
		return
	}
	ref := s.tree.NewWindow(ev.Window)
	s.tree.SetTreeQueried(ref, false)
	s.tree.Attach(ref, parent)
	s.updates = true
}

func (s *Session) onConfigure(ev xproto.ConfigureNotifyEvent) {
	if ev.Window == s.rootWID {
		s.screen = region.Rect{X2: int32(ev.Width), Y2: int32(ev.Height)}
		s.damage.Clear()
		s.damage.AddRect(s.screen)
		s.updates = true
		return
	}

	ref, ok := s.tree.Find(ev.Window)
	if !ok || s.tree.Parent(ref) != s.tree.Root() {
		return
	}

	if ev.AboveSibling == xproto.WindowNone {
		s.tree.MoveToEnd(ref, true)
	} else if above, ok := s.tree.Find(ev.AboveSibling); ok {
		s.tree.MoveToAbove(ref, above)
	}

	w := s.win(ref)
	if w == nil {
		s.updates = true
		return
	}
	s.addDamage(s.pendingExtents(w))
	w.UpdatePending(window.Geometry{
		X: ev.X, Y: ev.Y,
		Width: ev.Width, Height: ev.Height,
		BorderWidth: ev.BorderWidth,
	})
	s.addDamage(s.pendingExtents(w))
	s.updates = true
}

func (s *Session) onCirculate(ev xproto.CirculateNotifyEvent) {
	ref, ok := s.tree.Find(ev.Window)
	if !ok || s.tree.Parent(ref) != s.tree.Root() {
		return
	}
	s.tree.MoveToEnd(ref, ev.Place == xproto.PlaceOnBottom)
	if w := s.win(ref); w != nil {
		s.addDamage(s.extents(w))
	}
	s.updates = true
}

func (s *Session) onGravity(ev xproto.GravityNotifyEvent) {
	ref, ok := s.tree.Find(ev.Window)
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil {
		return
	}
	g := w.PendingGeometry()
	s.addDamage(s.pendingExtents(w))
	g.X, g.Y = ev.X, ev.Y
	w.UpdatePending(g)
	s.addDamage(s.pendingExtents(w))
	s.updates = true
}

func (s *Session) onProperty(ev xproto.PropertyNotifyEvent) {
	if ev.Window == s.rootWID {
		if ev.Atom == s.atoms.NetActiveWindow {
			s.focusStale = true
			s.updates = true
		}
		return
	}

	ref, ok := s.tree.Find(ev.Window)
	if !ok {
		return
	}

	// WM_STATE appearing or vanishing moves the client window; the event
	// itself says which, no fetch needed.
	if ev.Atom == s.atoms.WMState {
		s.tree.SetWMState(ref, ev.State == xproto.PropertyNewValue)
		s.updates = true
		return
	}

	if !s.atoms.Tracked(ev.Atom) {
		return
	}
	w := s.win(s.tree.ToplevelOf(ref))
	if w == nil {
		return
	}
	w.StaleProps.Mark(ev.Atom)
	w.Set(window.FlagPropertyStale | window.FlagFactorChanged)
	s.updates = true
}

func (s *Session) onDamage(ev damage.NotifyEvent) {
	ref, ok := s.tree.Find(xproto.Window(ev.Drawable))
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil {
		return
	}
	if w.Has(window.FlagPixmapError) {
		// New content is the cue to retry a failed bind.
		w.Set(window.FlagPixmapStale)
		w.Clear(window.FlagPixmapError)
		s.updates = true
	}
	var r region.Rect
	if !w.EverDamaged {
		// The first report covers whatever the initial content is; use the
		// full extents rather than trusting the reported area.
		w.EverDamaged = true
		r = s.extents(w)
	} else {
		g := w.Geometry()
		r = region.FromXRect(ev.Area).Translate(int32(g.X), int32(g.Y))
	}
	// Content hidden behind solid windows repaints nothing.
	repair := region.New(r.Intersect(s.screen))
	repair.Subtract(&w.Ignore)
	s.damage.Add(&repair)
	// Acknowledge so the server reports the next batch.
	s.x.SubtractDamage(w.Damage)
}

func (s *Session) onShape(ev shape.NotifyEvent) {
	ref, ok := s.tree.Find(ev.AffectedWindow)
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil {
		return
	}
	w.BoundingShaped = ev.Shaped
	w.Set(window.FlagSizeStale)
	s.addDamage(s.extents(w))
	s.updates = true
}

func (s *Session) onScreenChange(ev randr.ScreenChangeNotifyEvent) {
	s.screen = region.Rect{X2: int32(ev.Width), Y2: int32(ev.Height)}
	s.damage.Clear()
	s.damage.AddRect(s.screen)
	s.updates = true
}
