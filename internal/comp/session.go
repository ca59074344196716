// Package comp runs the compositing session: the event loop feeding the
// window tree and pending-work flags, and the reconciliation pass that
// resolves the flags against the server under a grab.
package comp

import (
	"context"
	"log/slog"

	"github.com/ItsNotGoodName/x-compd/internal/bus"
	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/internal/region"
	"github.com/ItsNotGoodName/x-compd/internal/rules"
	"github.com/ItsNotGoodName/x-compd/internal/window"
	"github.com/ItsNotGoodName/x-compd/internal/wintree"
	"github.com/ItsNotGoodName/x-compd/internal/xconn"
	"github.com/google/uuid"
	"github.com/jezek/xgb/xproto"
)

type animDone struct {
	ID    wintree.TreeID
	Token uuid.UUID
}

// Session owns the window tree and every managed window. All state is
// confined to the Serve goroutine; the only outside entry points are the
// event channel and CompleteAnimation.
type Session struct {
	x     Querier
	atoms xconn.Atoms
	cfg   config.Config
	rules rules.Matcher
	tree  *wintree.Tree

	rootWID   xproto.Window
	selection xproto.Window
	overlay   xproto.Window
	screen    region.Rect

	// wins indexes managed windows, zombies included, for animation
	// completions and inspection.
	wins map[wintree.TreeID]wintree.Ref

	damage     region.Region
	restacked  bool
	updates    bool
	focusStale bool
	focus      wintree.TreeID

	eventC <-chan any
	animC  chan animDone
	snapC  chan snapshotReq
	treeC  chan treeReq
}

type Options struct {
	Root      xproto.Window
	Selection xproto.Window
	Overlay   xproto.Window
	Width     uint16
	Height    uint16
	Atoms     xconn.Atoms
	Config    config.Config
	Rules     rules.Matcher
	Events    <-chan any
}

func NewSession(x Querier, opts Options) *Session {
	s := &Session{
		x:         x,
		atoms:     opts.Atoms,
		cfg:       opts.Config,
		rules:     opts.Rules,
		tree:      wintree.New(),
		rootWID:   opts.Root,
		selection: opts.Selection,
		overlay:   opts.Overlay,
		screen:    region.Rect{X2: int32(opts.Width), Y2: int32(opts.Height)},
		wins:      make(map[wintree.TreeID]wintree.Ref),
		eventC:    opts.Events,
		animC:     make(chan animDone, 64),
		snapC:     make(chan snapshotReq),
		treeC:     make(chan treeReq),
		updates:   true,
	}

	// The root starts unqueried; the first reconciliation imports the
	// whole existing window population.
	root := s.tree.NewWindow(opts.Root)
	s.tree.Attach(root, wintree.NoneRef)
	return s
}

func (s *Session) String() string { return "comp.Session" }

// Serve processes events until the channel closes or the context ends.
// Reconciliation runs whenever the event channel is drained and work is
// pending, so a burst of events is absorbed before we grab the server.
func (s *Session) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.eventC:
			if !ok {
				return nil
			}
			if err := s.HandleEvent(ev); err != nil {
				return err
			}
		case d := <-s.animC:
			s.completeAnimation(d)
		case req := <-s.snapC:
			s.snapshot(req)
		case req := <-s.treeC:
			s.treeSnapshot(req)
		default:
			if s.updates || s.tree.HasChanges() {
				s.Refresh()
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-s.eventC:
				if !ok {
					return nil
				}
				if err := s.HandleEvent(ev); err != nil {
					return err
				}
			case d := <-s.animC:
				s.completeAnimation(d)
			case req := <-s.snapC:
				s.snapshot(req)
			case req := <-s.treeC:
				s.treeSnapshot(req)
			}
		}
	}
}

// CompleteAnimation reports that the animation identified by token
// finished. Called by the effects layer from any goroutine.
func (s *Session) CompleteAnimation(id wintree.TreeID, token uuid.UUID) {
	s.animC <- animDone{ID: id, Token: token}
}

func (s *Session) completeAnimation(d animDone) {
	ref, ok := s.wins[d.ID]
	if !ok {
		return
	}
	w := s.win(ref)
	if w == nil || w.AnimationToken != d.Token || d.Token == uuid.Nil {
		// Superseded animation; its completion means nothing now.
		return
	}
	w.AnimationToken = uuid.Nil
	s.transition(w, window.EventAnimationDone)
}

// win returns the managed window hanging off a live node, nil for
// unmanaged nodes.
func (s *Session) win(ref wintree.Ref) *window.Win {
	w, _ := s.tree.Data(ref).(*window.Win)
	return w
}

// toplevelWin maps any known window ID to the managed window of its
// toplevel.
func (s *Session) toplevelWin(wid xproto.Window) *window.Win {
	ref, ok := s.tree.Find(wid)
	if !ok {
		return nil
	}
	return s.win(s.tree.ToplevelOf(ref))
}

// transition drives the lifecycle state machine, allocating an animation
// token when the new state animates and completing instantly when it does
// not. Contradictions are logged and dropped; they indicate stale input,
// not corrupted state.
func (s *Session) transition(w *window.Win, ev window.StateEvent) {
	for {
		old := w.State()
		st, changed, err := w.ApplyState(ev)
		if err != nil {
			slog.Error("lifecycle contradiction", "window", w.ID, "state", old, "error", err)
			return
		}
		if !changed {
			return
		}

		token := uuid.Nil
		if s.animates(w, st) {
			token = uuid.New()
		}
		w.AnimationToken = token
		bus.Publish(EventStateTransition{ID: w.ID, From: old, To: st, Animation: token})

		if token != uuid.Nil {
			return
		}
		switch st {
		case window.StateDestroyed:
			s.finalize(w)
			return
		case window.StateUnmapped:
			s.releasePixmap(w)
			w.Clear(window.FlagPixmapStale | window.FlagPixmapError)
			return
		case window.StateMapped:
			return
		default:
			// Entered an animated state without an animation; complete it
			// right away.
			ev = window.EventAnimationDone
		}
	}
}

// animates decides whether entering st is animated for this window.
func (s *Session) animates(w *window.Win, st window.State) bool {
	if !s.cfg.Animations.Enabled {
		return false
	}
	switch st {
	case window.StateMapping:
		return s.cfg.Animations.MapMS > 0
	case window.StateFading:
		return s.cfg.Animations.FadeMS > 0
	case window.StateUnmapping:
		return s.cfg.Animations.UnmapMS > 0 && !w.WillNeverRender()
	case window.StateDestroying:
		return s.cfg.Animations.DestroyMS > 0 && !w.WillNeverRender()
	}
	return false
}

// finalize releases everything a destroyed window held. The tree reference
// taken at manage time goes last; that reaps the zombie.
func (s *Session) finalize(w *window.Win) {
	ref, ok := s.wins[w.ID]
	if !ok {
		return
	}
	if w.Damage != 0 {
		s.x.DestroyDamage(w.Damage)
		w.Damage = 0
	}
	s.releasePixmap(w)
	s.addDamage(s.extents(w))
	delete(s.wins, w.ID)
	bus.Publish(EventWindowUnmanaged{ID: w.ID})
	s.tree.Release(ref)
}

func (s *Session) releasePixmap(w *window.Win) {
	if w.Pixmap != 0 {
		s.x.FreePixmap(w.Pixmap)
		w.Pixmap = 0
	}
}

// extents is the on-screen rectangle of the committed geometry, borders
// included.
func (s *Session) extents(w *window.Win) region.Rect {
	g := w.Geometry()
	b := int32(g.BorderWidth)
	return region.Rect{
		X1: int32(g.X) - b,
		Y1: int32(g.Y) - b,
		X2: int32(g.X) + int32(g.Width) + b,
		Y2: int32(g.Y) + int32(g.Height) + b,
	}
}

func (s *Session) pendingExtents(w *window.Win) region.Rect {
	g := w.PendingGeometry()
	b := int32(g.BorderWidth)
	return region.Rect{
		X1: int32(g.X) - b,
		Y1: int32(g.Y) - b,
		X2: int32(g.X) + int32(g.Width) + b,
		Y2: int32(g.Y) + int32(g.Height) + b,
	}
}

func (s *Session) addDamage(r region.Rect) {
	s.damage.AddRect(r.Intersect(s.screen))
}

// Damage returns and clears the accumulated screen damage. The render
// layer calls this once per frame.
func (s *Session) Damage() region.Region {
	out := s.damage
	s.damage = region.Region{}
	return out
}

// WinSnapshot is a read-only copy of one managed window for inspection.
type WinSnapshot struct {
	ID       wintree.TreeID  `json:"id"`
	Client   wintree.TreeID  `json:"client"`
	State    string          `json:"state"`
	Zombie   bool            `json:"zombie"`
	Flags    string          `json:"flags"`
	Mode     string          `json:"mode"`
	Geometry window.Geometry `json:"geometry"`
	Pending  window.Geometry `json:"pending_geometry"`
	Name     string          `json:"name"`
	Class    string          `json:"class"`
	Instance string          `json:"instance"`
	Role     string          `json:"role"`
	Type     string          `json:"type"`
	Focused  bool            `json:"focused"`
	Leader   wintree.TreeID  `json:"leader"`
	Policy   window.Policy   `json:"policy"`
}

type snapshotReq struct {
	resp chan []WinSnapshot
}

// Snapshot returns a copy of every managed window, zombies included. Safe
// from any goroutine; the Serve loop fills the request between events.
func (s *Session) Snapshot(ctx context.Context) ([]WinSnapshot, error) {
	req := snapshotReq{resp: make(chan []WinSnapshot, 1)}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s.snapC <- req:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-req.resp:
		return out, nil
	}
}

// TreeSnapshot is a read-only copy of one tree node and its children, in
// stacking order, topmost first.
type TreeSnapshot struct {
	ID       wintree.TreeID `json:"id"`
	Managed  bool           `json:"managed,omitempty"`
	Children []TreeSnapshot `json:"children,omitempty"`
}

type treeReq struct {
	resp chan TreeSnapshot
}

// Tree returns a copy of the window tree rooted at the root window. Safe
// from any goroutine.
func (s *Session) Tree(ctx context.Context) (TreeSnapshot, error) {
	req := treeReq{resp: make(chan TreeSnapshot, 1)}
	select {
	case <-ctx.Done():
		return TreeSnapshot{}, ctx.Err()
	case s.treeC <- req:
	}
	select {
	case <-ctx.Done():
		return TreeSnapshot{}, ctx.Err()
	case out := <-req.resp:
		return out, nil
	}
}

func (s *Session) treeSnapshot(req treeReq) {
	var copyNode func(ref wintree.Ref) TreeSnapshot
	copyNode = func(ref wintree.Ref) TreeSnapshot {
		n := TreeSnapshot{
			ID:      s.tree.ID(ref),
			Managed: s.win(ref) != nil,
		}
		for _, c := range s.tree.Children(ref) {
			n.Children = append(n.Children, copyNode(c))
		}
		return n
	}
	req.resp <- copyNode(s.tree.Root())
}

func (s *Session) snapshot(req snapshotReq) {
	out := make([]WinSnapshot, 0, len(s.wins))
	for _, ref := range s.wins {
		w := s.win(ref)
		if w == nil {
			continue
		}
		out = append(out, WinSnapshot{
			ID:       w.ID,
			Client:   w.Client,
			State:    w.State().String(),
			Zombie:   s.tree.IsZombie(ref),
			Flags:    w.Flags().String(),
			Mode:     w.Mode.String(),
			Geometry: w.Geometry(),
			Pending:  w.PendingGeometry(),
			Name:     w.Name,
			Class:    w.ClassGeneral,
			Instance: w.ClassInstance,
			Role:     w.Role,
			Type:     w.WindowType.String(),
			Focused:  w.Focused,
			Leader:   s.tree.ID(s.tree.LeaderFinal(ref)),
			Policy:   w.Policy,
		})
	}
	req.resp <- out
}
