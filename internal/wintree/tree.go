// Package wintree mirrors the X server's window hierarchy.
//
// Ideally a compositor would only care about toplevel windows, but window
// policy can depend on properties set on any descendant of a toplevel, and
// the "client" window (the one with WM_STATE set) can gain or lose that
// property at any time. So every window the server knows about gets a node
// here, and the node carrying WM_STATE is tracked as the toplevel's client.
//
// Nodes live in an arena and are addressed by generation-checked Refs, so a
// handle held across a destroy reliably fails a liveness check instead of
// observing an unrelated window that reused the slot.
package wintree

import (
	"log/slog"

	"github.com/jezek/xgb/xproto"
)

type Tree struct {
	slots     []*node
	freeSlots []uint32
	byWindow  map[xproto.Window]Ref

	gen         Gen
	leaderEpoch uint64
	root        Ref

	changes []Change
}

func New() *Tree {
	return &Tree{
		byWindow:    make(map[xproto.Window]Ref),
		gen:         1,
		leaderEpoch: 1,
	}
}

// get resolves a Ref, panicking on a stale or reaped handle.
func (t *Tree) get(ref Ref) *node {
	if int(ref.slot) < len(t.slots) {
		if n := t.slots[ref.slot]; n != nil && n.id.Gen == ref.gen {
			return n
		}
	}
	bug("deref", TreeID{Gen: ref.gen})
	return nil
}

// Alive reports whether ref still resolves to a node (live or zombie).
func (t *Tree) Alive(ref Ref) bool {
	if ref.None() || int(ref.slot) >= len(t.slots) {
		return false
	}
	n := t.slots[ref.slot]
	return n != nil && n.id.Gen == ref.gen
}

// Find looks up the live node for a window ID. Zombies and detached nodes
// never satisfy lookup; only the current incarnation of an ID does.
func (t *Tree) Find(wid xproto.Window) (Ref, bool) {
	ref, ok := t.byWindow[wid]
	return ref, ok
}

// NewWindow creates an unattached, generation-stamped node for wid and makes
// it findable. Creating a second live node for the same ID is a logic error.
func (t *Tree) NewWindow(wid xproto.Window) Ref {
	if old, ok := t.byWindow[wid]; ok {
		bug("new_window over live node", t.get(old).id)
	}
	n := &node{
		id:      TreeID{Window: wid, Gen: t.gen},
		wmState: WMStateUnknown,
	}
	t.gen++

	var slot uint32
	if len(t.freeSlots) > 0 {
		slot = t.freeSlots[len(t.freeSlots)-1]
		t.freeSlots = t.freeSlots[:len(t.freeSlots)-1]
		t.slots[slot] = n
	} else {
		slot = uint32(len(t.slots))
		t.slots = append(t.slots, n)
	}
	ref := Ref{slot: slot, gen: n.id.Gen}
	n.inLookup = true
	t.byWindow[wid] = ref
	return ref
}

// Attach links child under parent at the top of the stacking order. A nil
// parent (NoneRef) makes child the tree's root, which is permitted exactly
// once. Attaching a toplevel enqueues a ToplevelNew change; attaching deeper
// refreshes the toplevel's client window.
func (t *Tree) Attach(child, parent Ref) {
	c := t.get(child)
	if c.attached || c.isZombie {
		bug("attach", c.id)
	}
	if parent.None() {
		if !t.root.None() {
			bug("second root", c.id)
		}
		t.root = child
		c.attached = true
		return
	}
	p := t.get(parent)
	if p.isZombie {
		bug("attach under zombie", p.id)
	}
	c.parent = parent
	c.attached = true
	p.children = append([]Ref{child}, p.children...)

	if parent == t.root {
		t.enqueueChange(Change{Kind: ChangeToplevelNew, Toplevel: c.id, TopRef: child})
	} else {
		t.refreshClient(t.ToplevelOf(child))
	}
}

// Detach removes ref and its whole subtree from the live hierarchy and from
// lookup. A detached toplevel with external referrers is kept as a zombie
// and returned; otherwise the subtree is freed and NoneRef is returned.
// Toplevel detachment enqueues a ToplevelKilled change either way.
func (t *Tree) Detach(ref Ref) Ref {
	n := t.get(ref)
	if n.isZombie || !n.attached {
		bug("detach", n.id)
	}
	if n.parent.None() {
		bug("detach root", n.id)
	}
	toplevel := t.ToplevelOf(ref)

	t.unlink(ref)
	t.walk(ref, func(m *node) {
		if m.inLookup {
			delete(t.byWindow, m.id.Window)
			m.inLookup = false
		}
		m.attached = false
	})

	if toplevel != ref {
		// Reparent-away below a toplevel: the client window may have left
		// with the subtree.
		t.refreshClient(toplevel)
		if n.refs > 0 {
			n.isZombie = true
			return ref
		}
		t.freeSubtree(ref)
		return NoneRef
	}

	if n.refs > 0 {
		n.isZombie = true
		t.enqueueChange(Change{Kind: ChangeToplevelKilled, Toplevel: n.id, TopRef: ref})
		return ref
	}
	id := n.id
	t.freeSubtree(ref)
	t.enqueueChange(Change{Kind: ChangeToplevelKilled, Toplevel: id})
	return NoneRef
}

// Destroy handles a DestroyNotify: children are destroyed first (the server
// should have destroyed them already, so finding any is reported), WM_STATE
// is withdrawn so client bookkeeping settles, then the node is detached.
// Returns the zombie handle, if one was produced.
func (t *Tree) Destroy(ref Ref) Ref {
	n := t.get(ref)
	if n.isZombie || !n.attached {
		bug("destroy", n.id)
	}
	if n.parent.None() {
		bug("destroy root", n.id)
	}
	for len(n.children) > 0 {
		child := n.children[0]
		slog.Error("Window destroyed while it still has children, expect malfunction",
			"window", n.id, "child", t.get(child).id)
		t.Destroy(child)
	}
	if n.wmState == WMStatePresent {
		t.SetWMState(ref, false)
	}
	return t.Detach(ref)
}

// MoveToAbove restacks ref directly above sibling. Both must share a parent.
func (t *Tree) MoveToAbove(ref, sibling Ref) {
	n := t.get(ref)
	s := t.get(sibling)
	if n.isZombie || s.isZombie {
		bug("move_to_above", n.id)
	}
	if n.parent != s.parent {
		bug("move_to_above across parents", n.id)
	}
	p := t.get(n.parent)
	from := indexOf(p.children, ref)
	to := indexOf(p.children, sibling)
	if from == to-1 {
		return // already directly above
	}
	p.children = removeAt(p.children, from)
	to = indexOf(p.children, sibling)
	p.children = insertAt(p.children, to, ref)
	if n.parent == t.root {
		t.enqueueChange(Change{Kind: ChangeRestacked})
	}
}

// MoveToEnd restacks ref to the top (or bottom) of its siblings.
func (t *Tree) MoveToEnd(ref Ref, toBottom bool) {
	n := t.get(ref)
	if n.isZombie {
		bug("move_to_end", n.id)
	}
	if n.parent.None() {
		bug("move root", n.id)
	}
	p := t.get(n.parent)
	i := indexOf(p.children, ref)
	if (i == 0 && !toBottom) || (i == len(p.children)-1 && toBottom) {
		return
	}
	p.children = removeAt(p.children, i)
	if toBottom {
		p.children = append(p.children, ref)
	} else {
		p.children = append([]Ref{ref}, p.children...)
	}
	if n.parent == t.root {
		t.enqueueChange(Change{Kind: ChangeRestacked})
	}
}

// SetWMState records whether the WM_STATE property is present on ref and
// updates the owning toplevel's client window accordingly.
func (t *Tree) SetWMState(ref Ref, present bool) {
	n := t.get(ref)
	if n.isZombie {
		bug("set_wm_state", n.id)
	}
	state := WMStateAbsent
	if present {
		state = WMStatePresent
	}
	if n.wmState == state {
		slog.Debug("WM_STATE unchanged", "window", n.id, "present", present)
		return
	}
	n.wmState = state
	if n.parent.None() {
		bug("set_wm_state on root", n.id)
	}

	toplevel := t.ToplevelOf(ref)
	if toplevel == ref {
		if present {
			slog.Debug("Setting WM_STATE on a toplevel window, weird", "window", n.id)
		}
		return
	}
	tl := t.get(toplevel)
	switch {
	case !present && tl.clientWindow == ref:
		newClient := t.findClient(toplevel)
		tl.clientWindow = newClient
		t.enqueueChange(Change{
			Kind:      ChangeClient,
			Toplevel:  tl.id,
			TopRef:    toplevel,
			OldClient: n.id,
			NewClient: t.idOf(newClient),
		})
	case present && tl.clientWindow.None():
		tl.clientWindow = ref
		t.enqueueChange(Change{
			Kind:      ChangeClient,
			Toplevel:  tl.id,
			TopRef:    toplevel,
			NewClient: n.id,
		})
	case present:
		// The toplevel already has a client window; we don't usurp it.
		slog.Debug("Toplevel already has a client window, ignoring the new one",
			"toplevel", tl.id, "client", t.get(tl.clientWindow).id, "ignored", n.id)
	}
}

// Retain pins ref so that detaching it produces a zombie instead of freeing
// the node. Every Retain must be paired with exactly one Release.
func (t *Tree) Retain(ref Ref) {
	t.get(ref).refs++
}

// Release drops one external reference. A detached node whose last reference
// is released is reaped along with its subtree, exactly once.
func (t *Tree) Release(ref Ref) {
	n := t.get(ref)
	n.refs--
	if n.refs < 0 {
		bug("release without retain", n.id)
	}
	if n.refs == 0 && !n.attached {
		t.freeSubtree(ref)
	}
}

// ToplevelOf walks up to the child-of-root ancestor of ref.
func (t *Tree) ToplevelOf(ref Ref) Ref {
	n := t.get(ref)
	if n.parent.None() {
		bug("toplevel_of root", n.id)
	}
	cur, top := ref, ref
	for {
		n := t.get(cur)
		if n.parent.None() {
			return top
		}
		top = cur
		cur = n.parent
	}
}

// ClientOf returns the client window of a toplevel, or NoneRef.
func (t *Tree) ClientOf(ref Ref) Ref {
	return t.get(ref).clientWindow
}

func (t *Tree) Root() Ref             { return t.root }
func (t *Tree) ID(ref Ref) TreeID     { return t.get(ref).id }
func (t *Tree) Parent(ref Ref) Ref    { return t.get(ref).parent }
func (t *Tree) IsZombie(ref Ref) bool { return t.get(ref).isZombie }

// Children returns the stacking order of ref's children, topmost first. The
// returned slice is owned by the tree; callers must not mutate it.
func (t *Tree) Children(ref Ref) []Ref {
	return t.get(ref).children
}

func (t *Tree) WMState(ref Ref) WMState { return t.get(ref).wmState }

func (t *Tree) Data(ref Ref) any       { return t.get(ref).data }
func (t *Tree) SetData(ref Ref, v any) { t.get(ref).data = v }

func (t *Tree) ReceivingEvents(ref Ref) bool       { return t.get(ref).receivingEvents }
func (t *Tree) SetReceivingEvents(ref Ref, v bool) { t.get(ref).receivingEvents = v }
func (t *Tree) TreeQueried(ref Ref) bool           { return t.get(ref).treeQueried }
func (t *Tree) SetTreeQueried(ref Ref, v bool)     { t.get(ref).treeQueried = v }

// Leader returns the raw leader window as last reported by the server.
func (t *Tree) Leader(ref Ref) xproto.Window { return t.get(ref).leader }

// SetLeader stores the raw leader and invalidates every cached resolved
// leader in the tree; resolution is redone lazily.
func (t *Tree) SetLeader(ref Ref, leader xproto.Window) {
	n := t.get(ref)
	if n.leader == leader {
		return
	}
	n.leader = leader
	t.leaderEpoch++
}

// LeaderFinal resolves the leader transitively: the leader of the leader,
// until the chain ends or cycles. Results are cached until any leader in the
// tree changes.
func (t *Tree) LeaderFinal(ref Ref) Ref {
	n := t.get(ref)
	if n.leaderEpoch == t.leaderEpoch {
		return n.leaderFinal
	}
	seen := map[Ref]struct{}{ref: {}}
	cur := ref
	for {
		leader := t.get(cur).leader
		if leader == 0 {
			break
		}
		next, ok := t.Find(leader)
		if !ok || next == cur {
			break
		}
		if _, cycle := seen[next]; cycle {
			break
		}
		seen[next] = struct{}{}
		cur = next
	}
	n.leaderFinal = cur
	n.leaderEpoch = t.leaderEpoch
	return cur
}

// Len reports the number of live (findable) nodes.
func (t *Tree) Len() int { return len(t.byWindow) }

// findClient scans the subtree in pre-order for the window with WM_STATE
// set. If the toplevel itself carries WM_STATE, it serves as its own client.
func (t *Tree) findClient(toplevel Ref) Ref {
	tl := t.get(toplevel)
	if tl.wmState == WMStatePresent {
		slog.Debug("Toplevel has WM_STATE set, weird; using itself as its client window",
			"window", tl.id)
		return toplevel
	}
	var found Ref
	var search func(ref Ref) bool
	search = func(ref Ref) bool {
		n := t.get(ref)
		if n.wmState == WMStatePresent {
			found = ref
			return true
		}
		for _, c := range n.children {
			if search(c) {
				return true
			}
		}
		return false
	}
	for _, c := range tl.children {
		if search(c) {
			return found
		}
	}
	return NoneRef
}

// refreshClient recomputes the client of a toplevel and enqueues a client
// change if it moved.
func (t *Tree) refreshClient(toplevel Ref) {
	tl := t.get(toplevel)
	newClient := t.findClient(toplevel)
	if newClient == tl.clientWindow {
		return
	}
	change := Change{
		Kind:      ChangeClient,
		Toplevel:  tl.id,
		TopRef:    toplevel,
		OldClient: t.idOf(tl.clientWindow),
		NewClient: t.idOf(newClient),
	}
	tl.clientWindow = newClient
	t.enqueueChange(change)
}

func (t *Tree) idOf(ref Ref) TreeID {
	if ref.None() {
		return NoneID
	}
	return t.get(ref).id
}

func (t *Tree) unlink(ref Ref) {
	n := t.get(ref)
	p := t.get(n.parent)
	p.children = removeAt(p.children, indexOf(p.children, ref))
}

// walk visits ref's subtree in pre-order.
func (t *Tree) walk(ref Ref, fn func(*node)) {
	n := t.get(ref)
	fn(n)
	for _, c := range n.children {
		t.walk(c, fn)
	}
}

func (t *Tree) freeSubtree(ref Ref) {
	n := t.get(ref)
	for _, c := range n.children {
		t.freeSubtree(c)
	}
	if n.inLookup {
		delete(t.byWindow, n.id.Window)
	}
	t.slots[ref.slot] = nil
	t.freeSlots = append(t.freeSlots, ref.slot)
}

func indexOf(s []Ref, ref Ref) int {
	for i, r := range s {
		if r == ref {
			return i
		}
	}
	bug("sibling index", TreeID{})
	return -1
}

func removeAt(s []Ref, i int) []Ref {
	return append(s[:i], s[i+1:]...)
}

func insertAt(s []Ref, i int, ref Ref) []Ref {
	s = append(s, NoneRef)
	copy(s[i+1:], s[i:])
	s[i] = ref
	return s
}
