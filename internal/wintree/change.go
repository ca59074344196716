package wintree

import "log/slog"

// ChangeKind tags a structural delta emitted by tree mutations.
type ChangeKind uint8

const (
	// ChangeClient: the client window of a toplevel changed.
	ChangeClient ChangeKind = iota + 1
	// ChangeToplevelNew: a new toplevel appeared.
	ChangeToplevelNew
	// ChangeToplevelKilled: a toplevel was destroyed or reparented away.
	ChangeToplevelKilled
	// ChangeRestacked: the stacking order of toplevels changed.
	ChangeRestacked
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeClient:
		return "client"
	case ChangeToplevelNew:
		return "toplevel-new"
	case ChangeToplevelKilled:
		return "toplevel-killed"
	case ChangeRestacked:
		return "restacked"
	}
	return "none"
}

// Change is one entry of the tree's change queue. The queue decouples tree
// topology changes from the managed-window bookkeeping that reacts to them,
// so that layer never needs to re-scan the whole tree.
type Change struct {
	Kind     ChangeKind
	Toplevel TreeID
	// The node the change refers to: the live toplevel for ChangeToplevelNew
	// and ChangeClient, the zombie for ChangeToplevelKilled (NoneRef when the
	// toplevel had no referrers and was freed outright).
	TopRef Ref
	// Old and new client windows for ChangeClient. A zero TreeID means the
	// toplevel had, or has, no client window.
	OldClient, NewClient TreeID
}

// enqueueChange appends a change, coalescing per these rules:
//
//   - A ToplevelKilled cancels a queued ToplevelNew for the same toplevel,
//     along with every change for it in between: the window came and went
//     without anyone observing it.
//   - A client change merges into a queued client change for the same
//     toplevel, and the pair disappears if it nets out to no change.
//   - Only one Restacked entry is ever kept, and none is needed while a
//     ToplevelNew or ToplevelKilled is queued (consumers re-read stacking
//     order for those anyway).
//
// A ToplevelNew never cancels a queued ToplevelKilled: the new toplevel is a
// different window reusing the ID, and the old one must still go through its
// destruction path. Changes are not commutative.
func (t *Tree) enqueueChange(c Change) {
	switch c.Kind {
	case ChangeToplevelKilled:
		found := false
		kept := t.changes[:0]
		for _, q := range t.changes {
			if q.Toplevel != c.Toplevel {
				kept = append(kept, q)
				continue
			}
			if q.Kind == ChangeToplevelNew {
				found = true
				continue
			}
			if found {
				continue
			}
			if q.Kind == ChangeClient {
				// Point queued client changes at the zombie; the live
				// toplevel node may be gone before the queue drains.
				q.TopRef = c.TopRef
			}
			kept = append(kept, q)
		}
		t.changes = kept
		if found {
			// The toplevel came and went before the queue was drained, so
			// the consumer never saw it and both changes net out. A handle
			// retained in the meantime pins the node as a zombie; releasing
			// it reaps the subtree. Without referrers the detach path has
			// already freed the node and TopRef is none.
			return
		}
	case ChangeClient:
		for i := range t.changes {
			q := &t.changes[i]
			if q.Toplevel != c.Toplevel || q.Kind != ChangeClient {
				continue
			}
			if q.NewClient != c.OldClient {
				slog.Warn("Inconsistent client change, possible bug",
					"toplevel", c.Toplevel, "queued-new", q.NewClient, "change-old", c.OldClient)
			}
			q.NewClient = c.NewClient
			if q.OldClient == q.NewClient {
				t.changes = append(t.changes[:i], t.changes[i+1:]...)
			}
			return
		}
	case ChangeRestacked:
		for _, q := range t.changes {
			if q.Kind == ChangeRestacked || q.Kind == ChangeToplevelNew ||
				q.Kind == ChangeToplevelKilled {
				return
			}
		}
	}
	t.changes = append(t.changes, c)
}

// DequeueChange pops the oldest change, in FIFO order.
func (t *Tree) DequeueChange() (Change, bool) {
	if len(t.changes) == 0 {
		return Change{}, false
	}
	c := t.changes[0]
	t.changes = t.changes[1:]
	return c, true
}

// HasChanges reports whether the change queue is non-empty.
func (t *Tree) HasChanges() bool { return len(t.changes) > 0 }
