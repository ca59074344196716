package wintree

import (
	"testing"
)

func mustDequeue(t *testing.T, tree *Tree) Change {
	t.Helper()
	c, ok := tree.DequeueChange()
	if !ok {
		t.Fatal("expected a queued change")
	}
	return c
}

func wantNoChange(t *testing.T, tree *Tree) {
	t.Helper()
	if c, ok := tree.DequeueChange(); ok {
		t.Fatalf("expected empty change queue, got %v for %v", c.Kind, c.Toplevel)
	}
}

func TestTreeManipulation(t *testing.T) {
	tree := New()

	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)
	if got, ok := tree.Find(1); !ok || got != root {
		t.Fatal("root not findable")
	}
	wantNoChange(t, tree)

	node2 := tree.NewWindow(2)
	tree.Attach(node2, root)
	if got, _ := tree.Find(2); got != node2 {
		t.Fatal("node2 not findable")
	}
	if tree.Parent(node2) != root {
		t.Fatal("node2 parent should be root")
	}

	c := mustDequeue(t, tree)
	if c.Kind != ChangeToplevelNew || c.Toplevel.Window != 2 {
		t.Fatalf("want toplevel-new for 2, got %v for %v", c.Kind, c.Toplevel)
	}

	node3 := tree.NewWindow(3)
	tree.Attach(node3, root)
	c = mustDequeue(t, tree)
	if c.Kind != ChangeToplevelNew || c.Toplevel.Window != 3 {
		t.Fatalf("want toplevel-new for 3, got %v for %v", c.Kind, c.Toplevel)
	}

	// Reparent node2 under node3: the old toplevel incarnation dies and the
	// window is re-imported under its new parent.
	tree.Detach(node2)
	c = mustDequeue(t, tree)
	if c.Kind != ChangeToplevelKilled || c.Toplevel.Window != 2 {
		t.Fatalf("want toplevel-killed for 2, got %v for %v", c.Kind, c.Toplevel)
	}
	node2 = tree.NewWindow(2)
	tree.Attach(node2, node3)
	if tree.Parent(node2) != node3 {
		t.Fatal("node2 should be under node3")
	}
	if kids := tree.Children(node3); len(kids) != 1 || kids[0] != node2 {
		t.Fatal("node2 should be node3's topmost child")
	}
	wantNoChange(t, tree)

	tree.SetWMState(node2, true)
	c = mustDequeue(t, tree)
	if c.Kind != ChangeClient || c.Toplevel.Window != 3 {
		t.Fatalf("want client change for 3, got %v for %v", c.Kind, c.Toplevel)
	}
	if !c.OldClient.None() || c.NewClient.Window != 2 {
		t.Fatalf("want client none -> 2, got %v -> %v", c.OldClient, c.NewClient)
	}

	node4 := tree.NewWindow(4)
	tree.Attach(node4, node3)
	wantNoChange(t, tree)

	// node3 already has node2 as its client; the new candidate is ignored.
	tree.SetWMState(node4, true)
	wantNoChange(t, tree)

	tree.Destroy(node2)
	c = mustDequeue(t, tree)
	if c.Kind != ChangeClient || c.Toplevel.Window != 3 {
		t.Fatalf("want client change for 3, got %v", c.Kind)
	}
	if c.OldClient.Window != 2 || c.NewClient.Window != 4 {
		t.Fatalf("want client 2 -> 4, got %v -> %v", c.OldClient, c.NewClient)
	}

	// Window ID reuse: destroy 4 and recreate it under node3.
	tree.Destroy(node4)
	node4 = tree.NewWindow(4)
	tree.Attach(node4, node3)
	tree.SetWMState(node4, true)

	c = mustDequeue(t, tree)
	if c.Kind != ChangeClient || c.Toplevel.Window != 3 {
		t.Fatalf("want client change for 3, got %v", c.Kind)
	}
	if c.OldClient.Window != 4 || c.NewClient.Window != 4 {
		t.Fatalf("want client 4 -> 4, got %v -> %v", c.OldClient, c.NewClient)
	}
	if c.OldClient.Gen == c.NewClient.Gen {
		t.Fatal("reused ID must carry a different generation")
	}

	// A toplevel created and destroyed before anyone observed it leaves no
	// trace in the queue.
	node5 := tree.NewWindow(5)
	tree.Attach(node5, root)
	tree.Destroy(node5)
	wantNoChange(t, tree)
}

func TestIdentityUniquenessOnReuse(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)

	w1 := tree.NewWindow(7)
	tree.Attach(w1, root)
	gen1 := tree.ID(w1).Gen

	// Keep the managed-window reference alive across the destroy.
	tree.Retain(w1)
	zombie := tree.Destroy(w1)
	if zombie.None() {
		t.Fatal("destroying a referenced toplevel must produce a zombie")
	}
	if !tree.IsZombie(zombie) {
		t.Fatal("zombie handle should report zombie")
	}
	if _, ok := tree.Find(7); ok {
		t.Fatal("detached node must not satisfy lookup")
	}

	w2 := tree.NewWindow(7)
	tree.Attach(w2, root)
	got, ok := tree.Find(7)
	if !ok || got != w2 {
		t.Fatal("find must return the new incarnation")
	}
	if tree.ID(w2).Gen == gen1 {
		t.Fatal("new incarnation must have a different generation")
	}

	// The zombie stays independently reachable through its retained handle.
	if !tree.Alive(zombie) {
		t.Fatal("zombie should remain alive while referenced")
	}
	if tree.ID(zombie).Gen != gen1 {
		t.Fatal("zombie keeps its original generation")
	}
	tree.Release(zombie)
	if tree.Alive(zombie) {
		t.Fatal("zombie must be reaped when the last reference is released")
	}
}

func TestZombieContainment(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)

	// No referrers: freed outright, no zombie.
	w := tree.NewWindow(2)
	tree.Attach(w, root)
	// Drain the new change so the kill is observable.
	mustDequeue(t, tree)
	if z := tree.Destroy(w); !z.None() {
		t.Fatal("unreferenced toplevel must not leave a zombie")
	}
	if tree.Alive(w) {
		t.Fatal("unreferenced toplevel must be freed on destroy")
	}
	c := mustDequeue(t, tree)
	if c.Kind != ChangeToplevelKilled || !c.TopRef.None() {
		t.Fatalf("want toplevel-killed with no zombie, got %v", c)
	}

	// Two referrers: retained until the last one releases, reaped once.
	w = tree.NewWindow(3)
	tree.Attach(w, root)
	mustDequeue(t, tree)
	tree.Retain(w)
	tree.Retain(w)
	z := tree.Destroy(w)
	if z.None() {
		t.Fatal("referenced toplevel must leave a zombie")
	}
	tree.Release(z)
	if !tree.Alive(z) {
		t.Fatal("zombie reaped while still referenced")
	}
	tree.Release(z)
	if tree.Alive(z) {
		t.Fatal("zombie must be reaped at zero references")
	}

	// Releasing a reaped handle is a detected invariant violation.
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("stale handle must fail the liveness check")
			}
		}()
		tree.Release(z)
	}()
}

func TestRestackChanges(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)
	a := tree.NewWindow(2)
	tree.Attach(a, root)
	b := tree.NewWindow(3)
	tree.Attach(b, root)
	c := tree.NewWindow(4)
	tree.Attach(c, root)
	for tree.HasChanges() {
		tree.DequeueChange()
	}

	// Children are topmost-first: attach order 2,3,4 stacks 4,3,2.
	kids := tree.Children(root)
	if kids[0] != c || kids[1] != b || kids[2] != a {
		t.Fatal("unexpected initial stacking order")
	}

	tree.MoveToEnd(a, false)
	kids = tree.Children(root)
	if kids[0] != a || kids[1] != c || kids[2] != b {
		t.Fatal("move to top failed")
	}
	ch := mustDequeue(t, tree)
	if ch.Kind != ChangeRestacked {
		t.Fatalf("want restacked, got %v", ch.Kind)
	}

	// Only one restacked change is kept.
	tree.MoveToEnd(a, true)
	tree.MoveToAbove(a, b)
	ch = mustDequeue(t, tree)
	if ch.Kind != ChangeRestacked {
		t.Fatalf("want restacked, got %v", ch.Kind)
	}
	wantNoChange(t, tree)

	kids = tree.Children(root)
	if kids[0] != c || kids[1] != a || kids[2] != b {
		t.Fatal("move above failed")
	}

	// Restacking a no-op emits nothing.
	tree.MoveToAbove(a, b)
	wantNoChange(t, tree)
	tree.MoveToEnd(c, false)
	wantNoChange(t, tree)
}

func TestLeaderResolution(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)
	a := tree.NewWindow(10)
	tree.Attach(a, root)
	b := tree.NewWindow(11)
	tree.Attach(b, root)
	c := tree.NewWindow(12)
	tree.Attach(c, root)

	// a -> b -> c resolves transitively.
	tree.SetLeader(a, 11)
	tree.SetLeader(b, 12)
	if got := tree.LeaderFinal(a); got != c {
		t.Fatal("leader chain should resolve to the end of the chain")
	}

	// Changing any leader invalidates cached resolutions.
	tree.SetLeader(b, 0)
	if got := tree.LeaderFinal(a); got != b {
		t.Fatal("leader resolution must be recomputed after a leader change")
	}

	// Cycles terminate.
	tree.SetLeader(b, 10)
	_ = tree.LeaderFinal(a)
}

func TestDetachRefreshesClient(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)
	top := tree.NewWindow(2)
	tree.Attach(top, root)
	frame := tree.NewWindow(3)
	tree.Attach(frame, top)
	client := tree.NewWindow(4)
	tree.Attach(client, frame)
	for tree.HasChanges() {
		tree.DequeueChange()
	}

	tree.SetWMState(client, true)
	ch := mustDequeue(t, tree)
	if ch.Kind != ChangeClient || ch.NewClient.Window != 4 {
		t.Fatalf("want client change to 4, got %v", ch)
	}
	if tree.ClientOf(top) != client {
		t.Fatal("client window not recorded on toplevel")
	}

	// Detaching the frame takes the client with it.
	tree.Detach(frame)
	ch = mustDequeue(t, tree)
	if ch.Kind != ChangeClient || ch.OldClient.Window != 4 || !ch.NewClient.None() {
		t.Fatalf("want client change 4 -> none, got %v", ch)
	}
	if !tree.ClientOf(top).None() {
		t.Fatal("toplevel should have lost its client")
	}
	if _, ok := tree.Find(4); ok {
		t.Fatal("detached subtree nodes must not satisfy lookup")
	}
}

func TestKilledCancelsQueuedNewKeepsZombie(t *testing.T) {
	tree := New()
	root := tree.NewWindow(1)
	tree.Attach(root, NoneRef)

	// Retain before the new-toplevel change is drained, then destroy. This
	// is the normal shape for a collaborator that grabs its handle as soon
	// as the window appears.
	w := tree.NewWindow(7)
	tree.Attach(w, root)
	tree.Retain(w)

	zombie := tree.Destroy(w)
	if zombie.None() || !tree.IsZombie(zombie) {
		t.Fatal("retained toplevel must survive destruction as a zombie")
	}

	// New and killed cancel out; the consumer sees neither.
	for {
		ch, ok := tree.DequeueChange()
		if !ok {
			break
		}
		if ch.Kind == ChangeToplevelNew || ch.Kind == ChangeToplevelKilled {
			t.Fatalf("change %v should have been coalesced away", ch.Kind)
		}
	}

	if !tree.Alive(zombie) {
		t.Fatal("zombie must stay alive while referenced")
	}
	tree.Release(zombie)
	if tree.Alive(zombie) {
		t.Fatal("released zombie must be reaped")
	}
}
