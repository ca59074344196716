package window

import (
	"errors"
	"testing"

	"github.com/ItsNotGoodName/x-compd/internal/wintree"
)

func testWin() *Win {
	return New(wintree.NoneRef, wintree.TreeID{Window: 0x400001, Gen: 1}, Geometry{X: 10, Y: 20, Width: 640, Height: 480})
}

func mustApply(t *testing.T, w *Win, ev StateEvent, want State) {
	t.Helper()
	got, _, err := w.ApplyState(ev)
	if err != nil {
		t.Fatalf("apply %s in %s: %v", ev, w.State(), err)
	}
	if got != want {
		t.Fatalf("apply %s: state = %s, want %s", ev, got, want)
	}
}

func TestLifecycle(t *testing.T) {
	w := testWin()

	mustApply(t, w, EventMapResolved, StateMapping)
	mustApply(t, w, EventAnimationDone, StateMapped)
	mustApply(t, w, EventOpacityTarget, StateFading)
	mustApply(t, w, EventAnimationDone, StateMapped)
	mustApply(t, w, EventUnmap, StateUnmapping)
	mustApply(t, w, EventAnimationDone, StateUnmapped)

	// Second map-unmap cycle, torn down mid-fade this time.
	mustApply(t, w, EventMapResolved, StateMapping)
	mustApply(t, w, EventAnimationDone, StateMapped)
	mustApply(t, w, EventOpacityTarget, StateFading)
	mustApply(t, w, EventDestroy, StateDestroying)
	mustApply(t, w, EventAnimationDone, StateDestroyed)
}

func TestLifecycleTotality(t *testing.T) {
	states := []State{StateUnmapped, StateMapping, StateMapped, StateFading, StateUnmapping, StateDestroying, StateDestroyed}
	events := []StateEvent{EventMapResolved, EventOpacityTarget, EventUnmap, EventDestroy, EventAnimationDone}

	for _, s := range states {
		for _, ev := range events {
			w := testWin()
			w.state = s
			got, changed, err := w.ApplyState(ev)
			if err != nil {
				var ce *ContradictionError
				if !errors.As(err, &ce) {
					t.Errorf("state %s event %s: unexpected error type %T", s, ev, err)
				}
				if changed || got != s {
					t.Errorf("state %s event %s: contradiction must not mutate, got %s", s, ev, got)
				}
				continue
			}
			if changed != (got != s) {
				t.Errorf("state %s event %s: changed=%v but %s -> %s", s, ev, changed, s, got)
			}
		}
	}
}

func TestLifecycleContradictions(t *testing.T) {
	var ce *ContradictionError

	// Destroy under one identity happens at most once.
	w := testWin()
	w.state = StateDestroying
	if _, _, err := w.ApplyState(EventDestroy); !errors.As(err, &ce) {
		t.Fatalf("destroy in destroying: err = %v, want contradiction", err)
	}

	// An animation completion needs an animation in flight.
	w = testWin()
	if _, _, err := w.ApplyState(EventAnimationDone); !errors.As(err, &ce) {
		t.Fatalf("animation-done in unmapped: err = %v, want contradiction", err)
	}
	w.state = StateMapped
	if _, _, err := w.ApplyState(EventAnimationDone); !errors.As(err, &ce) {
		t.Fatalf("animation-done in mapped: err = %v, want contradiction", err)
	}
}

func TestLifecycleStaleNoise(t *testing.T) {
	// Unmap and map resolution arriving after destruction are tolerated.
	w := testWin()
	w.state = StateDestroying
	mustApply(t, w, EventUnmap, StateDestroying)
	mustApply(t, w, EventMapResolved, StateDestroying)

	w.state = StateDestroyed
	mustApply(t, w, EventOpacityTarget, StateDestroyed)
	mustApply(t, w, EventUnmap, StateDestroyed)
}

func TestWillNeverRender(t *testing.T) {
	w := testWin()
	if !w.WillNeverRender() {
		t.Fatal("fresh unmapped window should never render")
	}

	mustApply(t, w, EventMapResolved, StateMapping)
	mustApply(t, w, EventAnimationDone, StateMapped)
	if w.WillNeverRender() {
		t.Fatal("mapped window may render even before first damage")
	}

	w.EverDamaged = true
	mustApply(t, w, EventDestroy, StateDestroying)
	if w.WillNeverRender() {
		t.Fatal("damaged window has pixels to fade")
	}

	// Popup that was created and destroyed before producing a frame.
	w = testWin()
	mustApply(t, w, EventDestroy, StateDestroying)
	if !w.WillNeverRender() {
		t.Fatal("never-damaged destroying window should short-circuit")
	}
}

func TestGeometryDoubleBuffer(t *testing.T) {
	w := testWin()
	if w.GeometryDirty() {
		t.Fatal("fresh window should start reconciled")
	}

	w.UpdatePending(Geometry{X: 30, Y: 20, Width: 640, Height: 480})
	if !w.Has(FlagPositionStale) || w.Has(FlagSizeStale) {
		t.Fatalf("move should mark position only, flags = %s", w.Flags())
	}
	if !w.GeometryDirty() {
		t.Fatal("pending should diverge after move")
	}
	if got := w.Geometry(); got.X != 10 {
		t.Fatalf("committed geometry must not move before reconcile, got x=%d", got.X)
	}

	w.UpdatePending(Geometry{X: 30, Y: 20, Width: 800, Height: 600})
	if !w.Has(FlagSizeStale) {
		t.Fatal("resize should mark size stale")
	}

	w.Clear(FlagPositionStale | FlagSizeStale)
	if got := w.CommitGeometry(); got.Width != 800 || got.X != 30 {
		t.Fatalf("commit = %+v", got)
	}
	if w.GeometryDirty() {
		t.Fatal("commit should reconcile")
	}
}

func TestFlags(t *testing.T) {
	w := testWin()
	w.Set(FlagClientStale)
	w.Set(FlagPropertyStale | FlagFactorChanged)
	if !w.HasAny(FlagClientStale | FlagMapped) {
		t.Fatal("HasAny should see client-stale")
	}
	if w.Has(FlagClientStale | FlagMapped) {
		t.Fatal("Has requires all bits")
	}
	w.Clear(FlagClientStale)
	if w.Has(FlagClientStale) || !w.Has(FlagPropertyStale) {
		t.Fatalf("clear is per-bit, flags = %s", w.Flags())
	}
	if got := (FlagPixmapStale | FlagMapped).String(); got != "pixmap-stale|mapped" {
		t.Fatalf("String() = %q", got)
	}
}

func TestStaleProps(t *testing.T) {
	var p StaleProps
	if p.Any() {
		t.Fatal("zero value should be empty")
	}

	p.Mark(39)  // WM_NAME
	p.Mark(312) // some interned atom past the first word
	if !p.Any() {
		t.Fatal("marked set should be non-empty")
	}

	if !p.FetchAndClear(39) {
		t.Fatal("first fetch should observe the mark")
	}
	if p.FetchAndClear(39) {
		t.Fatal("second fetch in the same cycle must see nothing")
	}
	if !p.FetchAndClear(312) {
		t.Fatal("high atoms should survive growth")
	}
	if p.Any() {
		t.Fatal("all marks drained")
	}

	p.Mark(7)
	p.ClearAll()
	if p.FetchAndClear(7) {
		t.Fatal("ClearAll should drop pending marks")
	}
}
