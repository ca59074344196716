package wintree

import (
	"encoding/json"
	"fmt"

	"github.com/jezek/xgb/xproto"
)

// Gen is a monotonically increasing counter stamped on every node created in
// a tree. The X server recycles window IDs, so an ID alone is not enough to
// identify a window; the generation disambiguates reuse.
type Gen uint64

// TreeID uniquely identifies a window for the entire lifetime of a session.
type TreeID struct {
	Window xproto.Window
	Gen    Gen
}

// NoneID is the zero TreeID, standing in for "no window".
var NoneID = TreeID{}

func (id TreeID) None() bool {
	return id == NoneID
}

func (id TreeID) String() string {
	return fmt.Sprintf("%#010x.%d", uint32(id.Window), uint64(id.Gen))
}

func (id TreeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// Ref is a generation-checked handle into a tree's node arena. A Ref held
// after its node has been reaped fails the liveness check instead of
// aliasing whatever reuses the slot.
type Ref struct {
	slot uint32
	gen  Gen
}

// NoneRef is the zero Ref.
var NoneRef = Ref{}

func (r Ref) None() bool {
	return r == NoneRef
}

// WMState is the tri-state answer to "does this window have WM_STATE set".
// It starts out unknown because the property can only be confirmed with a
// round trip, which is deferred to import completion.
type WMState uint8

const (
	WMStateUnknown WMState = iota
	WMStateAbsent
	WMStatePresent
)

type node struct {
	id     TreeID
	parent Ref
	// Stacking order among siblings, front = topmost.
	children []Ref

	// The client window. Only a toplevel can have one.
	clientWindow Ref

	// Raw leader window as reported by the server, and the transitively
	// resolved leader, recomputed lazily when the cache epoch moves.
	leader      xproto.Window
	leaderFinal Ref
	leaderEpoch uint64

	wmState WMState
	// A zombie is a toplevel that is gone on the X server side but kept on
	// our side until its last external referrer releases it.
	isZombie bool
	// Whether our event mask was successfully installed on this window.
	receivingEvents bool
	// Whether the initial child enumeration for this window has completed.
	treeQueried bool

	// External reference count. A detached node is retained while >0.
	refs int32
	// Arbitrary payload attached by the managed-window layer.
	data any

	attached bool
	inLookup bool
}

// InvalidNodeStateError reports an operation on a node that can no longer
// legally receive it (detached, zombie, or reaped). These are programming
// errors, surfaced as panics: the protocol guarantees a window cannot be
// resurrected under the same identity and generation, so continuing would
// corrupt the tree.
type InvalidNodeStateError struct {
	Op string
	ID TreeID
}

func (e *InvalidNodeStateError) Error() string {
	return fmt.Sprintf("wintree: %s on invalid node %s", e.Op, e.ID)
}

func bug(op string, id TreeID) {
	panic(&InvalidNodeStateError{Op: op, ID: id})
}
