package comp

import (
	"github.com/ItsNotGoodName/x-compd/internal/window"
	"github.com/ItsNotGoodName/x-compd/internal/wintree"
	"github.com/google/uuid"
)

// EventWindowManaged is published when a toplevel becomes managed.
type EventWindowManaged struct {
	ID wintree.TreeID
}

// EventWindowUnmanaged is published when a managed toplevel is gone for
// good, after any exit animation finished.
type EventWindowUnmanaged struct {
	ID wintree.TreeID
}

// EventStateTransition is published on every lifecycle state change. When
// the destination state is animated, Animation carries the token the
// effects layer must hand back to CompleteAnimation.
type EventStateTransition struct {
	ID        wintree.TreeID
	From, To  window.State
	Animation uuid.UUID
}

// EventRestacked is published when the toplevel stacking order changed and
// the next frame must re-sort.
type EventRestacked struct{}
