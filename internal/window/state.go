package window

import "fmt"

// State is the lifecycle state of a managed window.
//
// The progression is driven from two places: the event bottom half feeds raw
// notifications (unmap, destroy) and the top half feeds resolved work (the
// pending map) and animation completions reported by the effects layer.
type State uint8

const (
	StateUnmapped State = iota
	StateMapping
	StateMapped
	StateFading
	StateUnmapping
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnmapped:
		return "unmapped"
	case StateMapping:
		return "mapping"
	case StateMapped:
		return "mapped"
	case StateFading:
		return "fading"
	case StateUnmapping:
		return "unmapping"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether no further protocol-driven updates are legal.
func (s State) Terminal() bool {
	return s == StateDestroying || s == StateDestroyed
}

// StateEvent is an input to the lifecycle state machine.
type StateEvent uint8

const (
	// EventMapResolved: the top half resolved the pending map.
	EventMapResolved StateEvent = iota
	// EventOpacityTarget: the opacity target of a mapped window changed.
	EventOpacityTarget
	// EventUnmap: the server unmapped the window.
	EventUnmap
	// EventDestroy: the server destroyed the window.
	EventDestroy
	// EventAnimationDone: the effects layer finished the animation that was
	// blocking the current transition.
	EventAnimationDone
)

func (e StateEvent) String() string {
	switch e {
	case EventMapResolved:
		return "map-resolved"
	case EventOpacityTarget:
		return "opacity-target"
	case EventUnmap:
		return "unmap"
	case EventDestroy:
		return "destroy"
	case EventAnimationDone:
		return "animation-done"
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// ContradictionError reports a (state, event) pair that indicates a logic
// defect rather than tolerable server noise.
type ContradictionError struct {
	State State
	Event StateEvent
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("window: event %s contradicts state %s", e.Event, e.State)
}

// ApplyState advances the lifecycle state machine. It returns the new state
// and whether it changed. Pairs not in the transition table are either
// no-ops (stale server noise, e.g. anything after DESTROYING is entered) or
// contradictions (e.g. an animation completion with no animation pending),
// never undefined.
func (w *Win) ApplyState(ev StateEvent) (State, bool, error) {
	old := w.state
	switch ev {
	case EventMapResolved:
		switch old {
		case StateUnmapped:
			w.state = StateMapping
		case StateDestroying, StateDestroyed:
			// stale noise
		default:
			return old, false, &ContradictionError{State: old, Event: ev}
		}
	case EventOpacityTarget:
		switch old {
		case StateMapped:
			w.state = StateFading
		case StateFading:
			// retarget mid-fade, stay
		default:
			// Opacity changes for windows that aren't visible resolve when
			// they next map.
		}
	case EventUnmap:
		switch old {
		case StateMapped, StateFading:
			w.state = StateUnmapping
		default:
			// Unmap of a window we never showed, or noise after destroy.
		}
	case EventDestroy:
		switch old {
		case StateDestroying, StateDestroyed:
			// X can't destroy a window twice under one identity+generation.
			return old, false, &ContradictionError{State: old, Event: ev}
		default:
			w.state = StateDestroying
		}
	case EventAnimationDone:
		switch old {
		case StateMapping:
			w.state = StateMapped
		case StateFading:
			w.state = StateMapped
		case StateUnmapping:
			w.state = StateUnmapped
		case StateDestroying:
			w.state = StateDestroyed
		default:
			return old, false, &ContradictionError{State: old, Event: ev}
		}
	}
	return w.state, w.state != old, nil
}

// State returns the current lifecycle state.
func (w *Win) State() State { return w.state }

// WillNeverRender reports that the window has never been damaged and is not
// visible, so the render layer has nothing to fade: exit transitions may
// skip their animation and complete immediately.
func (w *Win) WillNeverRender() bool {
	return !w.EverDamaged && w.state != StateMapped
}
