package window

import "github.com/jezek/xgb/xproto"

// StaleProps is a growable bitset keyed by atom ID, recording which X
// properties changed since the last reconciliation. The top half fetches
// each stale atom at most once per cycle.
type StaleProps struct {
	words []uint64
}

func (s *StaleProps) Mark(atom xproto.Atom) {
	word := int(atom / 64)
	for len(s.words) <= word {
		s.words = append(s.words, 0)
	}
	s.words[word] |= 1 << (atom % 64)
}

// FetchAndClear reports whether atom was stale and clears its bit, so a
// property is resolved at most once per pass.
func (s *StaleProps) FetchAndClear(atom xproto.Atom) bool {
	word := int(atom / 64)
	if word >= len(s.words) {
		return false
	}
	bit := uint64(1) << (atom % 64)
	stale := s.words[word]&bit != 0
	s.words[word] &^= bit
	return stale
}

func (s *StaleProps) Any() bool {
	for _, w := range s.words {
		if w != 0 {
			return true
		}
	}
	return false
}

func (s *StaleProps) ClearAll() {
	for i := range s.words {
		s.words[i] = 0
	}
}
