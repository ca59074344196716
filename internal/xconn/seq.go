package xconn

// SeqTracker widens the 16-bit sequence numbers carried by X events into a
// monotonically increasing 64-bit count. The wire protocol truncates the
// server's request counter to 16 bits, so ordering comparisons between
// events and replies need the wraps counted back in. Events arrive in server
// order on one goroutine, so no locking.
type SeqTracker struct {
	last uint64
}

// Observe widens seq against the last observed value. A 16-bit value that
// moved "backwards" means the counter wrapped at least once since the
// previous event.
func (t *SeqTracker) Observe(seq uint16) uint64 {
	full := t.last&^0xffff | uint64(seq)
	if full < t.last {
		full += 1 << 16
	}
	t.last = full
	return full
}

// Last returns the most recently observed full sequence number.
func (t *SeqTracker) Last() uint64 { return t.last }
