package xconn

import "testing"

func TestSeqTracker(t *testing.T) {
	var tr SeqTracker

	if got := tr.Observe(1); got != 1 {
		t.Fatalf("Observe(1) = %d", got)
	}
	if got := tr.Observe(1); got != 1 {
		t.Fatalf("repeated sequence should not advance, got %d", got)
	}
	if got := tr.Observe(0xffff); got != 0xffff {
		t.Fatalf("Observe(0xffff) = %d", got)
	}

	// Wrap: low 16 bits go backwards.
	if got := tr.Observe(3); got != 0x10003 {
		t.Fatalf("after wrap = %#x, want 0x10003", got)
	}
	if got := tr.Last(); got != 0x10003 {
		t.Fatalf("Last = %#x", got)
	}

	// Second wrap.
	tr.Observe(0xfff0)
	if got := tr.Observe(0x0010); got != 0x20010 {
		t.Fatalf("second wrap = %#x, want 0x20010", got)
	}
}

type seqError struct{ seq uint16 }

func (e seqError) SequenceId() uint16 { return e.seq }

func (e seqError) BadId() uint32 { return 0 }

func (e seqError) Error() string { return "test error" }

func TestObserveErrorWidens(t *testing.T) {
	c := &Conn{}
	c.Seq.Observe(0xfffe)

	// An error arriving after the 16-bit counter wrapped must land in the
	// next epoch, not before the request that caused it.
	if got := c.ObserveError(seqError{seq: 2}); got != 0x10002 {
		t.Fatalf("ObserveError = %#x, want 0x10002", got)
	}
}
