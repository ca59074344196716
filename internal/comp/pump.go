package comp

import (
	"context"
	"log/slog"

	"github.com/ItsNotGoodName/x-compd/internal/xconn"
)

// ReceiveEvents pumps X events into eventC until the connection dies.
// X errors are not fatal here: requests for windows that died mid-flight
// bounce constantly and mean nothing. Their sequence numbers still feed the
// full-sequence tracker so an error can be attributed to its request.
func ReceiveEvents(ctx context.Context, conn *xconn.Conn, eventC chan<- any) {
	defer close(eventC)
	slog := slog.With("func", "comp.ReceiveEvents")

	for {
		ev, err := conn.X.WaitForEvent()
		if ev == nil && err == nil {
			slog.Debug("exit: connection closed")
			return
		}

		if err != nil {
			slog.Debug("x error", "error", err, "seq", conn.ObserveError(err))
			continue
		}

		select {
		case <-ctx.Done():
			return
		case eventC <- ev:
		}
	}
}
