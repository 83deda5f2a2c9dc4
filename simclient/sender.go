package simclient

import (
	"context"

	"go.uber.org/zap"
)

// runSender drains the outbound queue into conn until ctx is cancelled, the
// queue is closed or a write fails. One sender exists per connection
// attempt and is never reused. started is closed once the loop is running.
func runSender(ctx context.Context, conn Conn, outbound <-chan Frame, started chan<- struct{}, m *Metrics, log *zap.SugaredLogger) {
	close(started)
	for {
		select {
		case <-ctx.Done():
			log.Debugw("Sender cancelled")
			return
		case f, ok := <-outbound:
			if !ok {
				log.Debugw("Outbound queue closed, sender exiting")
				return
			}
			if err := conn.WriteMessage(f.Type, f.Data); err != nil {
				// The read side notices the dead socket and drives the reconnect.
				log.Infow("Send failed, sender exiting", "kind", frameKind(f.Type), "error", err)
				return
			}
			m.framesSent.Inc()
		}
	}
}
