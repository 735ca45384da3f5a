package notify

import (
	"context"
	"time"

	"autominer/internal/logbus"
)

// Relay forwards every Notable bus message to n until ctx ends or the bus
// closes. It returns once its subscription is gone.
func Relay(ctx context.Context, bus *logbus.Bus, n Notifier) {
	ch, cancel := bus.Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			nt, ok := msg.Data.(Notable)
			if !ok {
				continue
			}
			evt, ok := nt.Notification()
			if !ok {
				continue
			}
			if evt.At == 0 {
				evt.At = msg.Time
			}
			if evt.At == 0 {
				evt.At = time.Now().UnixMilli()
			}
			n.NotifyEvent(ctx, evt)
		}
	}
}
