package sink

import (
	"context"

	"github.com/alanyang/notify-relay/internal/domain/notification"
	portsink "github.com/alanyang/notify-relay/internal/port/sink"
)

// Multi fans a notification out to every sink in order.
type Multi []portsink.Sink

func (m Multi) Notify(ctx context.Context, req notification.Request) {
	for _, s := range m {
		s.Notify(ctx, req)
	}
}
