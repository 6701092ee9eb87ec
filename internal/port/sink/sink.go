package sink

import (
	"context"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

//go:generate mockgen -destination=../../mocks/sink.go -package=mocks . Sink

// Sink renders a notification. Calls are fire-and-forget: a sink reports its
// own failures through logging and never back to the relay.
type Sink interface {
	Notify(ctx context.Context, req notification.Request)
}
