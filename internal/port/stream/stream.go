package stream

import (
	"context"

	"github.com/google/uuid"

	"github.com/alanyang/notify-relay/internal/domain/connection"
)

//go:generate mockgen -destination=../../mocks/stream.go -package=mocks . Connector

// Connector is the consumer-facing side of the connection manager. Connect
// returns the live connection's id, dialing a new connection if needed.
type Connector interface {
	Connect(ctx context.Context) (uuid.UUID, error)
	State() connection.State
	ConnectionID() (uuid.UUID, bool)
}
