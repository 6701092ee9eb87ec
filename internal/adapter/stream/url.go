package stream

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Path is where the backend serves the notification stream.
const Path = "/api/v1/ws/notifications"

// URL derives the stream endpoint from the REST base URL. The websocket scheme
// mirrors the transport security of the base: https becomes wss, http becomes ws.
func URL(base string, clientID uuid.UUID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}

	u.Path = Path
	u.RawPath = ""
	u.User = nil
	u.Fragment = ""
	u.RawQuery = url.Values{"client_id": {clientID.String()}}.Encode()
	return u.String(), nil
}
