package transport_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/notify-relay/internal/adapter/memory"
	"github.com/alanyang/notify-relay/internal/adapter/metrics"
	"github.com/alanyang/notify-relay/internal/domain/connection"
	"github.com/alanyang/notify-relay/internal/mocks"
	"github.com/alanyang/notify-relay/internal/transport"
	"github.com/alanyang/notify-relay/internal/transport/ws"
)

func newRouter(t *testing.T) (http.Handler, *mocks.MockConnector) {
	t.Helper()
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockConnector(ctrl)
	r := transport.NewRouter(
		connector,
		memory.NewLocation("/"),
		metrics.NewCollector("notify-relay", nil),
		ws.NewHub(connector, nil),
	)
	return r, connector
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodOptions, "/api/location", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestRouter_RoutesHealth(t *testing.T) {
	r, connector := newRouter(t)
	connector.EXPECT().State().Return(connection.StateClosed)
	connector.EXPECT().ConnectionID().Return(uuid.Nil, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_NoisyPathsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r, connector := newRouter(t)
	connector.EXPECT().Connect(gomock.Any()).Return(uuid.New(), nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/location", nil),
		httptest.NewRequest(http.MethodPost, "/api/connection", nil),
	} {
		if req.Method == http.MethodPost {
			connector.EXPECT().State().Return(connection.StateOpen)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	out := buf.String()
	assert.NotContains(t, out, "path=/api/location")
	assert.Contains(t, out, "path=/api/connection")
}
