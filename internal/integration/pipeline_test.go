package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/notify-relay/internal/adapter/stream"
	"github.com/alanyang/notify-relay/internal/config"
	"github.com/alanyang/notify-relay/internal/domain/connection"
	"github.com/alanyang/notify-relay/internal/wire"
)

// ── test harness ──────────────────────────────────────────────────────────────

// backend stands in for the upstream notification service.
type backend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != stream.Path || r.URL.Query().Get("client_id") == "" {
			http.NotFound(w, r)
			return
		}
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) connCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *backend) send(t *testing.T, frames ...string) {
	t.Helper()
	b.mu.Lock()
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}
}

func (b *backend) drop() {
	b.mu.Lock()
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	conn.Close()
}

type uiMessage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type harness struct {
	backend *backend
	app     *wire.App
	api     *httptest.Server
	ui      *websocket.Conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := newBackend(t)

	cfg := config.Default()
	cfg.API.BaseURL = b.srv.URL
	cfg.Flush.Strategy = config.StrategyTimer
	cfg.Flush.FallbackMS = 20
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	app, err := wire.Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	app.Start(ctx)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, app.Shutdown(shutdownCtx))
	})
	require.Eventually(t, func() bool { return b.connCount() == 1 }, time.Second, 5*time.Millisecond)

	api := httptest.NewServer(app.Server.Handler)
	t.Cleanup(api.Close)

	ui, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(api.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ui.Close() })
	require.Eventually(t, func() bool { return app.Hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	return &harness{backend: b, app: app, api: api, ui: ui}
}

func (h *harness) next(t *testing.T) uiMessage {
	t.Helper()
	require.NoError(t, h.ui.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := h.ui.ReadMessage()
	require.NoError(t, err)
	var msg uiMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// marker is a frame that always surfaces. Reading it proves every frame sent
// before it has been processed.
func marker(name string) string {
	return `{"type":"ruleCreated","data":{"name":"` + name + `"}}`
}

func (h *harness) expectMarker(t *testing.T, name string) {
	t.Helper()
	msg := h.next(t)
	assert.Equal(t, "Rule created", msg.Title)
	assert.Equal(t, `"`+name+`" has been created.`, msg.Description)
}

func (h *harness) request(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, h.api.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestPipeline_DuplicateExecutionsNotifyOnce(t *testing.T) {
	h := newHarness(t)

	h.backend.send(t,
		`{"type":"ruleExecuted","data":{"id":1,"name":"Night mode","result":"ok"}}`,
		`{"type":"ruleExecuted","data":{"id":1,"name":"Night mode","result":"ok"}}`,
		`{"type":"heartbeat"}`,
		`{"type":"notification", broken`,
		marker("after-dupes"),
	)

	msg := h.next(t)
	assert.Equal(t, "Rule executed: Night mode", msg.Title)
	assert.Equal(t, "success", msg.Severity)
	h.expectMarker(t, "after-dupes")

	snap := h.app.Metrics.Snapshot()
	assert.Equal(t, uint64(5), snap.FramesReceived)
	assert.Equal(t, uint64(1), snap.DuplicatesSuppressed)
	assert.Equal(t, uint64(2), snap.FramesDropped)
}

func TestPipeline_ExecutionNotificationsGatedOnRulesView(t *testing.T) {
	h := newHarness(t)
	execution := `{"type":"notification","data":{"event_type":"rule_execution","execution_id":"e-1","title":"Night mode","content":"Lights dimmed","outcome":"success"}}`

	h.backend.send(t, execution, marker("while-away"))
	h.expectMarker(t, "while-away")

	resp := h.request(t, http.MethodPut, "/api/location", `{"path":"/rules/12"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The gated drop left the key unrecorded, so redelivery still notifies.
	h.backend.send(t, execution, execution, marker("on-rules"))
	msg := h.next(t)
	assert.Equal(t, "Night mode", msg.Title)
	assert.Equal(t, "Lights dimmed", msg.Description)
	h.expectMarker(t, "on-rules")
}

func TestPipeline_ReconnectGetsNewIdentityAndKeepsLedger(t *testing.T) {
	h := newHarness(t)

	first, ok := h.app.Stream.ConnectionID()
	require.True(t, ok)

	h.backend.send(t, `{"type":"ruleExecuted","data":{"id":7,"result":"failed"}}`)
	msg := h.next(t)
	assert.Equal(t, "error", msg.Severity)

	h.backend.drop()
	require.Eventually(t, func() bool {
		return h.app.Stream.State() == connection.StateClosed
	}, time.Second, 5*time.Millisecond)

	// Nothing reconnects on its own.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.backend.connCount())

	resp := h.request(t, http.MethodPost, "/api/connection", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return h.backend.connCount() == 2 }, time.Second, 5*time.Millisecond)

	second, ok := h.app.Stream.ConnectionID()
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	h.backend.send(t,
		`{"type":"ruleExecuted","data":{"id":7,"result":"failed"}}`,
		marker("after-reconnect"),
	)
	h.expectMarker(t, "after-reconnect")
}

func TestPipeline_HealthReportsConnection(t *testing.T) {
	h := newHarness(t)
	id, ok := h.app.Stream.ConnectionID()
	require.True(t, ok)

	resp := h.request(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Connection struct {
			State string `json:"state"`
			ID    string `json:"id"`
		} `json:"connection"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "open", body.Connection.State)
	assert.Equal(t, id.String(), body.Connection.ID)
}
