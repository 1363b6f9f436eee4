package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/pkg/contracts/domain"
)

// mockConnection records writes and blocks reads until closed.
type mockConnection struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newMockConnection() *mockConnection {
	return &mockConnection{closed: make(chan struct{})}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageType == gorilla.TextMessage {
		m.written = append(m.written, append([]byte(nil), data...))
	}
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	<-m.closed
	return 0, nil, errors.New("closed")
}

func (m *mockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetReadLimit(int64)                {}
func (m *mockConnection) SetPongHandler(func(string) error) {}
func (m *mockConnection) RemoteAddr() string                { return "127.0.0.1:5000" }

func (m *mockConnection) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHubBroadcastsValidationLogs(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	defer hub.Stop()

	conns := []*mockConnection{newMockConnection(), newMockConnection()}
	for _, c := range conns {
		Serve(hub, c, "", discardLogger())
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.PublishLog(domain.ValidationLog{ID: "log-1", LicenseKey: "LF-AAAA", Status: domain.LogSuccess})

	for _, c := range conns {
		require.Eventually(t, func() bool { return len(c.messages()) == 2 }, time.Second, 5*time.Millisecond)
		msgs := c.messages()
		assert.Equal(t, TypeConnection, decode(t, msgs[0])["type"])

		got := decode(t, msgs[1])
		assert.Equal(t, TypeValidationLog, got["type"])
		data := got["data"].(map[string]any)
		assert.Equal(t, "LF-AAAA", data["licenseKey"])
		assert.NotEmpty(t, got["timestamp"])
	}
	assert.EqualValues(t, 2, hub.Stats()["messages_sent"])
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	defer hub.Stop()

	conn := newMockConnection()
	Serve(hub, conn, "trace-1", discardLogger())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPublishNeverBlocks(t *testing.T) {
	// The loop is not running, so the queue fills and further messages drop.
	hub := NewHub(discardLogger(), nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.PublishLog(domain.ValidationLog{ID: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishLog blocked")
	}
	assert.EqualValues(t, 10, hub.Stats()["messages_dropped"])
}

func TestStopClosesClients(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()

	conn := newMockConnection()
	Serve(hub, conn, "", discardLogger())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("connection not closed after Stop")
	}
	hub.Stop()
}

func TestHandlerStreamsOverRealSocket(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler(hub, nil, discardLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeConnection, decode(t, first)["type"])

	hub.PublishBotLog(domain.BotLog{ID: "bot-1", Command: "redeem"})
	_, second, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeBotLog, decode(t, second)["type"])
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	defer hub.Stop()

	srv := httptest.NewServer(NewHandler(hub, []string{"https://panel.example"}, discardLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := gorilla.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 403, resp.StatusCode)
}
