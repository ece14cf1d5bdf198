package progress_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile-backend/internal/progress"
)

func dialHub(t *testing.T, hub *progress.Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub := progress.NewHub(nil)
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(progress.Event{
		MatchID:    "m-1",
		Kind:       "exact",
		Amount:     "-150.00",
		Confidence: 1.0,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event progress.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "m-1", event.MatchID)
	assert.Equal(t, "exact", event.Kind)
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := progress.NewHub(nil)

	upgrader := websocket.Upgrader{}
	var serverConn *websocket.Conn
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = conn
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Unregister(serverConn)
	assert.Equal(t, 0, hub.ClientCount())

	// Publishing to an empty hub is a no-op, not a panic.
	hub.Publish(progress.Event{MatchID: "m-2"})
}

func TestHub_PublishWithNoClients(t *testing.T) {
	hub := progress.NewHub(nil)
	hub.Publish(progress.Event{MatchID: "lonely"})
	assert.Equal(t, 0, hub.ClientCount())
}
