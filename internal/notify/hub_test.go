package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_BroadcastsMessages(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dialHub(t, hub)

	require.NoError(t, hub.Send(context.Background(), "trade opened"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "trade opened", msg.Text)
}

func TestHub_UnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dialHub(t, hub)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RejectsDisallowedOrigin(t *testing.T) {
	hub := NewHub(nil, func(origin string) bool { return origin == "https://ok.example" })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, _, err := websocket.DefaultDialer.Dial(url, header)
	assert.Error(t, err)
	assert.Zero(t, hub.ClientCount())
}
