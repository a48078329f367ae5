package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roomServer accepts websocket clients and collects their messages.
type roomServer struct {
	srv      *httptest.Server
	received chan speakMessage
}

func newRoomServer(t *testing.T) *roomServer {
	t.Helper()

	rs := &roomServer{received: make(chan speakMessage, 16)}
	upgrader := websocket.Upgrader{}

	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg speakMessage
			if json.Unmarshal(payload, &msg) == nil {
				rs.received <- msg
			}
		}
	}))
	t.Cleanup(rs.srv.Close)

	return rs
}

func (rs *roomServer) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func TestRoomClientSend(t *testing.T) {
	rs := newRoomServer(t)
	client := NewRoomClient(rs.wsURL(), slog.Default())
	defer client.Close()

	require.NoError(t, client.Send(context.Background(), "host-max", "buy buy buy"))

	msg := <-rs.received
	assert.Equal(t, "speak", msg.Type)
	assert.Equal(t, "host-max", msg.Speaker)
	assert.Equal(t, "buy buy buy", msg.Text)
	assert.NotZero(t, msg.SentAt)
}

func TestRoomClientRedialsAfterFailure(t *testing.T) {
	rs := newRoomServer(t)
	client := NewRoomClient(rs.wsURL(), slog.Default())
	defer client.Close()

	require.NoError(t, client.Send(context.Background(), "host-max", "first"))
	<-rs.received

	// Kill the connection from under the client; the failed send tears it
	// down and the one after lands on a fresh dial.
	client.mu.Lock()
	client.conn.Close()
	client.mu.Unlock()

	require.Error(t, client.Send(context.Background(), "host-ben", "lost"))

	require.NoError(t, client.Send(context.Background(), "host-ben", "recovered"))
	msg := <-rs.received
	assert.Equal(t, "recovered", msg.Text)
}

func TestRoomClientDialFailure(t *testing.T) {
	client := NewRoomClient("ws://127.0.0.1:1/room", slog.Default())
	err := client.Send(context.Background(), "host-max", "anyone there?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial speech room")
}

func TestNullTransportAlwaysSucceeds(t *testing.T) {
	n := NewNullTransport(slog.Default())
	assert.NoError(t, n.Send(context.Background(), "host-ben", "quiet mode"))
}
