package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tickertalk/internal/broadcast"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// FeedClient streams show snapshots to one viewer. The feed is one-way:
// reads are only serviced to keep the connection's pong loop alive.
type FeedClient struct {
	conn        *websocket.Conn
	broadcaster *broadcast.Broadcaster
	sub         *broadcast.Subscription
	logger      *slog.Logger
}

// NewFeedClient creates a feed client over an upgraded connection.
func NewFeedClient(conn *websocket.Conn, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *FeedClient {
	return &FeedClient{
		conn:        conn,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Run subscribes to the broadcaster and pumps snapshots until the viewer
// disconnects or the broadcaster closes.
func (c *FeedClient) Run() {
	c.sub = c.broadcaster.Subscribe()
	go c.writePump()
	c.readPump()
}

// readPump discards inbound frames; its job is pong handling and noticing
// the close.
func (c *FeedClient) readPump() {
	defer func() {
		c.broadcaster.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("feed read error", "error", err)
			}
			return
		}
	}
}

// writePump forwards snapshots from the subscription to the socket.
func (c *FeedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(NewServerMessage(MsgState, snap))
			if err != nil {
				c.logger.Error("snapshot marshal failed", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
