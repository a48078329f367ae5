// Package speech delivers host lines to the broadcast room over a
// websocket. The room side owns voice synthesis and playback; this side
// only addresses text to a speaker identity.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout = 10 * time.Second
	writeWait   = 10 * time.Second
)

// speakMessage is the wire format the room consumes.
type speakMessage struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	SentAt  int64  `json:"sent_at"`
}

// RoomClient is a websocket client for the speech room. The connection is
// dialed lazily on first send and redialed on the send after a failure, so
// a room outage never blocks the show loop beyond one failed delivery.
type RoomClient struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRoomClient creates a client for the room at url. No connection is
// made until the first Send.
func NewRoomClient(url string, logger *slog.Logger) *RoomClient {
	return &RoomClient{url: url, logger: logger}
}

// Send delivers one line to the named speaker. A write failure tears the
// connection down and reports the error; the next Send redials.
func (c *RoomClient) Send(ctx context.Context, speakerID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return fmt.Errorf("dial speech room: %w", err)
		}
	}

	msg := speakMessage{
		Type:    "speak",
		Speaker: speakerID,
		Text:    text,
		SentAt:  time.Now().Unix(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode speak message: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.teardownLocked()
		return fmt.Errorf("write speak message: %w", err)
	}

	return nil
}

func (c *RoomClient) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return err
	}

	c.conn = conn
	c.logger.Info("connected to speech room", "url", c.url)
	return nil
}

func (c *RoomClient) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the connection down if one is open.
func (c *RoomClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// NullTransport logs lines instead of delivering them. Used when no room
// URL is configured, so the show runs headless.
type NullTransport struct {
	logger *slog.Logger
}

// NewNullTransport creates a log-only transport.
func NewNullTransport(logger *slog.Logger) *NullTransport {
	return &NullTransport{logger: logger}
}

// Send logs the line and succeeds.
func (n *NullTransport) Send(_ context.Context, speakerID, text string) error {
	n.logger.Info("speech line", "speaker", speakerID, "text", text)
	return nil
}
