package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickertalk/internal/domain"
	"tickertalk/internal/show"
)

// VoteSubmitter accepts structured votes from chat viewers.
type VoteSubmitter interface {
	SubmitVote(voterID string, slot int) error
}

// ChatHub tracks connected chat viewers, forwards their messages to the
// show's chat sink, and fans host announcements back out to them.
type ChatHub struct {
	sink   chan<- show.ChatMessage
	votes  VoteSubmitter
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*ChatClient]struct{}
}

// NewChatHub creates a hub feeding the given chat sink.
func NewChatHub(sink chan<- show.ChatMessage, votes VoteSubmitter, logger *slog.Logger) *ChatHub {
	return &ChatHub{
		sink:    sink,
		votes:   votes,
		logger:  logger,
		clients: make(map[*ChatClient]struct{}),
	}
}

// Announce implements the show's announcer: every connected viewer gets
// the message.
func (h *ChatHub) Announce(text string) {
	msg := NewServerMessage(MsgAnnouncement, &AnnouncementPayload{Text: text})
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("announcement marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.enqueue(data)
	}
}

// ClientCount returns the number of connected chat viewers.
func (h *ChatHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ChatHub) register(c *ChatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *ChatHub) unregister(c *ChatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// forward hands a raw chat line to the show. The sink is bounded; under
// chat floods excess lines are dropped rather than stalling the pump.
func (h *ChatHub) forward(voterID, text string) {
	msg := show.ChatMessage{VoterID: voterID, Text: text, At: time.Now()}
	select {
	case h.sink <- msg:
	default:
		h.logger.Warn("chat sink full, message dropped", "voterId", voterID)
	}
}

// ChatClient represents one chat viewer's WebSocket connection
type ChatClient struct {
	conn    *websocket.Conn
	hub     *ChatHub
	voterID string
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// NewChatClient creates a chat client for the given voter identity.
func NewChatClient(conn *websocket.Conn, hub *ChatHub, voterID string, logger *slog.Logger) *ChatClient {
	return &ChatClient{
		conn:    conn,
		hub:     hub,
		voterID: voterID,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// VoterID returns the identity votes from this connection count under.
func (c *ChatClient) VoterID() string {
	return c.voterID
}

// enqueue buffers an outbound frame, dropping it if the client is slow.
func (c *ChatClient) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, message dropped", "voterId", c.voterID)
	}
}

func (c *ChatClient) sendMessage(msg *ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *ChatClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *ChatClient) Run() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *ChatClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("chat read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *ChatClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes an incoming message from the client
func (c *ChatClient) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgChat:
		c.handleChat(msg.Payload)
	case MsgVote:
		c.handleVote(msg.Payload)
	case MsgPing:
		c.sendMessage(NewServerMessage(MsgPong, nil))
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleChat forwards a raw chat line; the show's vote grammar decides
// whether it counts as a ballot.
func (c *ChatClient) handleChat(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	text, ok := payloadMap["text"].(string)
	if !ok || text == "" {
		c.sendError(ErrCodeInvalidMessage, "Text is required")
		return
	}

	c.hub.forward(c.voterID, text)
}

// handleVote records a structured vote and confirms or rejects it.
func (c *ChatClient) handleVote(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	slotValue, ok := payloadMap["slot"].(float64)
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Slot is required")
		return
	}

	err := c.hub.votes.SubmitVote(c.voterID, int(slotValue))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoRoundOpen):
			c.sendError(ErrCodeNoRoundOpen, "No voting round is open")
		case errors.Is(err, domain.ErrInvalidSlot):
			c.sendError(ErrCodeInvalidSlot, "Vote 1 or 2")
		default:
			c.sendError(ErrCodeInternalError, err.Error())
		}
		return
	}

	c.sendMessage(NewServerMessage(MsgVoteAccepted, &VotePayload{Slot: int(slotValue)}))
}

// sendError sends an error message to the client
func (c *ChatClient) sendError(code, message string) {
	c.sendMessage(NewServerMessage(MsgError, &ErrorPayload{Code: code, Message: message}))
}
