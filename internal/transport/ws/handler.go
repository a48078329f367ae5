package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tickertalk/internal/broadcast"
)

// Handler upgrades HTTP requests onto the feed and chat sockets.
type Handler struct {
	broadcaster *broadcast.Broadcaster
	hub         *ChatHub
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(broadcaster *broadcast.Broadcaster, hub *ChatHub, logger *slog.Logger) *Handler {
	return &Handler{
		broadcaster: broadcaster,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				// In production, you should validate the origin
				return true
			},
		},
		logger: logger,
	}
}

// ServeFeed handles upgrade requests for the one-way state feed.
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.logger.Info("feed viewer connected", "remoteAddr", r.RemoteAddr)
	NewFeedClient(conn, h.broadcaster, h.logger).Run()
}

// ServeChat handles upgrade requests for the chat socket. A stable voter
// identity can be carried in the voterId query param; otherwise one is
// minted for the connection.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	voterID := r.URL.Query().Get("voterId")
	if voterID == "" {
		voterID = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.logger.Info("chat viewer connected", "voterId", voterID, "remoteAddr", r.RemoteAddr)
	NewChatClient(conn, h.hub, voterID, h.logger).Run()
}
