// Package http exposes the show over REST and serves the viewer page.
package http

import (
	"bufio"
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tickertalk/internal/broadcast"
	"tickertalk/internal/config"
	"tickertalk/internal/transport/ws"
)

// VoteSubmitter accepts votes arriving over HTTP.
type VoteSubmitter interface {
	SubmitVote(voterID string, slot int) error
}

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	broadcaster *broadcast.Broadcaster
	votes       VoteSubmitter
	chatHub     *ws.ChatHub
	config      *config.Config
	logger      *slog.Logger
	webFS       fs.FS
	startedAt   time.Time
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	broadcaster *broadcast.Broadcaster,
	votes VoteSubmitter,
	chatHub *ws.ChatHub,
	logger *slog.Logger,
	webFS embed.FS,
) *Server {
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		logger.Error("failed to get web subdirectory", "error", err)
	}

	s := &Server{
		broadcaster: broadcaster,
		votes:       votes,
		chatHub:     chatHub,
		config:      cfg,
		logger:      logger,
		webFS:       webContent,
		startedAt:   time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// API routes
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/vote", s.handleVote)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// WebSocket
	wsHandler := ws.NewHandler(s.broadcaster, s.chatHub, s.logger)
	mux.HandleFunc("GET /ws/feed", wsHandler.ServeFeed)
	mux.HandleFunc("GET /ws/chat", wsHandler.ServeChat)

	// Viewer page
	mux.HandleFunc("GET /", s.handleIndex)
}

// middleware wraps the handler with logging and other middleware
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
