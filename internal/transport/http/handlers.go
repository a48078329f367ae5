package http

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"tickertalk/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VoteRequest is the body for casting a vote
type VoteRequest struct {
	VoterID string `json:"voterId"`
	Option  int    `json:"option"`
}

// VoteResponse confirms a recorded vote
type VoteResponse struct {
	Option int         `json:"option"`
	Tally  map[int]int `json:"tally"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	FeedViewers      int `json:"feedViewers"`
	ChatViewers      int `json:"chatViewers"`
	MarketsDiscussed int `json:"marketsDiscussed"`
	TotalVotes       int `json:"totalVotes"`
}

// handleState handles GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.broadcaster.Current()
	if !ok {
		s.sendError(w, http.StatusServiceUnavailable, "SHOW_STARTING", "The show has not started yet")
		return
	}

	s.sendSuccess(w, snap)
}

// handleVote handles POST /api/vote. Voters without an explicit identity
// are deduplicated by client address, so a browser re-vote overwrites
// rather than stacks.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}

	voterID := req.VoterID
	if voterID == "" {
		voterID = clientIP(r)
	}

	if err := s.votes.SubmitVote(voterID, req.Option); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoRoundOpen):
			s.sendError(w, http.StatusConflict, "NO_ROUND_OPEN", "No voting round is open")
		case errors.Is(err, domain.ErrInvalidSlot):
			s.sendError(w, http.StatusBadRequest, "INVALID_OPTION", "Option must be 1 or 2")
		case errors.Is(err, domain.ErrMissingVoter):
			s.sendError(w, http.StatusBadRequest, "MISSING_VOTER", "Voter identity is required")
		default:
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	resp := &VoteResponse{Option: req.Option}
	if snap, ok := s.broadcaster.Current(); ok {
		resp.Tally = snap.VoteTally
	}

	s.sendSuccess(w, resp)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := &StatsResponse{
		FeedViewers: s.broadcaster.SubscriberCount(),
		ChatViewers: s.chatHub.ClientCount(),
	}

	if snap, ok := s.broadcaster.Current(); ok {
		stats.MarketsDiscussed = snap.MarketsDiscussed
		stats.TotalVotes = snap.TotalVotes
	}

	s.sendSuccess(w, stats)
}

// handleIndex serves the viewer page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	file, err := s.webFS.Open("index.html")
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", stat.ModTime(), file.(io.ReadSeeker))
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

// clientIP extracts the caller's address, honoring proxies.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
