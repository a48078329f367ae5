package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickertalk/internal/broadcast"
	"tickertalk/internal/domain"
	"tickertalk/internal/show"
)

type stubVotes struct {
	mu    sync.Mutex
	votes map[string]int
	err   error
}

func (s *stubVotes) SubmitVote(voterID string, slot int) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votes == nil {
		s.votes = make(map[string]int)
	}
	s.votes[voterID] = slot
	return nil
}

type wsFixture struct {
	srv         *httptest.Server
	broadcaster *broadcast.Broadcaster
	hub         *ChatHub
	sink        chan show.ChatMessage
	votes       *stubVotes
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	logger := slog.Default()
	fx := &wsFixture{
		broadcaster: broadcast.New(logger),
		sink:        make(chan show.ChatMessage, 16),
		votes:       &stubVotes{},
	}
	t.Cleanup(fx.broadcaster.Close)

	fx.hub = NewChatHub(fx.sink, fx.votes, logger)
	handler := NewHandler(fx.broadcaster, fx.hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/feed", handler.ServeFeed)
	mux.HandleFunc("GET /ws/chat", handler.ServeChat)

	fx.srv = httptest.NewServer(mux)
	t.Cleanup(fx.srv.Close)

	return fx
}

func (fx *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(fx.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ServerMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestFeedDeliversSnapshots(t *testing.T) {
	fx := newWSFixture(t)

	snap := domain.NewSnapshot()
	snap.Phase = domain.PhaseDiscussion
	fx.broadcaster.Publish(snap)

	conn := fx.dial(t, "/ws/feed")

	// The current snapshot arrives immediately on subscribe.
	msg := readServerMessage(t, conn)
	assert.Equal(t, MsgState, msg.Type)

	var got domain.Snapshot
	raw, _ := json.Marshal(msg.Payload)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, domain.PhaseDiscussion, got.Phase)

	next := domain.NewSnapshot()
	next.Phase = domain.PhaseVoting
	fx.broadcaster.Publish(next)

	msg = readServerMessage(t, conn)
	raw, _ = json.Marshal(msg.Payload)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, domain.PhaseVoting, got.Phase)
}

func TestChatForwardsLinesToSink(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, "/ws/chat?voterId=viewer-7")

	require.NoError(t, conn.WriteJSON(&ClientMessage{
		Type:    MsgChat,
		Payload: &ChatPayload{Text: "!vote 2"},
	}))

	select {
	case got := <-fx.sink:
		assert.Equal(t, "viewer-7", got.VoterID)
		assert.Equal(t, "!vote 2", got.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("chat line never reached the sink")
	}
}

func TestChatStructuredVote(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, "/ws/chat?voterId=viewer-9")

	require.NoError(t, conn.WriteJSON(&ClientMessage{
		Type:    MsgVote,
		Payload: &VotePayload{Slot: 2},
	}))

	msg := readServerMessage(t, conn)
	assert.Equal(t, MsgVoteAccepted, msg.Type)

	fx.votes.mu.Lock()
	defer fx.votes.mu.Unlock()
	assert.Equal(t, map[string]int{"viewer-9": 2}, fx.votes.votes)
}

func TestChatVoteRejectedOutsideRound(t *testing.T) {
	fx := newWSFixture(t)
	fx.votes.err = domain.ErrNoRoundOpen

	conn := fx.dial(t, "/ws/chat?voterId=viewer-1")

	require.NoError(t, conn.WriteJSON(&ClientMessage{
		Type:    MsgVote,
		Payload: &VotePayload{Slot: 1},
	}))

	msg := readServerMessage(t, conn)
	require.Equal(t, MsgError, msg.Type)

	raw, _ := json.Marshal(msg.Payload)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(raw, &errPayload))
	assert.Equal(t, ErrCodeNoRoundOpen, errPayload.Code)
}

func TestAnnouncementFansOutToAllViewers(t *testing.T) {
	fx := newWSFixture(t)

	first := fx.dial(t, "/ws/chat?voterId=a")
	second := fx.dial(t, "/ws/chat?voterId=b")

	// Registration happens inside each client's Run; wait for both.
	require.Eventually(t, func() bool { return fx.hub.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	fx.hub.Announce("🗳️ VOTE NOW!")

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readServerMessage(t, conn)
		require.Equal(t, MsgAnnouncement, msg.Type)

		raw, _ := json.Marshal(msg.Payload)
		var payload AnnouncementPayload
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "🗳️ VOTE NOW!", payload.Text)
	}
}

func TestUnknownMessageTypeGetsError(t *testing.T) {
	fx := newWSFixture(t)
	conn := fx.dial(t, "/ws/chat")

	require.NoError(t, conn.WriteJSON(&ClientMessage{Type: "dance"}))

	msg := readServerMessage(t, conn)
	assert.Equal(t, MsgError, msg.Type)
}
