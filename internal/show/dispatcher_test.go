package show

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tickertalk/internal/domain"
)

type recordingTransport struct {
	mu    sync.Mutex
	sends []sentLine
	err   error
}

type sentLine struct {
	speaker string
	text    string
	at      time.Time
}

func (r *recordingTransport) Send(_ context.Context, speakerID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sends = append(r.sends, sentLine{speaker: speakerID, text: text, at: time.Now()})
	return nil
}

func (r *recordingTransport) lines() []sentLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentLine, len(r.sends))
	copy(out, r.sends)
	return out
}

func TestEstimateSpeechDuration(t *testing.T) {
	// 25 words at 2.5 words/sec -> 10s.
	text := strings.Repeat("word ", 25)
	assert.Equal(t, 10*time.Second, EstimateSpeechDuration(text))

	// Tiny and huge inputs are clamped.
	assert.Equal(t, minSpeechWait, EstimateSpeechDuration("hi"))
	assert.Equal(t, maxSpeechWait, EstimateSpeechDuration(strings.Repeat("word ", 1000)))
}

func TestDispatchReturnsEstimate(t *testing.T) {
	transport := &recordingTransport{}
	d := NewDispatcher(transport, slog.Default())

	turn := domain.DialogueTurn{Seq: 0, Host: domain.HostMax, Text: strings.Repeat("word ", 25)}
	wait := d.Dispatch(context.Background(), turn)

	assert.Equal(t, 10*time.Second, wait)
	lines := transport.lines()
	assert.Len(t, lines, 1)
	assert.Equal(t, "host-max", lines[0].speaker)
}

func TestDispatchFailureDropsTurnWithDefaultWait(t *testing.T) {
	transport := &recordingTransport{err: errors.New("room unavailable")}
	d := NewDispatcher(transport, slog.Default())

	wait := d.Dispatch(context.Background(), domain.DialogueTurn{Host: domain.HostBen, Text: "hello"})

	assert.Equal(t, failedDispatchWait, wait)
	assert.Empty(t, transport.lines())
}
