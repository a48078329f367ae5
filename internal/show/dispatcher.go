package show

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tickertalk/internal/domain"
)

const (
	// speechWordsPerSecond drives the speaking-duration estimate.
	speechWordsPerSecond = 2.5

	minSpeechWait = 2 * time.Second
	maxSpeechWait = 45 * time.Second

	// failedDispatchWait paces the loop when the transport rejects a turn,
	// so a dead transport doesn't turn into runaway turn-dumping.
	failedDispatchWait = 8 * time.Second
)

// SpeechTransport delivers a line of text to the named speaker's voice.
type SpeechTransport interface {
	Send(ctx context.Context, speakerID, text string) error
}

// Dispatcher sends turns to the speech transport and tells the director how
// long to hold before the next turn, keeping the two hosts from overlapping.
type Dispatcher struct {
	transport SpeechTransport
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the transport.
func NewDispatcher(transport SpeechTransport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, logger: logger}
}

// Dispatch sends one turn and returns the pacing wait. A transport failure
// drops the turn (no retry) and falls back to the default wait.
func (d *Dispatcher) Dispatch(ctx context.Context, turn domain.DialogueTurn) time.Duration {
	if err := d.transport.Send(ctx, turn.SpeakerID(), turn.Text); err != nil {
		d.logger.Error("speech dispatch failed, dropping turn",
			"speaker", turn.SpeakerID(),
			"seq", turn.Seq,
			"error", err,
		)
		return failedDispatchWait
	}

	return EstimateSpeechDuration(turn.Text)
}

// Say sends ad-hoc host speech (voting announcements, transitions) and
// returns its pacing wait. Failures degrade the same way Dispatch does.
func (d *Dispatcher) Say(ctx context.Context, host domain.Host, text string) time.Duration {
	return d.Dispatch(ctx, domain.DialogueTurn{Host: host, Text: text})
}

// EstimateSpeechDuration estimates how long the given text takes to speak,
// clamped to a sane range.
func EstimateSpeechDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	est := time.Duration(float64(words)/speechWordsPerSecond*1000) * time.Millisecond

	if est < minSpeechWait {
		return minSpeechWait
	}
	if est > maxSpeechWait {
		return maxSpeechWait
	}
	return est
}
