package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tickertalk/internal/domain"
)

const (
	// DefaultTurns is the target turn count per discussion.
	DefaultTurns = 10

	// DefaultMaxHistory bounds how many prior turns are fed back to the
	// generator as context; older turns are dropped first.
	DefaultMaxHistory = 12

	// DefaultAttemptTimeout bounds a single backend call. A backend that
	// hangs instead of erroring is cut off and treated like any other
	// generation failure: retried, then skipped.
	DefaultAttemptTimeout = 10 * time.Second

	// perTurnAttempts is how many times a single turn's generation is tried
	// before the turn is skipped.
	perTurnAttempts = 3
)

// Config tunes script generation.
type Config struct {
	Turns          int
	MaxHistory     int
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Turns <= 0 {
		c.Turns = DefaultTurns
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Script is a lazy, ordered, finite sequence of dialogue turns for one
// topic. It is not restartable: start a fresh script per topic. Turn i is
// never produced before turn i-1 has been consumed.
type Script struct {
	topic   domain.Topic
	gen     TextGenerator
	cfg     Config
	logger  *slog.Logger
	system  string
	seq     int
	history []string
}

// NewScript starts a script for the topic.
func NewScript(topic domain.Topic, gen TextGenerator, cfg Config, logger *slog.Logger) *Script {
	cfg = cfg.withDefaults()
	return &Script{
		topic:  topic,
		gen:    gen,
		cfg:    cfg,
		logger: logger,
		system: writerPrompt(topic),
	}
}

// Next produces the next turn. It returns ok=false once the sequence is
// exhausted. A turn whose generation fails persistently is skipped: the
// sequence continues and the skipped turn leaves no trace in the history.
// The only error returned is context cancellation.
func (s *Script) Next(ctx context.Context) (domain.DialogueTurn, bool, error) {
	for s.seq < s.cfg.Turns {
		seq := s.seq
		s.seq++

		host := domain.HostForTurn(seq)
		instruction := fmt.Sprintf("Write %s's next line (turn %d/%d).", host.Name(), seq+1, s.cfg.Turns)

		text, err := s.generateWithRetry(ctx, instruction)
		if err != nil {
			if ctx.Err() != nil {
				return domain.DialogueTurn{}, false, ctx.Err()
			}
			s.logger.Error("turn generation failed, skipping turn",
				"topicId", s.topic.ID,
				"seq", seq,
				"error", err,
			)
			continue
		}

		text = cleanLine(text, host)
		s.remember(fmt.Sprintf("%s: %s", host.Name(), text))

		return domain.DialogueTurn{Seq: seq, Host: host, Text: text}, true, nil
	}

	return domain.DialogueTurn{}, false, nil
}

func (s *Script) generateWithRetry(ctx context.Context, instruction string) (string, error) {
	var text string

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newTurnBackOff(), perTurnAttempts-1),
		ctx,
	)

	err := backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()

		var genErr error
		text, genErr = s.gen.Generate(attemptCtx, s.system, s.history, instruction)
		return genErr
	}, policy)
	if err != nil {
		return "", err
	}

	return text, nil
}

func newTurnBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

func (s *Script) remember(line string) {
	s.history = append(s.history, line)
	if len(s.history) > s.cfg.MaxHistory {
		s.history = s.history[len(s.history)-s.cfg.MaxHistory:]
	}
}

// Remaining reports how many turns have not yet been produced.
func (s *Script) Remaining() int {
	return s.cfg.Turns - s.seq
}
