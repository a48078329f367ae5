// Package show contains the orchestrator control loop: phase transitions,
// dialogue pacing, vote windows, and snapshot publication.
package show

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tickertalk/internal/broadcast"
	"tickertalk/internal/domain"
	"tickertalk/internal/tally"
)

const (
	// fetchAttempts bounds retries for candidate fetches inside a transition.
	fetchAttempts = 3

	defaultChatBuffer = 256
)

// TopicSelector supplies ranked topics and owns the no-repeat window.
type TopicSelector interface {
	InitialTopic(ctx context.Context) (domain.Topic, error)
	PickCandidates(ctx context.Context) ([2]domain.Topic, error)
	MarkDiscussed(topicID string)
	RefreshOdds(ctx context.Context, topic *domain.Topic)
}

// TurnSource is a lazy, ordered, finite sequence of dialogue turns.
type TurnSource interface {
	Next(ctx context.Context) (domain.DialogueTurn, bool, error)
}

// ScriptFactory starts a fresh turn sequence for a topic.
type ScriptFactory interface {
	NewScript(topic domain.Topic) TurnSource
}

// ScriptFactoryFunc adapts a function to ScriptFactory.
type ScriptFactoryFunc func(topic domain.Topic) TurnSource

// NewScript implements ScriptFactory.
func (f ScriptFactoryFunc) NewScript(topic domain.Topic) TurnSource { return f(topic) }

// Announcer posts outbound announcements to the chat transport.
type Announcer interface {
	Announce(text string)
}

// Config holds the show's timing parameters.
type Config struct {
	DiscussionDuration   time.Duration
	VotingDuration       time.Duration
	TransitionDuration   time.Duration
	StartupAttempts      int
	TallyRefreshInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiscussionDuration <= 0 {
		c.DiscussionDuration = 5 * time.Minute
	}
	if c.VotingDuration <= 0 {
		c.VotingDuration = time.Minute
	}
	if c.TransitionDuration <= 0 {
		c.TransitionDuration = 10 * time.Second
	}
	if c.StartupAttempts <= 0 {
		c.StartupAttempts = 5
	}
	if c.TallyRefreshInterval <= 0 {
		c.TallyRefreshInterval = 5 * time.Second
	}
	return c
}

// Director is the phase state machine. Run's goroutine is the only writer
// of show state; everyone else sees it through immutable snapshots.
type Director struct {
	cfg         Config
	selector    TopicSelector
	scripts     ScriptFactory
	dispatcher  *Dispatcher
	tally       *tally.Tally
	broadcaster *broadcast.Broadcaster
	announcer   Announcer
	logger      *slog.Logger

	chat chan ChatMessage

	// Working state, touched only by the Run goroutine.
	phase            domain.ShowPhase
	topic            domain.Topic
	hasTopic         bool
	candidates       []domain.Topic
	lastResult       tally.Result
	hasResult        bool
	votingEndsAt     *time.Time
	currentSpeaker   string
	marketsDiscussed int
	totalVotes       int
}

// NewDirector wires the control loop to its collaborators.
func NewDirector(
	cfg Config,
	selector TopicSelector,
	scripts ScriptFactory,
	dispatcher *Dispatcher,
	voteTally *tally.Tally,
	broadcaster *broadcast.Broadcaster,
	announcer Announcer,
	logger *slog.Logger,
) *Director {
	return &Director{
		cfg:         cfg.withDefaults(),
		selector:    selector,
		scripts:     scripts,
		dispatcher:  dispatcher,
		tally:       voteTally,
		broadcaster: broadcaster,
		announcer:   announcer,
		logger:      logger,
		chat:        make(chan ChatMessage, defaultChatBuffer),
		phase:       domain.PhaseStarting,
	}
}

// ChatSink returns the bounded channel the chat transport feeds raw
// messages into.
func (d *Director) ChatSink() chan<- ChatMessage {
	return d.chat
}

// SetAnnouncer binds the announcement fan-out. The chat hub needs the
// director's sink to exist first, so this runs after construction and
// before Run.
func (d *Director) SetAnnouncer(a Announcer) {
	d.announcer = a
}

// SubmitVote records a vote arriving through the HTTP endpoint. Rejections
// (no round open, invalid slot) are user-facing, not system faults.
func (d *Director) SubmitVote(voterID string, slot int) error {
	if voterID == "" {
		return domain.ErrMissingVoter
	}
	return d.tally.Record(domain.NewVote(voterID, slot))
}

// Run drives the show until ctx is cancelled. The only error it returns is
// a fatal startup failure: no topic obtainable at all.
func (d *Director) Run(ctx context.Context) error {
	d.publish()

	go d.ingestVotes(ctx)

	topic, err := d.awaitInitialTopic(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("fatal startup: %w", err)
	}
	d.topic = topic
	d.hasTopic = true

	for ctx.Err() == nil {
		d.runDiscussion(ctx)
		if ctx.Err() != nil {
			break
		}

		winner, ok := d.runVoting(ctx)
		if ctx.Err() != nil {
			break
		}
		if !ok {
			// Degraded: keep discussing the current topic.
			continue
		}

		d.runTransition(ctx, winner)
	}

	d.logger.Info("show loop stopped", "marketsDiscussed", d.marketsDiscussed, "totalVotes", d.totalVotes)
	return nil
}

// awaitInitialTopic retries the first topic fetch within a bounded budget.
func (d *Director) awaitInitialTopic(ctx context.Context) (domain.Topic, error) {
	var topic domain.Topic

	policy := backoff.WithContext(
		backoff.WithMaxRetries(startupBackOff(), uint64(d.cfg.StartupAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		var fetchErr error
		topic, fetchErr = d.selector.InitialTopic(ctx)
		if fetchErr != nil {
			d.logger.Warn("initial topic fetch failed", "error", fetchErr)
		}
		return fetchErr
	}, policy)
	if err != nil {
		return domain.Topic{}, err
	}

	return topic, nil
}

func startupBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// runDiscussion paces dialogue turns until the discussion window elapses or
// the script is exhausted, whichever comes first. An in-flight turn is
// allowed to finish dispatch; no new turn starts after the deadline.
func (d *Director) runDiscussion(ctx context.Context) {
	d.setPhase(domain.PhaseDiscussion)
	d.candidates = nil
	d.hasResult = false
	d.votingEndsAt = nil
	d.currentSpeaker = ""
	d.publish()

	d.announce(fmt.Sprintf("📈 NOW DISCUSSING: %s | %s", d.topic.Question, oddsLine(d.topic)))
	d.logger.Info("discussion started", "topicId", d.topic.ID, "question", d.topic.ShortQuestion())

	script := d.scripts.NewScript(d.topic)

	window, cancel := context.WithTimeout(ctx, d.cfg.DiscussionDuration)
	defer cancel()

	for window.Err() == nil {
		turn, ok, err := script.Next(window)
		if err != nil || !ok {
			break
		}

		d.currentSpeaker = turn.SpeakerID()
		d.publish()

		wait := d.dispatcher.Dispatch(ctx, turn)
		if !sleepCtx(window, wait) {
			break
		}
	}

	d.currentSpeaker = ""
	d.selector.MarkDiscussed(d.topic.ID)
	d.marketsDiscussed++
	d.logger.Info("discussion ended", "topicId", d.topic.ID)
}

// runVoting opens a round over two fresh candidates and holds it open until
// the deadline; silence is a valid outcome. Returns ok=false when the round
// could not run (candidate fetch exhausted retries) or was cut short by
// shutdown; the tally is never left open.
func (d *Director) runVoting(ctx context.Context) (domain.Topic, bool) {
	candidates, err := d.pickCandidates(ctx)
	if err != nil {
		d.logger.Error("candidate fetch failed, skipping voting round", "error", err)
		return domain.Topic{}, false
	}

	d.tally.OpenRound()
	endsAt := time.Now().Add(d.cfg.VotingDuration)

	d.setPhase(domain.PhaseVoting)
	d.candidates = candidates[:]
	d.votingEndsAt = &endsAt
	d.currentSpeaker = ""
	d.publish()

	d.announce(fmt.Sprintf("🗳️ VOTE NOW! Type 1 or 2 in chat! Option 1: %s | Option 2: %s",
		candidates[0].ShortQuestion(), candidates[1].ShortQuestion()))

	opener := domain.HostMax
	wait := d.dispatcher.Say(ctx, opener,
		fmt.Sprintf("Alright traders! Time to VOTE! Option 1: %s", candidates[0].Question))
	if sleepCtx(ctx, wait) {
		d.dispatcher.Say(ctx, opener.Other(),
			fmt.Sprintf("And Option 2: %s. You have %d seconds. Choose wisely.",
				candidates[1].Question, int(d.cfg.VotingDuration.Seconds())))
	}

	closed := d.holdVotingWindow(ctx, endsAt)
	result := d.tally.Close()
	d.lastResult = result
	d.hasResult = true
	d.totalVotes += result.TotalVoters

	if !closed {
		// Shutdown during the window: round is closed, nothing announced.
		return domain.Topic{}, false
	}

	d.announce(fmt.Sprintf("🏆 VOTING CLOSED! Winner: Option %d with %d votes! Total votes: %d",
		result.Winner, result.Counts[result.Winner], result.TotalVoters))

	return candidates[result.Winner-1], true
}

// setPhase moves the state machine forward. An out-of-order transition is
// a bug in the loop, not a recoverable condition; it is logged loudly and
// applied anyway so the show keeps running.
func (d *Director) setPhase(next domain.ShowPhase) {
	if !d.phase.CanTransitionTo(next) {
		d.logger.Error("unexpected phase transition", "from", d.phase, "to", next)
	}
	d.phase = next
}

// holdVotingWindow blocks until the deadline, refreshing the published
// tally along the way. It returns false if ctx ended first.
func (d *Director) holdVotingWindow(ctx context.Context, endsAt time.Time) bool {
	deadline := time.NewTimer(time.Until(endsAt))
	defer deadline.Stop()

	refresh := time.NewTicker(d.cfg.TallyRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-refresh.C:
			d.publish()
		case <-deadline.C:
			return true
		}
	}
}

func (d *Director) pickCandidates(ctx context.Context) ([2]domain.Topic, error) {
	var candidates [2]domain.Topic

	policy := backoff.WithContext(
		backoff.WithMaxRetries(startupBackOff(), fetchAttempts-1),
		ctx,
	)

	err := backoff.Retry(func() error {
		var pickErr error
		candidates, pickErr = d.selector.PickCandidates(ctx)
		return pickErr
	}, policy)

	return candidates, err
}

// runTransition announces the winner and hands the show to the new topic
// after a short grace period.
func (d *Director) runTransition(ctx context.Context, winner domain.Topic) {
	d.setPhase(domain.PhaseTransition)
	d.votingEndsAt = nil
	d.publish()

	d.dispatcher.Say(ctx, domain.HostMax,
		fmt.Sprintf("The people have spoken! Let's dive into: %s!", winner.Question))

	sleepCtx(ctx, d.cfg.TransitionDuration)

	// Prices drift during the vote; open the discussion on current odds.
	d.selector.RefreshOdds(ctx, &winner)

	d.topic = winner
}

// ingestVotes drains the chat channel, applying the vote grammar and
// feeding the tally. Non-vote chatter is ignored; rejected votes are not
// faults.
func (d *Director) ingestVotes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.chat:
			slot, ok := ParseVote(msg.Text)
			if !ok {
				continue
			}
			vote := domain.Vote{VoterID: msg.VoterID, Slot: slot, At: msg.At}
			if err := d.tally.Record(vote); err != nil {
				d.logger.Debug("chat vote rejected", "voterId", msg.VoterID, "error", err)
			}
		}
	}
}

// publish snapshots the working state and hands it to the broadcaster.
func (d *Director) publish() {
	snap := domain.NewSnapshot()
	snap.Phase = d.phase
	snap.CurrentSpeaker = d.currentSpeaker
	snap.MarketsDiscussed = d.marketsDiscussed
	snap.TotalVotes = d.totalVotes

	if d.hasTopic {
		info := d.topic.ToInfo()
		snap.CurrentTopic = &info
	}

	for _, c := range d.candidates {
		snap.CandidateTopics = append(snap.CandidateTopics, c.ToInfo())
	}

	switch {
	case d.phase == domain.PhaseVoting && d.tally.IsOpen():
		snap.VoteTally = d.tally.Counts()
	case d.hasResult:
		snap.VoteTally = d.lastResult.Counts
	}

	if d.votingEndsAt != nil {
		ends := d.votingEndsAt.Unix()
		snap.VotingEndsAt = &ends
	}

	d.broadcaster.Publish(snap.Clone())
}

func (d *Director) announce(text string) {
	if d.announcer != nil {
		d.announcer.Announce(text)
	}
}

func oddsLine(topic domain.Topic) string {
	line := ""
	for i, o := range topic.Outcomes {
		if i > 0 {
			line += " | "
		}
		line += o.Label + ": " + o.Percentage()
	}
	return line
}

// sleepCtx waits for dur or until ctx ends; it reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
