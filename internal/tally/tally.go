// Package tally implements the vote tally engine for a voting round:
// one counted vote per voter, last write wins, deterministic tie-break.
package tally

import (
	"log/slog"
	"sync"

	"tickertalk/internal/domain"
)

// Result is the outcome of a closed voting round.
type Result struct {
	Winner      int         `json:"winner"` // candidate slot, 1 or 2
	Counts      map[int]int `json:"counts"`
	TotalVoters int         `json:"totalVoters"`
}

// Tally accumulates votes for one round at a time. Record may be called
// concurrently with Close; the mutex guarantees Close observes a consistent
// final map and that votes arriving after Close are rejected.
type Tally struct {
	mu     sync.Mutex
	open   bool
	closed bool
	votes  map[string]int // voterID -> last slot
	result Result
	logger *slog.Logger
}

// New creates a tally with no round open.
func New(logger *slog.Logger) *Tally {
	return &Tally{logger: logger}
}

// OpenRound clears any previous round's votes and opens a new round.
func (t *Tally) OpenRound() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.votes = make(map[string]int)
	t.open = true
	t.closed = false
	t.result = Result{}
	t.logger.Info("voting round opened")
}

// Record registers a vote. A later vote from the same voter replaces the
// earlier one. Votes outside an open round or for an invalid slot are
// rejected at the boundary and never reach the map.
func (t *Tally) Record(v domain.Vote) error {
	if !domain.ValidSlot(v.Slot) {
		return domain.ErrInvalidSlot
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return domain.ErrNoRoundOpen
	}

	t.votes[v.VoterID] = v.Slot
	return nil
}

// IsOpen reports whether a round is currently accepting votes.
func (t *Tally) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Counts returns the live per-slot counts for the current round. Safe to
// call while the round is open; used for mid-round snapshot refreshes.
func (t *Tally) Counts() map[int]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countsLocked()
}

func (t *Tally) countsLocked() map[int]int {
	counts := map[int]int{domain.SlotOne: 0, domain.SlotTwo: 0}
	for _, slot := range t.votes {
		counts[slot]++
	}
	return counts
}

// Close ends the round and computes the winner: the slot with strictly more
// votes, defaulting to slot 1 on any tie including 0-0. Close is idempotent:
// a second call returns the same result without mutating it.
func (t *Tally) Close() Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return t.result
	}

	counts := t.countsLocked()
	winner := domain.SlotOne
	if counts[domain.SlotTwo] > counts[domain.SlotOne] {
		winner = domain.SlotTwo
	}

	t.result = Result{
		Winner:      winner,
		Counts:      counts,
		TotalVoters: len(t.votes),
	}
	t.open = false
	t.closed = true

	t.logger.Info("voting round closed",
		"winner", t.result.Winner,
		"slot1", counts[domain.SlotOne],
		"slot2", counts[domain.SlotTwo],
		"voters", t.result.TotalVoters,
	)

	return t.result
}
