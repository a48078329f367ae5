package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"tickertalk/internal/domain"
)

// DefaultHistorySize is how many discussed topics the no-repeat window holds.
const DefaultHistorySize = 20

// TopicSource provides ranked topics. Satisfied by *Client.
type TopicSource interface {
	TrendingTopics(ctx context.Context, limit int) ([]domain.Topic, error)
}

// PriceSource serves live midpoint prices. Sources without it skip odds
// refreshes.
type PriceSource interface {
	LivePrice(ctx context.Context, tokenID string) (float64, error)
}

// Selector ranks candidate topics and enforces the no-repeat policy. It owns
// the bounded window of recently discussed topic ids; the director marks
// topics as discussed after each discussion phase.
type Selector struct {
	source      TopicSource
	historySize int
	logger      *slog.Logger

	mu        sync.Mutex
	discussed []string
}

// NewSelector creates a selector over the given source.
func NewSelector(source TopicSource, historySize int, logger *slog.Logger) *Selector {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Selector{
		source:      source,
		historySize: historySize,
		logger:      logger,
	}
}

// MarkDiscussed appends a topic id to the no-repeat window, evicting the
// oldest entry when the window is full.
func (s *Selector) MarkDiscussed(topicID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discussed = append(s.discussed, topicID)
	if len(s.discussed) > s.historySize {
		s.discussed = s.discussed[len(s.discussed)-s.historySize:]
	}
	s.logger.Info("topic marked as discussed", "topicId", topicID, "window", len(s.discussed))
}

// ClearHistory empties the no-repeat window.
func (s *Selector) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discussed = nil
	s.logger.Info("discussion history cleared")
}

// Discussed returns a copy of the current no-repeat window.
func (s *Selector) Discussed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.discussed))
	copy(out, s.discussed)
	return out
}

func (s *Selector) isDiscussed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.discussed {
		if d == id {
			return true
		}
	}
	return false
}

// Rank returns eligible topics ordered by 24h volume descending, excluding
// topics in the no-repeat window.
func (s *Selector) Rank(ctx context.Context) ([]domain.Topic, error) {
	topics, err := s.source.TrendingTopics(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("rank topics: %w", err)
	}

	eligible := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		if !s.isDiscussed(t.ID) {
			eligible = append(eligible, t)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Volume24h > eligible[j].Volume24h
	})

	return eligible, nil
}

// PickCandidates returns exactly two distinct candidate topics for a voting
// round, highest volume first, preferring a second candidate from a
// different category for variety. If fewer than two topics remain after
// exclusion, the window is cleared and the fetch retried once before
// surfacing an error.
func (s *Selector) PickCandidates(ctx context.Context) ([2]domain.Topic, error) {
	eligible, err := s.Rank(ctx)
	if err != nil {
		return [2]domain.Topic{}, err
	}

	if len(eligible) < 2 {
		s.logger.Warn("running low on candidate topics, clearing history")
		s.ClearHistory()
		eligible, err = s.Rank(ctx)
		if err != nil {
			return [2]domain.Topic{}, err
		}
		if len(eligible) < 2 {
			return [2]domain.Topic{}, domain.ErrNotEnoughTopics
		}
	}

	first := eligible[0]
	second := eligible[1]
	for _, t := range eligible[1:] {
		if t.Category != first.Category {
			second = t
			break
		}
	}

	return [2]domain.Topic{first, second}, nil
}

// RefreshOdds updates the topic's outcome prices from the live midpoint
// feed. Prices drift during a voting window, so the winner gets fresh odds
// before its discussion opens. Failures leave the listed prices in place.
// The outcome slice is replaced, not written through: the original backing
// array may be shared with the source's cache.
func (s *Selector) RefreshOdds(ctx context.Context, topic *domain.Topic) {
	prices, ok := s.source.(PriceSource)
	if !ok {
		return
	}

	outcomes := make([]domain.Outcome, len(topic.Outcomes))
	copy(outcomes, topic.Outcomes)

	for i := range outcomes {
		outcome := &outcomes[i]
		if outcome.TokenID == "" {
			continue
		}

		mid, err := prices.LivePrice(ctx, outcome.TokenID)
		if err != nil {
			s.logger.Debug("live price refresh failed", "tokenId", outcome.TokenID, "error", err)
			continue
		}
		outcome.Price = mid
	}

	topic.Outcomes = outcomes
}

// InitialTopic returns the highest-volume topic to open the show with.
func (s *Selector) InitialTopic(ctx context.Context) (domain.Topic, error) {
	topics, err := s.source.TrendingTopics(ctx, 5)
	if err != nil {
		return domain.Topic{}, fmt.Errorf("initial topic: %w", err)
	}
	if len(topics) == 0 {
		return domain.Topic{}, domain.ErrNoTopics
	}

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Volume24h > topics[j].Volume24h
	})

	s.logger.Info("selected initial topic", "topicId", topics[0].ID, "question", topics[0].ShortQuestion())
	return topics[0], nil
}
