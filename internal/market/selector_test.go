package market

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickertalk/internal/domain"
)

type stubSource struct {
	topics []domain.Topic
	err    error
	calls  int
}

func (s *stubSource) TrendingTopics(_ context.Context, limit int) ([]domain.Topic, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.topics) {
		return s.topics[:limit], nil
	}
	return s.topics, nil
}

func topic(id string, volume float64) domain.Topic {
	return domain.Topic{
		ID:       id,
		Question: "Will " + id + " happen?",
		Outcomes: []domain.Outcome{
			{Label: "Yes", Price: 0.6},
			{Label: "No", Price: 0.4},
		},
		Volume24h: volume,
	}
}

func TestPickCandidatesTopTwoByVolume(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{
		topic("T1", 500),
		topic("T2", 300),
		topic("T3", 100),
	}}
	sel := NewSelector(src, 20, slog.Default())

	cands, err := sel.PickCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", cands[0].ID)
	assert.Equal(t, "T2", cands[1].ID)
}

func TestPickCandidatesExcludesDiscussed(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{
		topic("T1", 500),
		topic("T2", 300),
		topic("T3", 100),
	}}
	sel := NewSelector(src, 20, slog.Default())
	sel.MarkDiscussed("T1")

	cands, err := sel.PickCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", cands[0].ID)
	assert.Equal(t, "T3", cands[1].ID)
	assert.NotEqual(t, cands[0].ID, cands[1].ID)
}

func TestPickCandidatesPrefersDifferentCategory(t *testing.T) {
	politics := topic("P1", 500)
	politics.Category = "politics"
	alsoPolitics := topic("P2", 400)
	alsoPolitics.Category = "politics"
	sports := topic("S1", 300)
	sports.Category = "sports"

	src := &stubSource{topics: []domain.Topic{politics, alsoPolitics, sports}}
	sel := NewSelector(src, 20, slog.Default())

	cands, err := sel.PickCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "P1", cands[0].ID)
	assert.Equal(t, "S1", cands[1].ID)
}

func TestPickCandidatesClearsHistoryWhenStarved(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{
		topic("T1", 500),
		topic("T2", 300),
	}}
	sel := NewSelector(src, 20, slog.Default())
	sel.MarkDiscussed("T1")
	sel.MarkDiscussed("T2")

	cands, err := sel.PickCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", cands[0].ID)
	assert.Equal(t, "T2", cands[1].ID)
	assert.Empty(t, sel.Discussed(), "window is cleared before the refetch")
}

func TestPickCandidatesErrorWhenUniverseTooSmall(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{topic("T1", 500)}}
	sel := NewSelector(src, 20, slog.Default())

	_, err := sel.PickCandidates(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotEnoughTopics)
}

func TestRankOrdersByVolumeDescending(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{
		topic("low", 10),
		topic("high", 900),
		topic("mid", 400),
	}}
	sel := NewSelector(src, 20, slog.Default())

	ranked, err := sel.Rank(context.Background())
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].ID)
	assert.Equal(t, "mid", ranked[1].ID)
	assert.Equal(t, "low", ranked[2].ID)
}

func TestHistoryWindowEvictsOldest(t *testing.T) {
	sel := NewSelector(&stubSource{}, 3, slog.Default())
	for _, id := range []string{"a", "b", "c", "d"} {
		sel.MarkDiscussed(id)
	}

	assert.Equal(t, []string{"b", "c", "d"}, sel.Discussed())
}

type pricedStubSource struct {
	stubSource
	mids map[string]float64
}

func (s *pricedStubSource) LivePrice(_ context.Context, tokenID string) (float64, error) {
	mid, ok := s.mids[tokenID]
	if !ok {
		return 0, domain.ErrNoTopics
	}
	return mid, nil
}

func TestRefreshOddsUpdatesFromLivePrices(t *testing.T) {
	src := &pricedStubSource{mids: map[string]float64{"tok-yes": 0.72}}
	sel := NewSelector(src, 20, slog.Default())

	subject := topic("T1", 500)
	subject.Outcomes[0].TokenID = "tok-yes"
	subject.Outcomes[1].TokenID = "tok-no" // not served, price stays listed

	sel.RefreshOdds(context.Background(), &subject)

	assert.InDelta(t, 0.72, subject.Outcomes[0].Price, 1e-9)
	assert.InDelta(t, 0.4, subject.Outcomes[1].Price, 1e-9)
}

func TestRefreshOddsLeavesSharedOutcomeSliceAlone(t *testing.T) {
	src := &pricedStubSource{mids: map[string]float64{"tok-yes": 0.9}}
	sel := NewSelector(src, 20, slog.Default())

	// The topic's outcome slice aliases a cache entry, as it does when a
	// topic value is shallow-copied out of the client's cached ranking.
	cached := []domain.Outcome{
		{Label: "Yes", Price: 0.5, TokenID: "tok-yes"},
		{Label: "No", Price: 0.5, TokenID: "tok-no"},
	}
	subject := domain.Topic{ID: "T1", Outcomes: cached}

	sel.RefreshOdds(context.Background(), &subject)

	assert.InDelta(t, 0.9, subject.Outcomes[0].Price, 1e-9)
	assert.InDelta(t, 0.5, cached[0].Price, 1e-9, "cached entry keeps its listed price")
}

func TestRefreshOddsNoopWithoutPriceSource(t *testing.T) {
	sel := NewSelector(&stubSource{}, 20, slog.Default())

	subject := topic("T1", 500)
	subject.Outcomes[0].TokenID = "tok-yes"
	sel.RefreshOdds(context.Background(), &subject)

	assert.InDelta(t, 0.6, subject.Outcomes[0].Price, 1e-9)
}

func TestInitialTopicPicksHighestVolume(t *testing.T) {
	src := &stubSource{topics: []domain.Topic{
		topic("T2", 300),
		topic("T1", 500),
	}}
	sel := NewSelector(src, 20, slog.Default())

	initial, err := sel.InitialTopic(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", initial.ID)
}

func TestInitialTopicEmptyUniverse(t *testing.T) {
	sel := NewSelector(&stubSource{}, 20, slog.Default())

	_, err := sel.InitialTopic(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoTopics)
}
