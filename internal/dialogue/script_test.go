package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickertalk/internal/domain"
)

type fakeGenerator struct {
	calls     int
	failSeqs  map[int]bool // instruction turn number (1-based) -> always fail
	histories [][]string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, history []string, instruction string) (string, error) {
	f.calls++

	snapshot := make([]string, len(history))
	copy(snapshot, history)
	f.histories = append(f.histories, snapshot)

	var turn, total int
	if _, err := fmt.Sscanf(instruction[strings.Index(instruction, "(turn "):], "(turn %d/%d).", &turn, &total); err != nil {
		return "", fmt.Errorf("unparseable instruction %q", instruction)
	}

	if f.failSeqs[turn] {
		return "", errors.New("upstream unavailable")
	}

	return fmt.Sprintf("line for turn %d", turn), nil
}

func testTopic() domain.Topic {
	return domain.Topic{
		ID:       "mkt-1",
		Question: "Will the Fed cut rates in March?",
		Outcomes: []domain.Outcome{
			{Label: "Yes", Price: 0.65},
			{Label: "No", Price: 0.35},
		},
	}
}

func TestScriptAlternatesHostsByParity(t *testing.T) {
	gen := &fakeGenerator{}
	script := NewScript(testTopic(), gen, Config{Turns: 4}, slog.Default())

	var hosts []domain.Host
	for {
		turn, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		hosts = append(hosts, turn.Host)
	}

	assert.Equal(t, []domain.Host{domain.HostMax, domain.HostBen, domain.HostMax, domain.HostBen}, hosts)
}

func TestScriptOrderingAndExhaustion(t *testing.T) {
	gen := &fakeGenerator{}
	script := NewScript(testTopic(), gen, Config{Turns: 3}, slog.Default())

	for want := 0; want < 3; want++ {
		turn, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, turn.Seq)
	}

	_, ok, err := script.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// Exhausted scripts stay exhausted.
	_, ok, _ = script.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 0, script.Remaining())
}

func TestFailedTurnIsSkippedAndAbsentFromHistory(t *testing.T) {
	gen := &fakeGenerator{failSeqs: map[int]bool{4: true}}
	script := NewScript(testTopic(), gen, Config{Turns: 5}, slog.Default())

	var seqs []int
	for {
		turn, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		seqs = append(seqs, turn.Seq)
	}

	// Turn index 3 ("turn 4") fails three times and is omitted.
	assert.Equal(t, []int{0, 1, 2, 4}, seqs)

	// Turn 5 was generated with history that has no turn-4 entry.
	last := gen.histories[len(gen.histories)-1]
	require.Len(t, last, 3)
	for _, line := range last {
		assert.NotContains(t, line, "turn 4")
	}
}

func TestPerTurnRetryBudget(t *testing.T) {
	gen := &fakeGenerator{failSeqs: map[int]bool{1: true}}
	script := NewScript(testTopic(), gen, Config{Turns: 2}, slog.Default())

	turn, ok, err := script.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, turn.Seq, "first turn skipped after exhausting retries")

	// 3 attempts for the failing turn, 1 for the succeeding one.
	assert.Equal(t, 4, gen.calls)
}

// hangingGenerator blocks on the listed turns until its context expires,
// modelling a backend that hangs instead of erroring.
type hangingGenerator struct {
	calls     int
	hangTurns map[int]bool // instruction turn number (1-based) -> hang
}

func (h *hangingGenerator) Generate(ctx context.Context, _ string, _ []string, instruction string) (string, error) {
	h.calls++

	var turn, total int
	if _, err := fmt.Sscanf(instruction[strings.Index(instruction, "(turn "):], "(turn %d/%d).", &turn, &total); err != nil {
		return "", fmt.Errorf("unparseable instruction %q", instruction)
	}

	if h.hangTurns[turn] {
		<-ctx.Done()
		return "", ctx.Err()
	}

	return fmt.Sprintf("line for turn %d", turn), nil
}

func TestHungGenerationIsCutOffAndSkipped(t *testing.T) {
	gen := &hangingGenerator{hangTurns: map[int]bool{1: true}}
	script := NewScript(testTopic(), gen, Config{Turns: 2, AttemptTimeout: 20 * time.Millisecond}, slog.Default())

	turn, ok, err := script.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, turn.Seq, "hung turn skipped, sequence continues")

	// The per-attempt timeout cuts each hung call off, so the hung turn still
	// burns its full retry budget before the skip.
	assert.Equal(t, 4, gen.calls)
}

func TestHungGenerationDoesNotAbortRemainingTurns(t *testing.T) {
	gen := &hangingGenerator{hangTurns: map[int]bool{1: true, 3: true}}
	script := NewScript(testTopic(), gen, Config{Turns: 4, AttemptTimeout: 10 * time.Millisecond}, slog.Default())

	var seqs []int
	for {
		turn, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		seqs = append(seqs, turn.Seq)
	}

	assert.Equal(t, []int{1, 3}, seqs)
}

func TestHistoryIsBoundedOldestFirst(t *testing.T) {
	gen := &fakeGenerator{}
	script := NewScript(testTopic(), gen, Config{Turns: 8, MaxHistory: 3}, slog.Default())

	for {
		_, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
	}

	// The last generation call saw at most MaxHistory prior lines, and they
	// were the most recent ones.
	last := gen.histories[len(gen.histories)-1]
	require.Len(t, last, 3)
	assert.Contains(t, last[2], "turn 7")
	assert.Contains(t, last[0], "turn 5")
}

func TestCancelledContextStopsScript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{failSeqs: map[int]bool{1: true}}
	script := NewScript(testTopic(), gen, Config{Turns: 2}, slog.Default())

	_, _, err := script.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCannedGeneratorAlwaysProduces(t *testing.T) {
	script := NewScript(testTopic(), CannedGenerator{}, Config{Turns: 6}, slog.Default())

	count := 0
	for {
		turn, ok, err := script.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.NotEmpty(t, turn.Text)
		count++
	}
	assert.Equal(t, 6, count)
}

func TestCleanLineStripsSpeakerPrefix(t *testing.T) {
	tests := []struct {
		in   string
		host domain.Host
		want string
	}{
		{"MAX: [yells] BUY!", domain.HostMax, "[yells] BUY!"},
		{"Mad Money Max: [yells] BUY!", domain.HostMax, "[yells] BUY!"},
		{"Ben: [sighs] no.", domain.HostBen, "[sighs] no."},
		{"[deadpan] untouched", domain.HostBen, "[deadpan] untouched"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, cleanLine(tc.in, tc.host), tc.in)
	}
}
