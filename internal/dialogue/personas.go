package dialogue

import (
	"fmt"
	"strings"

	"tickertalk/internal/domain"
)

// hostStyles describe each host's voice for prompt construction.
var hostStyles = map[domain.Host]string{
	domain.HostMax: "bullish and energetic: ALWAYS use tags like [yells], [shouts], or [excited], trading floor language like \"BUY BUY BUY!\"",
	domain.HostBen: "skeptical and analytical: use tags like [sighs], [deadpan], or [whispers intensely], phrases like \"But have you considered...\"",
}

// writerPrompt is the system prompt handed to the text generator for a
// whole topic's script.
func writerPrompt(topic domain.Topic) string {
	var odds []string
	for _, o := range topic.Outcomes {
		odds = append(odds, fmt.Sprintf("%s: %s", o.Label, o.Percentage()))
	}

	return fmt.Sprintf(`You are a conversation writer for a Jim Cramer-style trading show.
Write dialogue between two hosts discussing this prediction market:

MARKET: %s
CURRENT ODDS: %s
DESCRIPTION: %s

Rules:
- %s is %s.
- %s is %s.
- Each speaker talks for about 60 seconds (150-200 words).
- Every response MUST include [emotion brackets].
- Reference specific odds and what they mean.
- Each turn is a complete thought or argument.

Respond with the dialogue line only, no speaker prefix.`,
		topic.Question,
		strings.Join(odds, " | "),
		topic.Description,
		domain.HostMax.Name(), hostStyles[domain.HostMax],
		domain.HostBen.Name(), hostStyles[domain.HostBen],
	)
}

// fallbackLines keep the show on air when no generator backend is
// configured. Indexed by host, cycled per topic.
var fallbackLines = map[domain.Host][]string{
	domain.HostMax: {
		"[yells] This market is ON FIRE! Look at those odds, people, LOOK AT THEM!",
		"[excited] I'm telling you, the smart money is piling in RIGHT NOW!",
		"[pounding desk] BUY BUY BUY! The volume alone tells the whole story!",
	},
	domain.HostBen: {
		"[sighs] Max, the odds are saying something very different if you actually read them.",
		"[deadpan] Have you considered that the crowd is usually wrong at the extremes?",
		"[whispers intensely] The liquidity here is thinner than your thesis.",
	},
}
