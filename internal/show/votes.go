package show

import (
	"strconv"
	"strings"
	"time"
)

// ChatMessage is a raw inbound message from the chat transport.
type ChatMessage struct {
	VoterID string
	Text    string
	At      time.Time
}

// ParseVote extracts a vote intent from raw chat text. The grammar is fixed:
// "1", "2", or "!vote N". Anything else is ignored.
func ParseVote(text string) (int, bool) {
	content := strings.ToLower(strings.TrimSpace(text))

	switch content {
	case "1":
		return 1, true
	case "2":
		return 2, true
	}

	if rest, ok := strings.CutPrefix(content, "!vote "); ok {
		slot, err := strconv.Atoi(strings.TrimSpace(rest))
		if err == nil && (slot == 1 || slot == 2) {
			return slot, true
		}
	}

	return 0, false
}
