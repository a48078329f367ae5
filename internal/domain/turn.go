package domain

// DialogueTurn is one unit of dialogue attributed to a single host.
// Turns are immutable once produced and are dispatched exactly once,
// in sequence order.
type DialogueTurn struct {
	Seq  int    `json:"seq"`
	Host Host   `json:"-"`
	Text string `json:"text"`
}

// SpeakerID returns the transport identity for the turn's host.
func (t DialogueTurn) SpeakerID() string {
	return t.Host.SpeakerID()
}
