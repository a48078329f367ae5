package domain

import "time"

// Candidate slots a vote can target.
const (
	SlotOne = 1
	SlotTwo = 2
)

// Vote represents a single vote for a candidate slot. Within a round a
// voter's later vote replaces their earlier one.
type Vote struct {
	VoterID string    `json:"voterId"`
	Slot    int       `json:"slot"`
	At      time.Time `json:"at"`
}

// NewVote creates a new vote stamped with the current time.
func NewVote(voterID string, slot int) Vote {
	return Vote{
		VoterID: voterID,
		Slot:    slot,
		At:      time.Now(),
	}
}

// ValidSlot reports whether slot names one of the two candidates.
func ValidSlot(slot int) bool {
	return slot == SlotOne || slot == SlotTwo
}
