package domain

// ShowPhase represents the current phase of the show
type ShowPhase string

const (
	PhaseStarting   ShowPhase = "starting"   // Waiting for the first topic
	PhaseDiscussion ShowPhase = "discussion" // Hosts discussing a topic
	PhaseVoting     ShowPhase = "voting"     // Chat voting on the next topic
	PhaseTransition ShowPhase = "transition" // Brief handoff to the winning topic
)

// String returns the string representation of the phase
func (p ShowPhase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p ShowPhase) CanTransitionTo(target ShowPhase) bool {
	// Discussion may repeat itself: when no voting round can open the show
	// re-discusses the current topic.
	validTransitions := map[ShowPhase][]ShowPhase{
		PhaseStarting:   {PhaseDiscussion},
		PhaseDiscussion: {PhaseVoting, PhaseDiscussion},
		PhaseVoting:     {PhaseTransition},
		PhaseTransition: {PhaseDiscussion},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
