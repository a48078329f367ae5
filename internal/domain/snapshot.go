package domain

// Snapshot is an immutable point-in-time copy of the show's state, published
// to viewers through the broadcaster. The version number strictly increases
// with every published snapshot; subscribers may use it to detect missed
// updates.
type Snapshot struct {
	Phase            ShowPhase   `json:"phase"`
	CurrentTopic     *TopicInfo  `json:"current_topic"`
	CandidateTopics  []TopicInfo `json:"candidate_topics"`
	VoteTally        map[int]int `json:"vote_tally"`
	VotingEndsAt     *int64      `json:"voting_ends_at"` // epoch seconds, null outside voting
	CurrentSpeaker   string      `json:"current_speaker"`
	MarketsDiscussed int         `json:"markets_discussed"`
	TotalVotes       int         `json:"total_votes"`
	Version          uint64      `json:"version"`
}

// NewSnapshot returns the initial snapshot at process start.
func NewSnapshot() Snapshot {
	return Snapshot{
		Phase:     PhaseStarting,
		VoteTally: map[int]int{SlotOne: 0, SlotTwo: 0},
	}
}

// Clone returns a deep copy so a snapshot handed out is never aliased to the
// writer's working maps and slices.
func (s Snapshot) Clone() Snapshot {
	out := s

	if s.CurrentTopic != nil {
		t := cloneTopicInfo(*s.CurrentTopic)
		out.CurrentTopic = &t
	}

	if s.CandidateTopics != nil {
		out.CandidateTopics = make([]TopicInfo, len(s.CandidateTopics))
		for i, c := range s.CandidateTopics {
			out.CandidateTopics[i] = cloneTopicInfo(c)
		}
	}

	if s.VoteTally != nil {
		out.VoteTally = make(map[int]int, len(s.VoteTally))
		for k, v := range s.VoteTally {
			out.VoteTally[k] = v
		}
	}

	if s.VotingEndsAt != nil {
		v := *s.VotingEndsAt
		out.VotingEndsAt = &v
	}

	return out
}

func cloneTopicInfo(t TopicInfo) TopicInfo {
	out := t
	if t.Odds != nil {
		out.Odds = make(map[string]string, len(t.Odds))
		for k, v := range t.Odds {
			out.Odds[k] = v
		}
	}
	return out
}
