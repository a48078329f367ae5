package domain

// Host identifies one of the two show hosts. The set is closed: dialogue
// dispatch switches over it exhaustively instead of looking speakers up by
// string key.
type Host int

const (
	HostMax Host = iota // bullish, energetic
	HostBen             // skeptical, analytical
)

// SpeakerID returns the transport identity the speech room knows the host by.
func (h Host) SpeakerID() string {
	switch h {
	case HostMax:
		return "host-max"
	case HostBen:
		return "host-ben"
	}
	return "host-unknown"
}

// Name returns the host's on-air name.
func (h Host) Name() string {
	switch h {
	case HostMax:
		return "Mad Money Max"
	case HostBen:
		return "Bull Bear Ben"
	}
	return "Unknown"
}

// Other returns the opposite host.
func (h Host) Other() Host {
	if h == HostMax {
		return HostBen
	}
	return HostMax
}

// HostForTurn returns the host speaking turn seq under the fixed parity
// rule: even turns go to Max, odd turns to Ben.
func HostForTurn(seq int) Host {
	if seq%2 == 0 {
		return HostMax
	}
	return HostBen
}
