package domain

import "errors"

// Domain errors
var (
	ErrNoRoundOpen = errors.New("no voting round open")
	ErrInvalidSlot = errors.New("invalid vote slot")
	ErrNoTopics    = errors.New("no topics available")
	ErrNotEnoughTopics = errors.New("not enough eligible topics")
	ErrMissingVoter    = errors.New("voter identity required")
)
