package services

import "errors"

// Sentinel errors surfaced to handlers. Anything else wrapped around a
// database failure is treated as internal.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrNotJoined             = errors.New("challenge not joined")
	ErrAlreadyJoined         = errors.New("challenge already joined")
	ErrChallengeFull         = errors.New("challenge is full")
	ErrAlreadyCompletedToday = errors.New("challenge already completed today")
	ErrBadgeNotEarned        = errors.New("badge not earned")
	ErrInvalidBadgeOrder     = errors.New("invalid representative badge order")
)
