package match

import (
	"errors"

	"talk-n-share/internal/livesync"
)

var (
	// ErrNoCandidateFound is recoverable: the caller should offer a retry.
	ErrNoCandidateFound    = errors.New("no match found")
	ErrSessionCreateFailed = errors.New("session could not be created")
	// ErrMutationRejected wraps the reason a like or end was not applied.
	ErrMutationRejected = errors.New("session update rejected")
	ErrSubscriptionLost = livesync.ErrSubscriptionLost

	ErrSessionNotFound  = errors.New("session not found")
	ErrNotParticipant   = errors.New("not a participant of this session")
	ErrSessionEnded     = errors.New("session has ended")
	ErrNotLikeable      = errors.New("only anonymous match sessions can be liked")
	ErrAlreadyInSession = errors.New("already in an active match session")
	ErrBlocked          = errors.New("user is blocked")
	ErrUserInactive     = errors.New("user is suspended")
	ErrUserNotFound     = errors.New("user not found")
	ErrSelfSession      = errors.New("cannot open a session with yourself")
	ErrInvalidMessage   = errors.New("message has no content")
)
