package match

import (
	"fmt"
	"time"

	"talk-n-share/internal/models"
)

type Event string

const (
	EventLike Event = "like"
	EventEnd  Event = "end"
)

type Outcome int

const (
	// Applied means the record changed and the version advanced.
	Applied Outcome = iota
	// Unchanged means the event was accepted but had nothing to do.
	Unchanged
	// Rejected means the event is not allowed from the current state.
	Rejected
)

// Transition is one allowed edge of the session lifecycle.
type Transition struct {
	From  models.SessionStatus
	Event Event
	To    models.SessionStatus
}

var transitionsTable = []Transition{
	{From: models.StatusActive, Event: EventLike, To: models.StatusActive},
	{From: models.StatusActive, Event: EventEnd, To: models.StatusEnded},
	// ending twice is harmless; liking an ended session is not listed
	{From: models.StatusEnded, Event: EventEnd, To: models.StatusEnded},
}

// TransitionFor returns the allowed transition for a status and event.
func TransitionFor(from models.SessionStatus, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Apply computes the record after ev is performed by actor. The input is not
// modified. It is the in-memory twin of the conditional updates the store
// runs, and classifies why a store update touched no row.
func Apply(s models.MatchSession, ev Event, actor string, now time.Time) (models.MatchSession, Outcome, error) {
	slot := s.SlotOf(actor)
	if slot == models.SlotNone && ev == EventLike {
		return s, Rejected, ErrNotParticipant
	}

	tr, ok := TransitionFor(s.Status, ev)
	if !ok {
		return s, Rejected, fmt.Errorf("%w: %w", ErrMutationRejected, ErrSessionEnded)
	}

	switch ev {
	case EventLike:
		if s.Kind != models.KindEphemeral {
			return s, Rejected, fmt.Errorf("%w: %w", ErrMutationRejected, ErrNotLikeable)
		}
		if s.LikedBy(slot) {
			return s, Unchanged, nil
		}
		if slot == models.SlotA {
			s.LikedByA = true
		} else {
			s.LikedByB = true
		}
		s.IsRevealed = s.LikedByA && s.LikedByB

	case EventEnd:
		if s.Status == tr.To {
			return s, Unchanged, nil
		}
		s.Status = tr.To
		s.EndedAt = &now
		by := actor
		s.EndedBy = &by

	default:
		return s, Rejected, fmt.Errorf("%w: unknown event %q", ErrMutationRejected, ev)
	}

	s.Version++
	s.UpdatedAt = now
	return s, Applied, nil
}
