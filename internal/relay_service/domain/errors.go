package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict indicates a unique constraint violation, usually a lost race.
	ErrConflict = errors.New("conflicting concurrent write")
	// ErrPoolExhausted means no EVENT number is free in the event's country.
	ErrPoolExhausted = errors.New("number pool exhausted")
	// ErrUnknownParticipant means a relay was requested for someone not in the room.
	ErrUnknownParticipant = errors.New("unknown chatroom participant")
)

// ConversationErrorKind is the closed set of reasons a new conversation cannot start.
type ConversationErrorKind int

const (
	EventDoesNotExist ConversationErrorKind = iota + 1
	NumberBlocked
	NoOrganizersAvailable
	NoRelaysAvailable
)

func (k ConversationErrorKind) String() string {
	switch k {
	case EventDoesNotExist:
		return "event_does_not_exist"
	case NumberBlocked:
		return "number_blocked"
	case NoOrganizersAvailable:
		return "no_organizers_available"
	case NoRelaysAvailable:
		return "no_relays_available"
	default:
		return fmt.Sprintf("conversation_error_%d", int(k))
	}
}

// ConversationError is an expected outcome of conversation creation, answered
// with a canned reply at the boundary.
type ConversationError struct {
	Kind ConversationErrorKind
}

func (e *ConversationError) Error() string {
	return "conversation: " + e.Kind.String()
}

// Is matches any ConversationError of the same kind.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrEventDoesNotExist     = &ConversationError{Kind: EventDoesNotExist}
	ErrNumberBlocked         = &ConversationError{Kind: NumberBlocked}
	ErrNoOrganizersAvailable = &ConversationError{Kind: NoOrganizersAvailable}
	ErrNoRelaysAvailable     = &ConversationError{Kind: NoRelaysAvailable}
)
