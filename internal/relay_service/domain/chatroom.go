package domain

import (
	"context"
	"errors"
	"fmt"
)

// Participant is one member of a chat: their display name, real number and the
// relay number they see the conversation through.
type Participant struct {
	Name   string
	Number string
	Relay  string
}

// SendFunc delivers one message. sender is the number the recipient sees.
type SendFunc func(ctx context.Context, sender, to, message string) error

// Chatroom maps real numbers to participants for a single conversation.
// It does no I/O and knows nothing about persistence.
type Chatroom struct {
	participants []Participant
	index        map[string]int
}

func NewChatroom() *Chatroom {
	return &Chatroom{index: make(map[string]int)}
}

// AddParticipant inserts a participant or overwrites the one with the same real number.
// An overwritten participant keeps its position.
func (c *Chatroom) AddParticipant(name, number, relay string) {
	p := Participant{Name: name, Number: number, Relay: relay}
	if i, ok := c.index[number]; ok {
		c.participants[i] = p
		return
	}
	c.index[number] = len(c.participants)
	c.participants = append(c.participants, p)
}

// RemoveParticipant removes the participant with the given real number.
func (c *Chatroom) RemoveParticipant(number string) (Participant, bool) {
	i, ok := c.index[number]
	if !ok {
		return Participant{}, false
	}
	removed := c.participants[i]
	c.participants = append(c.participants[:i], c.participants[i+1:]...)
	delete(c.index, number)
	for j := i; j < len(c.participants); j++ {
		c.index[c.participants[j].Number] = j
	}
	return removed, true
}

func (c *Chatroom) Participant(number string) (Participant, bool) {
	i, ok := c.index[number]
	if !ok {
		return Participant{}, false
	}
	return c.participants[i], true
}

// Participants returns a copy in insertion order.
func (c *Chatroom) Participants() []Participant {
	out := make([]Participant, len(c.participants))
	copy(out, c.participants)
	return out
}

func (c *Chatroom) Len() int {
	return len(c.participants)
}

// Relay forwards message from senderNumber to every other participant, prefixed
// with the sender's name. Each recipient receives it from their own relay number.
// A failed send does not stop delivery to the rest; all failures are returned joined.
func (c *Chatroom) Relay(ctx context.Context, senderNumber, message string, send SendFunc) error {
	sender, ok := c.Participant(senderNumber)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, senderNumber)
	}
	text := fmt.Sprintf("%s: %s", sender.Name, message)

	var errs []error
	for _, p := range c.Participants() {
		if p.Number == sender.Number {
			continue
		}
		if err := send(ctx, p.Relay, p.Number, text); err != nil {
			errs = append(errs, fmt.Errorf("relay to %s: %w", p.Number, err))
		}
	}
	return errors.Join(errs...)
}
