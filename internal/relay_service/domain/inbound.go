package domain

import "time"

// InboundSMS is a webhook-delivered text after boundary validation and normalization.
// From and To are E.164.
type InboundSMS struct {
	Provider   string    `json:"provider"`
	MessageID  string    `json:"message_id,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}
