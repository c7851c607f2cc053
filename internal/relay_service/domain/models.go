package domain

import (
	"time"

	"github.com/google/uuid"
)

// NumberPool partitions the number inventory. Values are stored as smallint.
type NumberPool int16

const (
	NumberPoolEvent    NumberPool = 1
	NumberPoolSMSRelay NumberPool = 2
)

func (p NumberPool) String() string {
	switch p {
	case NumberPoolEvent:
		return "EVENT"
	case NumberPoolSMSRelay:
		return "SMS_RELAY"
	default:
		return "UNKNOWN"
	}
}

// Number is a provisioned phone number in E.164 form.
type Number struct {
	ID       int64
	Number   string
	Country  string
	Pool     NumberPool
	Features string
}

// Event is a hotline. PrimaryNumber is empty while no number is assigned.
type Event struct {
	ID              int64
	Slug            string
	Name            string
	Country         string
	PrimaryNumber   string
	PrimaryNumberID *int64
	VoiceGreeting   string
	SMSGreeting     string
}

type EventMember struct {
	ID       int64
	EventID  int64
	Name     string
	Number   string
	Verified bool
}

// SmsChat is the persisted routing record for one conversation.
type SmsChat struct {
	ID          uuid.UUID
	EventID     int64
	RelayNumber string
	Room        *Chatroom
	CreatedAt   time.Time
}

// SmsChatConnection is the (user_number, relay_number) lookup entry pointing at an SmsChat.
type SmsChatConnection struct {
	SmsChatID   uuid.UUID
	UserNumber  string
	RelayNumber string
	UserName    string
}

// SmsChatSummary is the administrative view of a chat; it carries no phone numbers.
type SmsChatSummary struct {
	ID               uuid.UUID
	RelayNumber      string
	ParticipantCount int
	CreatedAt        time.Time
}

type BlockListEntry struct {
	ID        int64
	EventID   int64
	Number    string
	BlockedBy string
	CreatedAt time.Time
}

// Actor identifies the administrator performing an action.
type Actor struct {
	UserID string
	Name   string
}
