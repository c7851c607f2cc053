package http

import (
	"time"

	"github.com/google/uuid"
)

type NumberResponse struct {
	Number  string `json:"number"`
	Country string `json:"country"`
}

type PrimaryNumberResponse struct {
	PrimaryNumber string `json:"primary_number"`
}

type RemainingRelaysResponse struct {
	Remaining int `json:"remaining"`
}

type BlockRequest struct {
	AuditLogID int64 `json:"audit_log_id" validate:"required,gt=0"`
}

// BlockListEntryResponse never carries the full blocked number.
type BlockListEntryResponse struct {
	ID          int64     `json:"id"`
	NumberLast4 string    `json:"number_last4"`
	BlockedBy   string    `json:"blocked_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatSummaryResponse struct {
	ID               uuid.UUID `json:"id"`
	RelayNumber      string    `json:"relay_number"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type GenericErrorResponse struct {
	Error string `json:"error"`
}
