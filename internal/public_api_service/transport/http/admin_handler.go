package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conducthotline/hotline_services/internal/public_api_service/middleware"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

// EventService is satisfied by *app.EventAdmin.
type EventService interface {
	EventBySlug(ctx context.Context, slug string) (*domain.Event, error)
	Member(ctx context.Context, event *domain.Event, memberID int64) (*domain.EventMember, error)
	BlockFromAuditLog(ctx context.Context, event *domain.Event, auditLogID int64, actor domain.Actor) (*domain.BlockListEntry, error)
	Unblock(ctx context.Context, event *domain.Event, entryID int64, actor domain.Actor) error
	ListChats(ctx context.Context, event *domain.Event) ([]domain.SmsChatSummary, error)
	DeleteChat(ctx context.Context, event *domain.Event, chatID uuid.UUID, actor domain.Actor) error
}

// NumberService is satisfied by *app.NumberPool.
type NumberService interface {
	FindUnusedEventNumbers(ctx context.Context, country string) ([]domain.Number, error)
	AcquirePrimaryNumber(ctx context.Context, event *domain.Event, actor domain.Actor) (string, error)
	ReleasePrimaryNumber(ctx context.Context, event *domain.Event, actor domain.Actor) error
	RemainingRelays(ctx context.Context, event *domain.Event) (int, error)
}

// VerificationService is satisfied by *app.Verifier.
type VerificationService interface {
	StartMemberVerification(ctx context.Context, event *domain.Event, member *domain.EventMember) error
}

// AdminHandler serves the organizer API. Every route expects an Actor in the context.
type AdminHandler struct {
	events   EventService
	numbers  NumberService
	verifier VerificationService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(events EventService, numbers NumberService, verifier VerificationService, validate *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		events:   events,
		numbers:  numbers,
		verifier: verifier,
		validate: validate,
		logger:   logger.With("handler", "admin"),
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{slug}", func(r chi.Router) {
		r.Get("/numbers/available", h.withEvent(h.listAvailableNumbers))
		r.Post("/primary-number", h.withEvent(h.acquirePrimaryNumber))
		r.Delete("/primary-number", h.withEvent(h.releasePrimaryNumber))
		r.Get("/relays/remaining", h.withEvent(h.remainingRelays))
		r.Post("/blocklist", h.withEvent(h.block))
		r.Delete("/blocklist/{entry_id}", h.withEvent(h.unblock))
		r.Get("/chats", h.withEvent(h.listChats))
		r.Delete("/chats/{chat_id}", h.withEvent(h.deleteChat))
		r.Post("/members/{member_id}/verification", h.withEvent(h.startVerification))
	})
}

type eventHandlerFunc func(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger)

// withEvent resolves the {slug} event and the caller before running next.
func (h *AdminHandler) withEvent(next eventHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := middleware.ActorFromContext(ctx)
		if !ok {
			h.logger.ErrorContext(ctx, "Actor not found in context. AuthMiddleware must run first.")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "user_id", actor.UserID)

		event, err := h.events.EventBySlug(ctx, chi.URLParam(r, "slug"))
		if err != nil {
			h.writeDomainError(w, r, logger, err)
			return
		}
		next(w, r, event, actor, logger.With("event_id", event.ID))
	}
}

func (h *AdminHandler) listAvailableNumbers(w http.ResponseWriter, r *http.Request, event *domain.Event, _ domain.Actor, logger *slog.Logger) {
	numbers, err := h.numbers.FindUnusedEventNumbers(r.Context(), event.Country)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	resp := make([]NumberResponse, 0, len(numbers))
	for _, n := range numbers {
		resp = append(resp, NumberResponse{Number: n.Number, Country: n.Country})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) acquirePrimaryNumber(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger) {
	number, err := h.numbers.AcquirePrimaryNumber(r.Context(), event, actor)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PrimaryNumberResponse{PrimaryNumber: number})
}

func (h *AdminHandler) releasePrimaryNumber(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger) {
	if err := h.numbers.ReleasePrimaryNumber(r.Context(), event, actor); err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) remainingRelays(w http.ResponseWriter, r *http.Request, event *domain.Event, _ domain.Actor, logger *slog.Logger) {
	n, err := h.numbers.RemainingRelays(r.Context(), event)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RemainingRelaysResponse{Remaining: n})
}

func (h *AdminHandler) block(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	entry, err := h.events.BlockFromAuditLog(r.Context(), event, req.AuditLogID, actor)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, BlockListEntryResponse{
		ID:          entry.ID,
		NumberLast4: domain.Last4(entry.Number),
		BlockedBy:   entry.BlockedBy,
		CreatedAt:   entry.CreatedAt,
	})
}

func (h *AdminHandler) unblock(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entry_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid blocklist entry id")
		return
	}
	if err := h.events.Unblock(r.Context(), event, entryID, actor); err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listChats(w http.ResponseWriter, r *http.Request, event *domain.Event, _ domain.Actor, logger *slog.Logger) {
	chats, err := h.events.ListChats(r.Context(), event)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	resp := make([]ChatSummaryResponse, 0, len(chats))
	for _, c := range chats {
		resp = append(resp, ChatSummaryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) deleteChat(w http.ResponseWriter, r *http.Request, event *domain.Event, actor domain.Actor, logger *slog.Logger) {
	chatID, err := uuid.Parse(chi.URLParam(r, "chat_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chat id")
		return
	}
	if err := h.events.DeleteChat(r.Context(), event, chatID, actor); err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) startVerification(w http.ResponseWriter, r *http.Request, event *domain.Event, _ domain.Actor, logger *slog.Logger) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "member_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid member id")
		return
	}
	member, err := h.events.Member(r.Context(), event, memberID)
	if err != nil {
		h.writeDomainError(w, r, logger, err)
		return
	}
	if member.Verified {
		writeError(w, http.StatusConflict, "Member is already verified")
		return
	}
	if err := h.verifier.StartMemberVerification(r.Context(), event, member); err != nil {
		logger.ErrorContext(r.Context(), "Failed to start member verification", "member_id", memberID, "error", err)
		writeError(w, http.StatusBadGateway, "Could not send the verification message")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification sent"})
}

func (h *AdminHandler) writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrPoolExhausted):
		writeError(w, http.StatusConflict, "No numbers are available for this event's country")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Conflicting update, try again")
	default:
		logger.ErrorContext(r.Context(), "Admin request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, GenericErrorResponse{Error: message})
}
