package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/conducthotline/hotline_services/internal/platform/cache"
	"github.com/conducthotline/hotline_services/internal/platform/messagebroker"
	"github.com/conducthotline/hotline_services/internal/platform/phone"
	"github.com/conducthotline/hotline_services/internal/relay_service/app"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

// WebhookDeduplicator is satisfied by *cache.Deduplicator.
type WebhookDeduplicator interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// CallAnswerer is satisfied by *app.VoiceRouter.
type CallAnswerer interface {
	HandleInboundCall(ctx context.Context, reporterNumber, eventNumber, conversationID, callID, host string) (domain.CallScript, error)
	HandleMemberAnswer(ctx context.Context, eventNumber, memberNumber, originConversationID, originCallID string) (domain.CallScript, error)
}

// TelephonyHandler serves the provider webhooks.
type TelephonyHandler struct {
	publisher     messagebroker.Publisher
	dedup         WebhookDeduplicator
	voice         CallAnswerer
	validate      *validator.Validate
	defaultRegion string
	publicHost    string
	logger        *slog.Logger
}

func NewTelephonyHandler(publisher messagebroker.Publisher, dedup WebhookDeduplicator, voice CallAnswerer,
	validate *validator.Validate, defaultRegion, publicHost string, logger *slog.Logger) *TelephonyHandler {
	return &TelephonyHandler{
		publisher:     publisher,
		dedup:         dedup,
		voice:         voice,
		validate:      validate,
		defaultRegion: defaultRegion,
		publicHost:    publicHost,
		logger:        logger.With("handler", "telephony"),
	}
}

func (h *TelephonyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/telephony", func(r chi.Router) {
		r.Post("/inbound-sms/{provider_name}", h.HandleInboundSMS)
		r.Post("/inbound-call", h.HandleInboundCall)
		r.Post("/connect-to-conference/{conversation_uuid}/{call_uuid}", h.HandleConnectToConference)
	})
}

// HandleInboundSMS validates and normalizes an inbound SMS and queues it for the relay service.
func (h *TelephonyHandler) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	providerName := chi.URLParam(r, "provider_name")
	if providerName == "" {
		http.Error(w, "Provider name is required", http.StatusBadRequest)
		return
	}
	logger = logger.With("provider_name", providerName)

	var req InboundSMSWebhook
	if !h.decode(w, r, logger, &req) {
		return
	}

	from, err := phone.NormalizeProviderNumber(req.MSISDN, h.defaultRegion)
	if err != nil {
		logger.WarnContext(ctx, "Inbound SMS has an invalid sender number", "error", err)
		http.Error(w, "Invalid sender number", http.StatusBadRequest)
		return
	}
	to, err := phone.NormalizeProviderNumber(req.To, h.defaultRegion)
	if err != nil {
		logger.WarnContext(ctx, "Inbound SMS has an invalid recipient number", "error", err)
		http.Error(w, "Invalid recipient number", http.StatusBadRequest)
		return
	}

	dedupKey := providerName + ":" + req.MessageID
	if req.MessageID == "" {
		dedupKey = providerName + ":fp:" + cache.Fingerprint(from, to, req.Text, req.Timestamp)
	}
	first, err := h.dedup.FirstSeen(ctx, dedupKey)
	if err != nil {
		// Fail open.
		logger.WarnContext(ctx, "Webhook dedup unavailable, processing anyway", "error", err)
		first = true
	}
	if !first {
		webhookDuplicatesCounter.WithLabelValues(providerName).Inc()
		logger.InfoContext(ctx, "Duplicate inbound SMS webhook ignored", "message_id", req.MessageID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	msg := domain.InboundSMS{
		Provider:   providerName,
		MessageID:  req.MessageID,
		From:       from,
		To:         to,
		Text:       req.Text,
		ReceivedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal inbound SMS for NATS", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	subject := app.InboundSMSSubjectPrefix + providerName
	if err := h.publisher.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish inbound SMS to NATS", "error", err, "subject", subject)
		if ferr := h.dedup.Forget(context.WithoutCancel(ctx), dedupKey); ferr != nil {
			logger.WarnContext(ctx, "Failed to clear dedup key after publish failure", "error", ferr)
		}
		http.Error(w, "Failed to queue inbound SMS for processing", http.StatusInternalServerError)
		return
	}

	logger.InfoContext(ctx, "Inbound SMS queued", "subject", subject, "message_id", req.MessageID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleInboundCall answers a reporter's call with a call script.
func (h *TelephonyHandler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req InboundCallWebhook
	if !h.decode(w, r, logger, &req) {
		return
	}
	from, to, ok := h.normalizePair(ctx, w, logger.With("call_uuid", req.UUID), req.From, req.To)
	if !ok {
		return
	}

	host := h.publicHost
	if host == "" {
		host = r.Host
	}
	script, err := h.voice.HandleInboundCall(ctx, from, to, req.ConversationUUID, req.UUID, host)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to answer inbound call", "error", err, "call_uuid", req.UUID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

// HandleConnectToConference answers a member's outbound leg.
func (h *TelephonyHandler) HandleConnectToConference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "conversation_uuid")
	callID := chi.URLParam(r, "call_uuid")
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "origin_call_uuid", callID)

	var req MemberAnswerWebhook
	if !h.decode(w, r, logger, &req) {
		return
	}
	eventNumber, memberNumber, ok := h.normalizePair(ctx, w, logger, req.From, req.To)
	if !ok {
		return
	}

	script, err := h.voice.HandleMemberAnswer(ctx, eventNumber, memberNumber, conversationID, callID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect member to conference", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

func (h *TelephonyHandler) decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	ctx := r.Context()
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(dst); err != nil {
		logger.WarnContext(ctx, "Failed to decode webhook JSON", "error", err)
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	if err := h.validate.StructCtx(ctx, dst); err != nil {
		logger.WarnContext(ctx, "Webhook validation failed", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *TelephonyHandler) normalizePair(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, a, b string) (string, string, bool) {
	na, err := phone.NormalizeProviderNumber(a, h.defaultRegion)
	if err == nil {
		var nb string
		if nb, err = phone.NormalizeProviderNumber(b, h.defaultRegion); err == nil {
			return na, nb, true
		}
	}
	logger.WarnContext(ctx, "Webhook has an invalid phone number", "error", err)
	http.Error(w, "Invalid phone number", http.StatusBadRequest)
	return "", "", false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
