package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

// AuditLogger appends to the audit log. It never fails its caller.
type AuditLogger struct {
	repo   repository.AuditLogRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLogger(repo repository.AuditLogRepository, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		repo:   repo,
		logger: logger.With("component", "audit_logger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuditLogger) Log(ctx context.Context, entry domain.AuditLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}
	if err := a.repo.Create(ctx, &entry); err != nil {
		auditLogFailuresCounter.Inc()
		a.logger.ErrorContext(ctx, "Failed to write audit log entry", "kind", entry.Kind.String(), "error", err)
		return
	}
	a.logger.DebugContext(ctx, "Audit log entry written", "id", entry.ID, "kind", entry.Kind.String())
}

func eventRef(event *domain.Event) *int64 {
	if event == nil {
		return nil
	}
	id := event.ID
	return &id
}
