package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

const (
	unusedEventNumbersLimit = 5
	remainingRelaysScanSize = 1000
)

// NumberPool hands out event primary numbers and per-conversation relay numbers.
type NumberPool struct {
	store  repository.Store
	audit  *AuditLogger
	logger *slog.Logger
}

func NewNumberPool(store repository.Store, audit *AuditLogger, logger *slog.Logger) *NumberPool {
	return &NumberPool{
		store:  store,
		audit:  audit,
		logger: logger.With("component", "number_pool"),
	}
}

// FindUnusedEventNumbers lists EVENT pool numbers of country that no event uses.
func (p *NumberPool) FindUnusedEventNumbers(ctx context.Context, country string) ([]domain.Number, error) {
	return p.store.Numbers().ListUnusedEventNumbers(ctx, country, unusedEventNumbersLimit)
}

// AcquirePrimaryNumber assigns the event an unused EVENT number of its country
// and returns it. An event that already has a primary number keeps it.
func (p *NumberPool) AcquirePrimaryNumber(ctx context.Context, event *domain.Event, actor domain.Actor) (string, error) {
	var (
		number   string
		acquired bool
	)
	attempt := func() error {
		acquired = false
		return p.store.WithinTx(ctx, func(tx repository.Store) error {
			current, err := tx.Events().GetByIDForUpdate(ctx, event.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return fmt.Errorf("event %d: %w", event.ID, domain.ErrNotFound)
			}
			if current.PrimaryNumber != "" {
				number = current.PrimaryNumber
				return nil
			}

			n, err := tx.Numbers().LockUnusedEventNumber(ctx, current.Country)
			if err != nil {
				return err
			}
			if n == nil {
				return fmt.Errorf("no %s number in %s: %w", domain.NumberPoolEvent, current.Country, domain.ErrPoolExhausted)
			}
			if err := tx.Events().SetPrimaryNumber(ctx, current.ID, n); err != nil {
				return err
			}
			number, acquired = n.Number, true
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, domain.ErrConflict) {
		txConflictRetriesCounter.Inc()
		p.logger.WarnContext(ctx, "Primary number claimed concurrently, retrying", "event_id", event.ID)
		err = attempt()
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to acquire primary number", "event_id", event.ID, "error", err)
		return "", err
	}

	if acquired {
		p.logger.InfoContext(ctx, "Primary number acquired", "event_id", event.ID, "number", number)
		p.audit.Log(ctx, domain.AuditLogEntry{
			Kind:        domain.AuditNumberAcquired,
			Description: fmt.Sprintf("%s acquired the number %s.", actor.Name, number),
			EventID:     eventRef(event),
			User:        actor.UserID,
		})
	}
	return number, nil
}

// ReleasePrimaryNumber returns the event's primary number to the pool. Releasing
// an event without a number changes nothing and is not an error.
func (p *NumberPool) ReleasePrimaryNumber(ctx context.Context, event *domain.Event, actor domain.Actor) error {
	var released string
	err := p.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Events().GetByIDForUpdate(ctx, event.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("event %d: %w", event.ID, domain.ErrNotFound)
		}
		if current.PrimaryNumber == "" {
			return nil
		}
		released = current.PrimaryNumber
		return tx.Events().SetPrimaryNumber(ctx, current.ID, nil)
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to release primary number", "event_id", event.ID, "error", err)
		return err
	}
	if released == "" {
		p.logger.DebugContext(ctx, "Event has no primary number to release", "event_id", event.ID)
		return nil
	}

	p.logger.InfoContext(ctx, "Primary number released", "event_id", event.ID, "number", released)
	p.audit.Log(ctx, domain.AuditLogEntry{
		Kind:        domain.AuditNumberReleased,
		Description: fmt.Sprintf("%s released the number %s.", actor.Name, released),
		EventID:     eventRef(event),
		User:        actor.UserID,
	})
	return nil
}

// FindUnusedRelayNumber picks an SMS_RELAY number of the event's country that is
// not the relay of any of the event's chats, not bound to any of organizerNumbers
// in any chat of any event, and not the event's own primary number. It returns ""
// when none is left. tx should be the caller's open transaction.
func (p *NumberPool) FindUnusedRelayNumber(ctx context.Context, tx repository.Store, event *domain.Event, organizerNumbers []string) (string, error) {
	excluded, err := p.excludedRelays(ctx, tx, event, organizerNumbers)
	if err != nil {
		return "", err
	}
	numbers, err := tx.Numbers().ListUnusedRelayNumbers(ctx, event.Country, excluded, 1)
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		p.logger.WarnContext(ctx, "No relay number available", "event_id", event.ID, "excluded", len(excluded))
		return "", nil
	}
	return numbers[0].Number, nil
}

// RemainingRelays counts relay numbers a new conversation could still use with
// the event's current verified members.
func (p *NumberPool) RemainingRelays(ctx context.Context, event *domain.Event) (int, error) {
	members, err := p.store.Members().ListVerified(ctx, event.ID)
	if err != nil {
		return 0, err
	}
	excluded, err := p.excludedRelays(ctx, p.store, event, memberNumbers(members))
	if err != nil {
		return 0, err
	}
	numbers, err := p.store.Numbers().ListUnusedRelayNumbers(ctx, event.Country, excluded, remainingRelaysScanSize)
	if err != nil {
		return 0, err
	}
	return len(numbers), nil
}

func (p *NumberPool) excludedRelays(ctx context.Context, tx repository.Store, event *domain.Event, organizerNumbers []string) ([]string, error) {
	eventRelays, err := tx.SmsChats().RelayNumbersForEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("relays for event %d: %w", event.ID, err)
	}
	organizerRelays, err := tx.SmsChats().RelayNumbersForUsers(ctx, organizerNumbers)
	if err != nil {
		return nil, fmt.Errorf("relays for organizers: %w", err)
	}

	seen := make(map[string]bool)
	var excluded []string
	add := func(numbers ...string) {
		for _, n := range numbers {
			if n != "" && !seen[n] {
				seen[n] = true
				excluded = append(excluded, n)
			}
		}
	}
	add(eventRelays...)
	add(organizerRelays...)
	add(event.PrimaryNumber)
	return excluded, nil
}

func memberNumbers(members []domain.EventMember) []string {
	numbers := make([]string, 0, len(members))
	for _, m := range members {
		numbers = append(numbers, m.Number)
	}
	return numbers
}
