package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conducthotline/hotline_services/internal/platform/distlock"
	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository/memory"
)

const (
	testVirtualNumber = "+15550000000"
	testHoldMusicURL  = "https://example.com/hold.mp3"
)

type testEnv struct {
	store    *memory.Store
	provider *telephony.MockProvider
	audit    *AuditLogger
	pool     *NumberPool
	verifier *Verifier
	router   *Router
	voice    *VoiceRouter
	admin    *EventAdmin
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.NewStore())
}

func newTestEnvWithStore(t *testing.T, store *memory.Store) *testEnv {
	t.Helper()
	logger := discardLogger()
	provider := telephony.NewMockProvider(logger, false, 0)
	audit := NewAuditLogger(store.AuditLogs(), logger)
	pool := NewNumberPool(store, audit, logger)
	verifier := NewVerifier(store, provider, audit, testVirtualNumber, logger)
	return &testEnv{
		store:    store,
		provider: provider,
		audit:    audit,
		pool:     pool,
		verifier: verifier,
		router:   NewRouter(store, pool, verifier, provider, audit, logger),
		voice:    NewVoiceRouter(store, provider, audit, testHoldMusicURL, logger),
		admin:    NewEventAdmin(store, audit, logger),
	}
}

// seedTestEvent builds the standard hotline: "Test event" on 5678 with verified
// organizers Bob (101) and Alice (202) and relays 1111 and 2222 free.
func (e *testEnv) seedTestEvent() domain.Event {
	primary := e.store.AddNumber("5678", "US", domain.NumberPoolEvent)
	e.store.AddNumber("1111", "US", domain.NumberPoolSMSRelay)
	e.store.AddNumber("2222", "US", domain.NumberPoolSMSRelay)
	event := e.store.AddEvent("test-event", "Test event", "US", &primary)
	e.store.AddMember(event.ID, "Bob", "101", true)
	e.store.AddMember(event.ID, "Alice", "202", true)
	return event
}

func (e *testEnv) sent() []telephony.SentSMS {
	return e.provider.SentMessages()
}

func (e *testEnv) sentSince(n int) []telephony.SentSMS {
	return e.provider.SentMessages()[n:]
}

func (e *testEnv) auditKinds() []domain.AuditKind {
	var kinds []domain.AuditKind
	for _, entry := range e.store.AuditEntries() {
		kinds = append(kinds, entry.Kind)
	}
	return kinds
}

func (e *testEnv) mustHandle(t *testing.T, sender, relay, text string) {
	t.Helper()
	require.NoError(t, e.router.HandleMessage(context.Background(), sender, relay, text))
}

func sentSMS(sender, to, message string) telephony.SentSMS {
	return telephony.SentSMS{Sender: sender, To: to, Message: message}
}

func conn(user, relay, name string) [3]string {
	return [3]string{user, relay, name}
}

func connections(store *memory.Store) [][3]string {
	var out [][3]string
	for _, c := range store.Connections() {
		out = append(out, conn(c.UserNumber, c.RelayNumber, c.UserName))
	}
	return out
}

// conflictStore fails the first failures transactions with domain.ErrConflict.
type conflictStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
	attempts int
}

func (s *conflictStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	s.attempts++
	fail := s.attempts <= s.failures
	s.mu.Unlock()
	if fail {
		return s.Store.WithinTx(ctx, func(tx repository.Store) error {
			if err := fn(tx); err != nil {
				return err
			}
			return domain.ErrConflict
		})
	}
	return s.Store.WithinTx(ctx, fn)
}

type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	unlocked int
	err      error
}

func (l *fakeLocker) Lock(_ context.Context, key string) (distlock.Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked++
		return nil
	}, nil
}
