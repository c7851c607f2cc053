package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/conducthotline/hotline_services/internal/platform/cache"
	"github.com/conducthotline/hotline_services/internal/public_api_service/middleware"
	httptransport "github.com/conducthotline/hotline_services/internal/public_api_service/transport/http"
	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/app"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository/memory"
)

const (
	testPublicHost = "hotline.test"
	eventNumber    = "+14155550100"
	bobNumber      = "+14155550101"
	aliceNumber    = "+14155550102"
	relayNumber    = "+14155550200"
	reporterNumber = "+14155550123"
)

var testJWTSecret = []byte("test-access-secret")

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type testServer struct {
	handler   http.Handler
	store     *memory.Store
	provider  *telephony.MockProvider
	publisher *MockPublisher
	redis     *miniredis.Miniredis
	router    *app.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	store := memory.NewStore()
	provider := telephony.NewMockProvider(logger, false, 0)
	audit := app.NewAuditLogger(store.AuditLogs(), logger)
	pool := app.NewNumberPool(store, audit, logger)
	verifier := app.NewVerifier(store, provider, audit, "+14155550000", logger)
	publisher := new(MockPublisher)
	validate := validator.New()

	telephonyHandler := httptransport.NewTelephonyHandler(
		publisher,
		cache.NewDeduplicator(client, "webhook:sms:", time.Hour),
		app.NewVoiceRouter(store, provider, audit, "", logger),
		validate, "US", testPublicHost, logger,
	)
	adminHandler := httptransport.NewAdminHandler(app.NewEventAdmin(store, audit, logger), pool, verifier, validate, logger)

	return &testServer{
		handler:   httptransport.NewRouter(telephonyHandler, adminHandler, testJWTSecret, logger),
		store:     store,
		provider:  provider,
		publisher: publisher,
		redis:     mr,
		router:    app.NewRouter(store, pool, verifier, provider, audit, logger),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := middleware.AdminClaims{
		Name: "Ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	require.NoError(t, err)
	return token
}
