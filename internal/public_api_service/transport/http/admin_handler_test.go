package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "github.com/conducthotline/hotline_services/internal/public_api_service/transport/http"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

func TestAdminHandler_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.seedEvent()

	rr := s.do(t, http.MethodGet, "/api/v1/events/pycon/chats", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminHandler_UnknownEvent(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/api/v1/events/nope/chats", nil, adminToken(t))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminHandler_PrimaryNumber(t *testing.T) {
	s := newTestServer(t)
	token := adminToken(t)
	s.store.AddNumber("+14155550300", "US", domain.NumberPoolEvent)
	s.store.AddNumber("+442071838750", "GB", domain.NumberPoolEvent)
	s.store.AddEvent("newconf", "New Conf", "US", nil)

	rr := s.do(t, http.MethodGet, "/api/v1/events/newconf/numbers/available", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var available []httptransport.NumberResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &available))
	assert.Equal(t, []httptransport.NumberResponse{{Number: "+14155550300", Country: "US"}}, available)

	rr = s.do(t, http.MethodPost, "/api/v1/events/newconf/primary-number", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var acquired httptransport.PrimaryNumberResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &acquired))
	assert.Equal(t, "+14155550300", acquired.PrimaryNumber)

	entries := s.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Ada acquired the number +14155550300.", entries[0].Description)
	assert.Equal(t, "user-1", entries[0].User)

	rr = s.do(t, http.MethodDelete, "/api/v1/events/newconf/primary-number", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	// Releasing again is harmless.
	rr = s.do(t, http.MethodDelete, "/api/v1/events/newconf/primary-number", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Len(t, s.store.AuditEntries(), 2)

	t.Run("PoolExhausted", func(t *testing.T) {
		s.store.AddEvent("other", "Other", "GB", nil)
		s.store.AddEvent("third", "Third", "GB", nil)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/events/other/primary-number", nil, token).Code)
		rr := s.do(t, http.MethodPost, "/api/v1/events/third/primary-number", nil, token)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestAdminHandler_BlocklistAndChats(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	token := adminToken(t)
	s.seedEvent()
	require.NoError(t, s.router.HandleMessage(ctx, reporterNumber, eventNumber, "Hello"))

	rr := s.do(t, http.MethodGet, "/api/v1/events/pycon/relays/remaining", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"remaining":0}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/v1/events/pycon/chats", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var chats []httptransport.ChatSummaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, relayNumber, chats[0].RelayNumber)
	assert.Equal(t, 3, chats[0].ParticipantCount)
	assert.NotContains(t, rr.Body.String(), reporterNumber)

	started := s.store.AuditEntries()[0]
	rr = s.do(t, http.MethodPost, "/api/v1/events/pycon/blocklist", map[string]int64{"audit_log_id": started.ID}, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var entry httptransport.BlockListEntryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	assert.Equal(t, "0123", entry.NumberLast4)
	assert.Equal(t, "Ada", entry.BlockedBy)
	assert.NotContains(t, rr.Body.String(), reporterNumber)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/events/pycon/blocklist", map[string]int64{}, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/events/pycon/blocklist", map[string]int64{"audit_log_id": 9999}, token).Code)

	path := fmt.Sprintf("/api/v1/events/pycon/blocklist/%d", entry.ID)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/v1/events/pycon/blocklist/abc", nil, token).Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/v1/events/pycon/chats/not-a-uuid", nil, token).Code)
	chatPath := "/api/v1/events/pycon/chats/" + chats[0].ID.String()
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, chatPath, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, chatPath, nil, token).Code)

	rr = s.do(t, http.MethodGet, "/api/v1/events/pycon/relays/remaining", nil, token)
	assert.JSONEq(t, `{"remaining":1}`, rr.Body.String())
}

func TestAdminHandler_MemberVerification(t *testing.T) {
	s := newTestServer(t)
	token := adminToken(t)
	event := s.seedEvent()
	pending := s.store.AddMember(event.ID, "Carol", "+14155550103", false)
	verified, err := s.store.Members().GetByNumber(context.Background(), bobNumber)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/v1/events/pycon/members/%d/verification", pending.ID)
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, path, nil, token).Code)

	sent := s.provider.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, eventNumber, sent[0].Sender)
	assert.Equal(t, "+14155550103", sent[0].To)
	assert.Contains(t, sent[0].Message, "PyCon")

	path = fmt.Sprintf("/api/v1/events/pycon/members/%d/verification", verified.ID)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, path, nil, token).Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/events/pycon/members/9999/verification", nil, token).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/events/pycon/members/x/verification", nil, token).Code)

	t.Run("SendFailure", func(t *testing.T) {
		s.provider.FailSend = true
		defer func() { s.provider.FailSend = false }()
		path := fmt.Sprintf("/api/v1/events/pycon/members/%d/verification", pending.ID)
		assert.Equal(t, http.StatusBadGateway, s.do(t, http.MethodPost, path, nil, token).Code)
	})
}
