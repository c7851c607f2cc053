package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

func (s *testServer) seedEvent() domain.Event {
	primary := s.store.AddNumber(eventNumber, "US", domain.NumberPoolEvent)
	s.store.AddNumber(relayNumber, "US", domain.NumberPoolSMSRelay)
	event := s.store.AddEvent("pycon", "PyCon", "US", &primary)
	s.store.AddMember(event.ID, "Bob", bobNumber, true)
	s.store.AddMember(event.ID, "Alice", aliceNumber, true)
	return event
}

func inboundSMSBody(messageID string) map[string]string {
	return map[string]string{
		"msisdn":            "14155550123",
		"to":                "14155550100",
		"messageId":         messageID,
		"text":              "Hello",
		"message-timestamp": "2024-03-01 10:00:00",
	}
}

func TestTelephonyHandler_InboundSMS(t *testing.T) {
	t.Run("NormalizesAndPublishes", func(t *testing.T) {
		s := newTestServer(t)
		var published domain.InboundSMS
		s.publisher.On("Publish", mock.Anything, "sms.incoming.raw.vonage", mock.Anything).
			Run(func(args mock.Arguments) {
				require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &published))
			}).
			Return(nil).Once()

		rr := s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000001"), "")
		assert.Equal(t, http.StatusAccepted, rr.Code)

		assert.Equal(t, "vonage", published.Provider)
		assert.Equal(t, "0A0000001", published.MessageID)
		assert.Equal(t, reporterNumber, published.From)
		assert.Equal(t, eventNumber, published.To)
		assert.Equal(t, "Hello", published.Text)
		assert.False(t, published.ReceivedAt.IsZero())
		s.publisher.AssertExpectations(t)
	})

	t.Run("RedeliveryIsDropped", func(t *testing.T) {
		s := newTestServer(t)
		s.publisher.On("Publish", mock.Anything, "sms.incoming.raw.vonage", mock.Anything).Return(nil).Once()

		assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000001"), "").Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000001"), "").Code)
		s.publisher.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("RedeliveryWithoutMessageIDIsFingerprinted", func(t *testing.T) {
		s := newTestServer(t)
		s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody(""), "").Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody(""), "").Code)

		other := inboundSMSBody("")
		other["text"] = "Hello again"
		assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", other, "").Code)
		s.publisher.AssertNumberOfCalls(t, "Publish", 2)
	})

	t.Run("PublishFailureAllowsRedelivery", func(t *testing.T) {
		s := newTestServer(t)
		s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()
		s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000002"), "").Code)
		assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000002"), "").Code)
		s.publisher.AssertExpectations(t)
	})

	t.Run("RedisDownStillQueues", func(t *testing.T) {
		s := newTestServer(t)
		s.redis.Close()
		s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", inboundSMSBody("0A0000003"), "").Code)
		s.publisher.AssertExpectations(t)
	})

	t.Run("RejectsBadPayloads", func(t *testing.T) {
		s := newTestServer(t)

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", "not json", "").Code)

		missing := inboundSMSBody("0A0000004")
		delete(missing, "msisdn")
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", missing, "").Code)

		invalid := inboundSMSBody("0A0000005")
		invalid["msisdn"] = "not-a-number"
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/telephony/inbound-sms/vonage", invalid, "").Code)

		s.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTelephonyHandler_InboundCall(t *testing.T) {
	s := newTestServer(t)
	s.seedEvent()

	rr := s.do(t, http.MethodPost, "/telephony/inbound-call", map[string]string{
		"from":              "14155550123",
		"to":                "14155550100",
		"uuid":              "call-1",
		"conversation_uuid": "CON-1",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var script []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &script))
	require.Len(t, script, 2)
	assert.Equal(t, "talk", script[0]["action"])
	assert.Equal(t, "conversation", script[1]["action"])
	assert.Equal(t, "CON-1", script[1]["name"])
	assert.Equal(t, false, script[1]["startOnEnter"])

	answerURL := "https://hotline.test/telephony/connect-to-conference/CON-1/call-1"
	assert.Equal(t, []telephony.CallRequest{
		{To: bobNumber, From: eventNumber, AnswerURL: answerURL, AnswerMethod: http.MethodPost},
		{To: aliceNumber, From: eventNumber, AnswerURL: answerURL, AnswerMethod: http.MethodPost},
	}, s.provider.Calls())

	t.Run("MissingFields", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/telephony/inbound-call", map[string]string{"from": "14155550123"}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTelephonyHandler_ConnectToConference(t *testing.T) {
	s := newTestServer(t)
	s.seedEvent()

	rr := s.do(t, http.MethodPost, "/telephony/connect-to-conference/CON-1/call-1", map[string]string{
		"from": "14155550100",
		"to":   "14155550102",
		"uuid": "leg-2",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var script []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &script))
	require.Len(t, script, 2)
	assert.Equal(t, "Hello Alice, connecting you to PyCon.", script[0]["text"])
	assert.Equal(t, "CON-1", script[1]["name"])
	assert.Equal(t, true, script[1]["endOnExit"])
	assert.Equal(t, []telephony.SpokenText{{CallID: "call-1", Text: "Alice is joining this call."}}, s.provider.Speech())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "public_api_service_http_requests_total")
}
