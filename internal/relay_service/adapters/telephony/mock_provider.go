package telephony

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SentSMS is one message captured by MockProvider.
type SentSMS struct {
	Sender  string
	To      string
	Message string
}

// SpokenText is one speech injection captured by MockProvider.
type SpokenText struct {
	CallID string
	Text   string
}

// MockProvider logs and records traffic instead of calling a vendor.
type MockProvider struct {
	logger         *slog.Logger
	FailSend       bool
	SimulatedDelay time.Duration

	mu     sync.Mutex
	sms    []SentSMS
	calls  []CallRequest
	speech []SpokenText
}

func NewMockProvider(logger *slog.Logger, failSend bool, delay time.Duration) *MockProvider {
	return &MockProvider{
		logger:         logger.With("provider", "mock"),
		FailSend:       failSend,
		SimulatedDelay: delay,
	}
}

func (p *MockProvider) SendSMS(ctx context.Context, sender, to, message string) error {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.GetName(), "sms"))
	defer timer.ObserveDuration()

	p.logger.InfoContext(ctx, "MockProvider: SendSMS called", "sender", sender, "to", to, "content_length", len(message))
	if p.SimulatedDelay > 0 {
		time.Sleep(p.SimulatedDelay)
	}
	if p.FailSend {
		p.logger.WarnContext(ctx, "mock provider simulated send failure", "to", to)
		return errors.New("mock provider simulated send failure")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sms = append(p.sms, SentSMS{Sender: sender, To: to, Message: message})
	return nil
}

func (p *MockProvider) CreateCall(ctx context.Context, req CallRequest) error {
	p.logger.InfoContext(ctx, "MockProvider: CreateCall called", "to", req.To, "from", req.From, "answer_url", req.AnswerURL)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return nil
}

func (p *MockProvider) SendSpeech(ctx context.Context, callID, text string) error {
	p.logger.InfoContext(ctx, "MockProvider: SendSpeech called", "call_id", callID)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speech = append(p.speech, SpokenText{CallID: callID, Text: text})
	return nil
}

// SentMessages returns a copy of every SMS accepted so far, in send order.
func (p *MockProvider) SentMessages() []SentSMS {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentSMS(nil), p.sms...)
}

func (p *MockProvider) Calls() []CallRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CallRequest(nil), p.calls...)
}

func (p *MockProvider) Speech() []SpokenText {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SpokenText(nil), p.speech...)
}

func (p *MockProvider) GetName() string {
	return "mock"
}
