package telephony

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	throughputErrorText = "Throughput Rate Exceeded"
	statusThrottled     = "1"
	voiceTokenTTL       = 15 * time.Minute
)

// VonageConfig carries the account credentials. PrivateKeyPEM may be empty when
// only SMS is used.
type VonageConfig struct {
	APIKey        string
	APISecret     string
	ApplicationID string
	PrivateKeyPEM []byte
	SMSURL        string
	VoiceURL      string
}

// VonageProvider talks to the Vonage (Nexmo) SMS and Voice REST APIs.
type VonageProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	cfg        VonageConfig
	privateKey *rsa.PrivateKey

	retryBase     time.Duration
	retryMax      time.Duration
	retryDeadline time.Duration
}

func NewVonageProvider(logger *slog.Logger, cfg VonageConfig, httpClient *http.Client) (*VonageProvider, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	p := &VonageProvider{
		logger:        logger.With("provider", "vonage"),
		httpClient:    httpClient,
		cfg:           cfg,
		retryBase:     1 * time.Second,
		retryMax:      10 * time.Second,
		retryDeadline: 30 * time.Second,
	}
	if len(cfg.PrivateKeyPEM) > 0 {
		key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse vonage application private key: %w", err)
		}
		p.privateKey = key
	}
	return p, nil
}

type vonageSMSRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

type vonageSMSResponse struct {
	MessageCount string             `json:"message-count"`
	Messages     []vonageSMSMessage `json:"messages"`
}

type vonageSMSMessage struct {
	To        string `json:"to"`
	MessageID string `json:"message-id"`
	Status    string `json:"status"`
	ErrorText string `json:"error-text"`
}

// SendSMS sends one message, retrying with exponential backoff and jitter while
// the provider reports throttling, until the retry deadline passes.
func (p *VonageProvider) SendSMS(ctx context.Context, sender, to, message string) error {
	deadline := time.Now().Add(p.retryDeadline)
	for attempt := 0; ; attempt++ {
		err := p.sendSMSOnce(ctx, sender, to, message)
		if !errors.Is(err, ErrThrottled) {
			return err
		}
		smsThrottledCounter.WithLabelValues(p.GetName()).Inc()

		delay := p.backoff(attempt)
		if time.Now().Add(delay).After(deadline) {
			p.logger.WarnContext(ctx, "Giving up on throttled SMS", "attempts", attempt+1)
			return err
		}
		p.logger.InfoContext(ctx, "SMS throttled by provider, retrying", "attempt", attempt+1, "wait", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// backoff is full jitter over min(retryMax, retryBase * 2^attempt).
func (p *VonageProvider) backoff(attempt int) time.Duration {
	exp := float64(p.retryBase) * math.Pow(2, float64(attempt))
	if exp > float64(p.retryMax) {
		exp = float64(p.retryMax)
	}
	jittered := time.Duration(rand.Float64() * exp)
	if floor := p.retryBase / 10; jittered < floor {
		jittered = floor
	}
	return jittered
}

func (p *VonageProvider) sendSMSOnce(ctx context.Context, sender, to, message string) error {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.GetName(), "sms"))
	defer timer.ObserveDuration()

	body, err := json.Marshal(vonageSMSRequest{
		APIKey:    p.cfg.APIKey,
		APISecret: p.cfg.APISecret,
		From:      strings.TrimPrefix(sender, "+"),
		To:        to,
		Text:      message,
	})
	if err != nil {
		return fmt.Errorf("marshal vonage sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.SMSURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create vonage sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to send request to Vonage", "error", err)
		return fmt.Errorf("send sms to vonage: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read vonage sms response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrThrottled
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "Vonage SMS request failed", "status_code", resp.StatusCode)
		return fmt.Errorf("vonage sms api error: status %d", resp.StatusCode)
	}

	var parsed vonageSMSResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode vonage sms response: %w", err)
	}
	// The API answers 200 even for rejected messages; the per-message status is authoritative.
	for _, m := range parsed.Messages {
		if m.Status == statusThrottled || strings.Contains(m.ErrorText, throughputErrorText) {
			return ErrThrottled
		}
		if m.ErrorText != "" || (m.Status != "" && m.Status != "0") {
			p.logger.WarnContext(ctx, "Vonage rejected SMS", "status", m.Status, "error_text", m.ErrorText)
			return fmt.Errorf("vonage rejected sms: status %s: %s", m.Status, m.ErrorText)
		}
	}
	p.logger.DebugContext(ctx, "SMS accepted by Vonage", "message_count", parsed.MessageCount)
	return nil
}

type vonageEndpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type vonageCreateCallRequest struct {
	To           []vonageEndpoint `json:"to"`
	From         vonageEndpoint   `json:"from"`
	AnswerURL    []string         `json:"answer_url"`
	AnswerMethod string           `json:"answer_method"`
}

func (p *VonageProvider) CreateCall(ctx context.Context, call CallRequest) error {
	method := call.AnswerMethod
	if method == "" {
		method = http.MethodPost
	}
	payload := vonageCreateCallRequest{
		To:           []vonageEndpoint{{Type: "phone", Number: strings.TrimPrefix(call.To, "+")}},
		From:         vonageEndpoint{Type: "phone", Number: strings.TrimPrefix(call.From, "+")},
		AnswerURL:    []string{call.AnswerURL},
		AnswerMethod: method,
	}
	return p.voiceRequest(ctx, "create_call", http.MethodPost, "/v1/calls", payload)
}

func (p *VonageProvider) SendSpeech(ctx context.Context, callID, text string) error {
	return p.voiceRequest(ctx, "send_speech", http.MethodPut, "/v1/calls/"+callID+"/talk", map[string]string{"text": text})
}

func (p *VonageProvider) voiceRequest(ctx context.Context, op, method, path string, payload any) error {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.GetName(), op))
	defer timer.ObserveDuration()

	token, err := p.applicationToken(time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal vonage %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(p.cfg.VoiceURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create vonage %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.ErrorContext(ctx, "Vonage voice request failed", "op", op, "error", err)
		return fmt.Errorf("vonage %s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "Vonage voice API error", "op", op, "status_code", resp.StatusCode)
		return fmt.Errorf("vonage %s: status %d", op, resp.StatusCode)
	}
	return nil
}

// applicationToken signs the short-lived JWT the Voice API expects.
func (p *VonageProvider) applicationToken(now time.Time) (string, error) {
	if p.privateKey == nil {
		return "", errors.New("vonage voice is not configured: missing application private key")
	}
	claims := jwt.MapClaims{
		"application_id": p.cfg.ApplicationID,
		"iat":            now.Unix(),
		"exp":            now.Add(voiceTokenTTL).Unix(),
		"jti":            uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign vonage application token: %w", err)
	}
	return signed, nil
}

func (p *VonageProvider) GetName() string {
	return "vonage"
}
