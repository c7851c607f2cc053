package telephony

import (
	"context"
	"errors"
)

// ErrThrottled is returned by a provider that rejected a message for exceeding its throughput.
var ErrThrottled = errors.New("telephony: throughput rate exceeded")

// SMSSender is the outbound messaging gateway. sender and to are E.164.
type SMSSender interface {
	SendSMS(ctx context.Context, sender, to, message string) error
}

// CallRequest describes one outbound call leg.
type CallRequest struct {
	To           string
	From         string
	AnswerURL    string
	AnswerMethod string
}

type VoiceClient interface {
	CreateCall(ctx context.Context, req CallRequest) error
	// SendSpeech plays text into an in-progress call.
	SendSpeech(ctx context.Context, callID, text string) error
}

// Provider is a telephony vendor offering both SMS and voice.
type Provider interface {
	SMSSender
	VoiceClient
	GetName() string
}
