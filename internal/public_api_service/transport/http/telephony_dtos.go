package http

// InboundSMSWebhook is the provider's inbound message callback.
type InboundSMSWebhook struct {
	MSISDN    string `json:"msisdn" validate:"required"`
	To        string `json:"to" validate:"required"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	// Timestamp is kept as sent; providers disagree on its format.
	Timestamp string `json:"message-timestamp"`
}

// InboundCallWebhook is the answer callback for a call to an event number.
type InboundCallWebhook struct {
	From             string `json:"from" validate:"required"`
	To               string `json:"to" validate:"required"`
	UUID             string `json:"uuid" validate:"required"`
	ConversationUUID string `json:"conversation_uuid" validate:"required"`
}

// MemberAnswerWebhook is the answer callback for an outbound leg to a member.
// From is the event number the member was dialled from, To the member.
type MemberAnswerWebhook struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	UUID string `json:"uuid"`
}
