package domain

// CallAction is one NCCO step. Field names follow the provider's wire format.
type CallAction struct {
	Action         string   `json:"action"`
	Text           string   `json:"text,omitempty"`
	Name           string   `json:"name,omitempty"`
	EventMethod    string   `json:"eventMethod,omitempty"`
	MusicOnHoldURL []string `json:"musicOnHoldUrl,omitempty"`
	StartOnEnter   *bool    `json:"startOnEnter,omitempty"`
	EndOnExit      *bool    `json:"endOnExit,omitempty"`
}

// CallScript is the ordered list of steps returned to the provider for a call.
type CallScript []CallAction

func TalkAction(text string) CallAction {
	return CallAction{Action: "talk", Text: text}
}

// HoldConversationAction starts the named conference for the caller. It neither
// starts nor ends the conference, so it survives while no member is connected.
func HoldConversationAction(name, holdMusicURL string) CallAction {
	a := CallAction{
		Action:       "conversation",
		Name:         name,
		EventMethod:  "POST",
		StartOnEnter: boolPtr(false),
		EndOnExit:    boolPtr(false),
	}
	if holdMusicURL != "" {
		a.MusicOnHoldURL = []string{holdMusicURL}
	}
	return a
}

// JoinConversationAction joins an answering member's leg to the named conference.
func JoinConversationAction(name string) CallAction {
	return CallAction{
		Action:       "conversation",
		Name:         name,
		StartOnEnter: boolPtr(true),
		EndOnExit:    boolPtr(true),
	}
}

func boolPtr(b bool) *bool { return &b }
