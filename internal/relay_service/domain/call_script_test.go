package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallScript_WireFormat(t *testing.T) {
	script := CallScript{
		TalkAction("Hello"),
		HoldConversationAction("CON-1", "https://example.com/hold.mp3"),
		JoinConversationAction("CON-1"),
	}

	data, err := json.Marshal(script)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"action":"talk","text":"Hello"},
		{"action":"conversation","name":"CON-1","eventMethod":"POST",
		 "musicOnHoldUrl":["https://example.com/hold.mp3"],"startOnEnter":false,"endOnExit":false},
		{"action":"conversation","name":"CON-1","startOnEnter":true,"endOnExit":true}
	]`, string(data))
}
