package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatroomCodec_RoundTrip(t *testing.T) {
	for n := 0; n <= 5; n++ {
		room := NewChatroom()
		for i := 0; i < n; i++ {
			room.AddParticipant(fmt.Sprintf("Name %d", i), fmt.Sprintf("+1555000%04d", i), "+15559990000")
		}

		data, err := EncodeChatroom(room)
		require.NoError(t, err)

		decoded, err := DecodeChatroom(data)
		require.NoError(t, err)
		assert.ElementsMatch(t, room.Participants(), decoded.Participants())
		assert.Equal(t, n, decoded.Len())
	}
}

func TestChatroomCodec_Format(t *testing.T) {
	room := NewChatroom()
	room.AddParticipant("Reporter", "1234", "5678")

	data, err := EncodeChatroom(room)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"participants":[{"name":"Reporter","number":"1234","relay":"5678"}]}`, string(data))

	empty, err := EncodeChatroom(NewChatroom())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"participants":[]}`, string(empty))
}

func TestChatroomCodec_Legacy(t *testing.T) {
	legacy := `{"__class__": "Chatroom", "_users": {
		"202": ["Alice", "202", "1111"],
		"1234": ["Reporter", "1234", "5678"],
		"101": ["Bob", "101", "1111"]}}`

	room, err := DecodeChatroom([]byte(legacy))
	require.NoError(t, err)
	assert.Equal(t, []Participant{
		{"Bob", "101", "1111"},
		{"Reporter", "1234", "5678"},
		{"Alice", "202", "1111"},
	}, room.Participants())
}

func TestChatroomCodec_Rejects(t *testing.T) {
	_, err := DecodeChatroom([]byte(`{"version":2,"participants":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedChatroomVersion)

	_, err = DecodeChatroom([]byte(`{"participants":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedChatroomVersion)

	_, err = DecodeChatroom([]byte(`not json`))
	assert.Error(t, err)
}
