package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ChatroomCodecVersion is written into every encoded room.
const ChatroomCodecVersion = 1

var ErrUnsupportedChatroomVersion = errors.New("unsupported chatroom encoding version")

type participantJSON struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Relay  string `json:"relay"`
}

type chatroomJSON struct {
	Version      int               `json:"version"`
	Participants []participantJSON `json:"participants"`
}

// legacyChatroomJSON is the blob shape stored before versioning:
// {"__class__": "Chatroom", "_users": {"<number>": ["<name>", "<number>", "<relay>"]}}
type legacyChatroomJSON struct {
	Class string               `json:"__class__"`
	Users map[string][3]string `json:"_users"`
}

// EncodeChatroom serializes room for durable storage.
func EncodeChatroom(room *Chatroom) ([]byte, error) {
	doc := chatroomJSON{Version: ChatroomCodecVersion, Participants: []participantJSON{}}
	for _, p := range room.Participants() {
		doc.Participants = append(doc.Participants, participantJSON(p))
	}
	return json.Marshal(doc)
}

// DecodeChatroom restores a room written by EncodeChatroom, or by the legacy un-versioned format.
func DecodeChatroom(data []byte) (*Chatroom, error) {
	var probe struct {
		Version *int            `json:"version"`
		Users   json.RawMessage `json:"_users"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode chatroom: %w", err)
	}

	if probe.Version == nil {
		if probe.Users == nil {
			return nil, fmt.Errorf("decode chatroom: %w: missing version", ErrUnsupportedChatroomVersion)
		}
		return decodeLegacyChatroom(data)
	}
	if *probe.Version != ChatroomCodecVersion {
		return nil, fmt.Errorf("decode chatroom: %w: %d", ErrUnsupportedChatroomVersion, *probe.Version)
	}

	var doc chatroomJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode chatroom: %w", err)
	}
	room := NewChatroom()
	for _, p := range doc.Participants {
		room.AddParticipant(p.Name, p.Number, p.Relay)
	}
	return room, nil
}

func decodeLegacyChatroom(data []byte) (*Chatroom, error) {
	var doc legacyChatroomJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode legacy chatroom: %w", err)
	}
	numbers := make([]string, 0, len(doc.Users))
	for number := range doc.Users {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	room := NewChatroom()
	for _, key := range numbers {
		u := doc.Users[key]
		room.AddParticipant(u[0], u[1], u[2])
	}
	return room, nil
}
