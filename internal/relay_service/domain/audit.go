package domain

import "time"

// AuditKind values are persisted; never renumber.
type AuditKind int16

const (
	AuditUnknown                   AuditKind = 0
	AuditMemberAdded               AuditKind = 1
	AuditMemberRemoved             AuditKind = 2
	AuditEventModified             AuditKind = 3
	AuditMemberNumberVerified      AuditKind = 4
	AuditSMSConversationStarted    AuditKind = 5
	AuditVoiceConversationStarted  AuditKind = 6
	AuditNumberAcquired            AuditKind = 7
	AuditNumberReleased            AuditKind = 8
	AuditOrganizerAdded            AuditKind = 9
	AuditOrganizerRemoved          AuditKind = 10
	AuditVoiceConversationAnswered AuditKind = 11
	AuditNumberBlocked             AuditKind = 12
	AuditNumberUnblocked           AuditKind = 13
	AuditChatDeleted               AuditKind = 14
	AuditParticipantLeftChat       AuditKind = 15
)

var auditKindNames = map[AuditKind]string{
	AuditUnknown:                   "UNKNOWN",
	AuditMemberAdded:               "MEMBER_ADDED",
	AuditMemberRemoved:             "MEMBER_REMOVED",
	AuditEventModified:             "EVENT_MODIFIED",
	AuditMemberNumberVerified:      "MEMBER_NUMBER_VERIFIED",
	AuditSMSConversationStarted:    "SMS_CONVERSATION_STARTED",
	AuditVoiceConversationStarted:  "VOICE_CONVERSATION_STARTED",
	AuditNumberAcquired:            "NUMBER_ACQUIRED",
	AuditNumberReleased:            "NUMBER_RELEASED",
	AuditOrganizerAdded:            "ORGANIZER_ADDED",
	AuditOrganizerRemoved:          "ORGANIZER_REMOVED",
	AuditVoiceConversationAnswered: "VOICE_CONVERSATION_ANSWERED",
	AuditNumberBlocked:             "NUMBER_BLOCKED",
	AuditNumberUnblocked:           "NUMBER_UNBLOCKED",
	AuditChatDeleted:               "CHAT_DELETED",
	AuditParticipantLeftChat:       "PARTICIPANT_LEFT_CHAT",
}

func (k AuditKind) String() string {
	if name, ok := auditKindNames[k]; ok {
		return name
	}
	return auditKindNames[AuditUnknown]
}

// AuditLogEntry is append-only. ReporterNumber holds the full number; Description
// must only ever mention its last four digits.
type AuditLogEntry struct {
	ID             int64
	Timestamp      time.Time
	Kind           AuditKind
	Description    string
	EventID        *int64
	User           string
	ReporterNumber string
}

// Last4 returns the trailing four characters of a number, or all of it when shorter.
func Last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

// Last12 is the tail used to reference provider conversation ids in audit text.
func Last12(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[len(id)-12:]
}
