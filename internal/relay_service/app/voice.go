package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository"
)

// VoiceRouter answers voice webhooks with call scripts. Nothing about a call is persisted
// besides its audit entries.
type VoiceRouter struct {
	store        repository.Store
	voice        telephony.VoiceClient
	audit        *AuditLogger
	holdMusicURL string
	logger       *slog.Logger
}

func NewVoiceRouter(store repository.Store, voice telephony.VoiceClient, audit *AuditLogger, holdMusicURL string, logger *slog.Logger) *VoiceRouter {
	return &VoiceRouter{
		store:        store,
		voice:        voice,
		audit:        audit,
		holdMusicURL: holdMusicURL,
		logger:       logger.With("component", "voice_router"),
	}
}

// HandleInboundCall greets the reporter, parks them in a conference named after
// conversationID and dials every verified member into it.
func (v *VoiceRouter) HandleInboundCall(ctx context.Context, reporterNumber, eventNumber, conversationID, callID, host string) (domain.CallScript, error) {
	event, err := v.store.Events().GetByPrimaryNumber(ctx, eventNumber)
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	if event == nil {
		voiceCallsCounter.WithLabelValues("no_event").Inc()
		return domain.CallScript{domain.TalkAction(textVoiceNoEvent)}, nil
	}

	blocked, err := v.store.BlockList().IsBlocked(ctx, event.ID, reporterNumber)
	if err != nil {
		return nil, fmt.Errorf("check blocklist: %w", err)
	}
	if blocked {
		voiceCallsCounter.WithLabelValues("blocked").Inc()
		return domain.CallScript{domain.TalkAction(textVoiceBlocked)}, nil
	}

	members, err := v.store.Members().ListVerified(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if len(members) == 0 {
		voiceCallsCounter.WithLabelValues("no_members").Inc()
		return domain.CallScript{domain.TalkAction(textVoiceNoMembers)}, nil
	}

	greeting := event.VoiceGreeting
	if strings.TrimSpace(greeting) == "" {
		greeting = textVoiceDefaultGreeting(event.Name)
	}
	script := domain.CallScript{
		domain.TalkAction(greeting),
		domain.HoldConversationAction(conversationID, v.holdMusicURL),
	}

	answerURL := fmt.Sprintf("https://%s/telephony/connect-to-conference/%s/%s", host, conversationID, callID)
	for _, m := range members {
		err := v.voice.CreateCall(ctx, telephony.CallRequest{
			To:           m.Number,
			From:         event.PrimaryNumber,
			AnswerURL:    answerURL,
			AnswerMethod: http.MethodPost,
		})
		if err != nil {
			v.logger.ErrorContext(ctx, "Failed to dial member", "member_id", m.ID, "event_id", event.ID, "error", err)
		}
	}

	v.audit.Log(ctx, domain.AuditLogEntry{
		Kind: domain.AuditVoiceConversationStarted,
		Description: fmt.Sprintf("A new voice conversation was started. UUID is %s. Last four digits of number is %s",
			domain.Last12(conversationID), domain.Last4(reporterNumber)),
		EventID:        eventRef(event),
		ReporterNumber: reporterNumber,
	})
	voiceCallsCounter.WithLabelValues("connected").Inc()
	return script, nil
}

// HandleMemberAnswer joins an answering member's leg to the reporter's conference.
func (v *VoiceRouter) HandleMemberAnswer(ctx context.Context, eventNumber, memberNumber, originConversationID, originCallID string) (domain.CallScript, error) {
	// Members can belong to several events, so the two lookups are independent.
	member, err := v.store.Members().GetByNumber(ctx, memberNumber)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	event, err := v.store.Events().GetByPrimaryNumber(ctx, eventNumber)
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	if member == nil || event == nil {
		voiceCallsCounter.WithLabelValues("answer_error").Inc()
		return domain.CallScript{domain.TalkAction(textVoiceAnswerError)}, nil
	}

	if err := v.voice.SendSpeech(ctx, originCallID, textVoiceAnswerAnnounce(member.Name)); err != nil {
		v.logger.ErrorContext(ctx, "Failed to announce joining member", "member_id", member.ID, "error", err)
	}

	v.audit.Log(ctx, domain.AuditLogEntry{
		Kind:        domain.AuditVoiceConversationAnswered,
		Description: fmt.Sprintf("%s answered %s.", member.Name, domain.Last12(originConversationID)),
		EventID:     eventRef(event),
		User:        member.Name,
	})
	voiceCallsCounter.WithLabelValues("answered").Inc()
	return domain.CallScript{
		domain.TalkAction(textVoiceAnswerGreeting(member.Name, event.Name)),
		domain.JoinConversationAction(originConversationID),
	}, nil
}
