package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

func TestEventAdmin_Lookups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.seedTestEvent()

	got, err := env.admin.EventBySlug(ctx, "test-event")
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)

	_, err = env.admin.EventBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.admin.Member(ctx, &event, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventAdmin_BlockAndUnblock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.seedTestEvent()
	env.mustHandle(t, "1234", "5678", "Hello")

	started := env.store.AuditEntries()[0]
	require.Equal(t, domain.AuditSMSConversationStarted, started.Kind)

	entry, err := env.admin.BlockFromAuditLog(ctx, &event, started.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, "1234", entry.Number)
	assert.Equal(t, "Ada", entry.BlockedBy)

	// Blocking twice writes nothing new.
	_, err = env.admin.BlockFromAuditLog(ctx, &event, started.ID, testActor)
	require.NoError(t, err)
	require.Len(t, env.store.BlockListEntries(), 1)

	kinds := env.auditKinds()
	assert.Equal(t, []domain.AuditKind{domain.AuditSMSConversationStarted, domain.AuditNumberBlocked}, kinds)
	assert.Equal(t, "Ada blocked the number ending in 1234.", env.store.AuditEntries()[1].Description)

	// A blocked reporter cannot open a new conversation.
	err = env.router.HandleMessage(ctx, "1234", "5678", "STOP")
	require.NoError(t, err)
	err = env.router.HandleMessage(ctx, "1234", "5678", "Hello again")
	assert.ErrorIs(t, err, domain.ErrNumberBlocked)

	blocked := env.store.BlockListEntries()[0]
	require.NoError(t, env.admin.Unblock(ctx, &event, blocked.ID, testActor))
	assert.Empty(t, env.store.BlockListEntries())
	assert.ErrorIs(t, env.admin.Unblock(ctx, &event, blocked.ID, testActor), domain.ErrNotFound)

	last := env.store.AuditEntries()
	assert.Equal(t, domain.AuditNumberUnblocked, last[len(last)-1].Kind)
}

func TestEventAdmin_BlockRequiresReporterNumber(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.store.AddEvent("conf", "Conf", "US", nil)
	env.store.AddNumber("+15550000001", "US", domain.NumberPoolEvent)

	_, err := env.pool.AcquirePrimaryNumber(ctx, &event, testActor)
	require.NoError(t, err)
	acquired := env.store.AuditEntries()[0]

	_, err = env.admin.BlockFromAuditLog(ctx, &event, acquired.ID, testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.admin.BlockFromAuditLog(ctx, &event, 4242, testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, env.store.BlockListEntries())
}

func TestEventAdmin_ListAndDeleteChats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	event := env.seedTestEvent()
	env.mustHandle(t, "1234", "5678", "Hello")

	chats, err := env.admin.ListChats(ctx, &event)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "1111", chats[0].RelayNumber)
	assert.Equal(t, 3, chats[0].ParticipantCount)

	require.NoError(t, env.admin.DeleteChat(ctx, &event, chats[0].ID, testActor))
	assert.Empty(t, env.store.Chats())
	assert.Empty(t, env.store.Connections())

	last := env.store.AuditEntries()
	assert.Equal(t, domain.AuditChatDeleted, last[len(last)-1].Kind)
	assert.Equal(t, "Ada deleted the chat with the relay number 1111.", last[len(last)-1].Description)

	// The relay is free again.
	remaining, err := env.pool.RemainingRelays(ctx, &event)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	assert.ErrorIs(t, env.admin.DeleteChat(ctx, &event, uuid.New(), testActor), domain.ErrNotFound)
}

func TestEventAdmin_DeleteChatOfOtherEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedTestEvent()
	other := env.store.AddEvent("other", "Other", "US", nil)
	env.mustHandle(t, "1234", "5678", "Hello")

	chat := env.store.Chats()[0]
	assert.ErrorIs(t, env.admin.DeleteChat(ctx, &other, chat.ID, testActor), domain.ErrNotFound)
	assert.Len(t, env.store.Chats(), 1)
}
