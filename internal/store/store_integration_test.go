package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/pipeline"
	"github.com/chatwire/chatwire/internal/store"
	"github.com/chatwire/chatwire/internal/webhook"
)

func setupIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestBindingUniqueRace(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()

	contacts := store.NewContacts(pool)
	bindings := store.NewBindings(pool)

	channelID := "it-" + uuid.NewString()
	sourceID := uuid.NewString()

	contact, err := contacts.CreateContact(ctx, pipeline.ContactAttributes{Name: "Alice"})
	require.NoError(t, err)

	first, err := bindings.CreateBinding(ctx, channelID, sourceID, contact.ID)
	require.NoError(t, err)

	_, err = bindings.CreateBinding(ctx, channelID, sourceID, contact.ID)
	assert.ErrorIs(t, err, pipeline.ErrBindingExists)

	found, err := bindings.FindBinding(ctx, channelID, sourceID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestMessageDuplicateExternalID(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()

	contacts := store.NewContacts(pool)
	bindings := store.NewBindings(pool)
	conversations := store.NewConversations(pool)

	contact, err := contacts.CreateContact(ctx, pipeline.ContactAttributes{Name: "Bob"})
	require.NoError(t, err)
	binding, err := bindings.CreateBinding(ctx, "it-"+uuid.NewString(), uuid.NewString(), contact.ID)
	require.NoError(t, err)

	conv, err := conversations.CreateOrReuseConversation(ctx, binding)
	require.NoError(t, err)

	again, err := conversations.CreateOrReuseConversation(ctx, binding)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	externalID := uuid.NewString()
	msg := pipeline.StoredMessage{
		ConversationID:  conv.ID,
		SenderContactID: contact.ID,
		Direction:       pipeline.DirectionIncoming,
		Kind:            webhook.KindText,
		Body:            "hi",
		ExternalID:      externalID,
		Status:          webhook.StatusDelivered,
		SentAt:          time.Now().UTC(),
	}
	_, err = conversations.CreateMessage(ctx, msg)
	require.NoError(t, err)

	_, err = conversations.CreateMessage(ctx, msg)
	assert.ErrorIs(t, err, pipeline.ErrMessageExists)

	require.NoError(t, conversations.UpdateMessageStatus(ctx, externalID, webhook.StatusRead, time.Now().Unix()))
}

func TestContactAvatarLifecycle(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()

	contacts := store.NewContacts(pool)

	contact, err := contacts.CreateContact(ctx, pipeline.ContactAttributes{
		Name:       "Carol",
		Identifier: "5551234@s.whatsapp.net",
	})
	require.NoError(t, err)
	assert.False(t, contact.HasAvatar())

	stale, err := contacts.ListStaleAvatars(ctx, time.Now().UTC(), 1000)
	require.NoError(t, err)
	ids := make(map[string]bool, len(stale))
	for _, c := range stale {
		ids[c.ID] = true
	}
	assert.True(t, ids[contact.ID])

	require.NoError(t, contacts.SetAvatar(ctx, contact.ID, "http://cdn/a.jpg", time.Now().UTC()))

	reloaded, err := contacts.FindContactByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.HasAvatar())
	assert.False(t, reloaded.AvatarUpdatedAt.IsZero())
}
