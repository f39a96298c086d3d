package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/chatwire/internal/pipeline"
	"github.com/chatwire/chatwire/internal/webhook"
)

// Conversations is the Postgres-backed conversation and message store.
type Conversations struct {
	pool *pgxpool.Pool
}

func NewConversations(pool *pgxpool.Pool) *Conversations {
	return &Conversations{pool: pool}
}

const conversationColumns = `id, binding_id, contact_id, created_at`

func scanConversation(row pgx.Row) (pipeline.Conversation, error) {
	var c pipeline.Conversation
	err := row.Scan(&c.ID, &c.BindingID, &c.ContactID, &c.CreatedAt)
	return c, err
}

// CreateOrReuseConversation returns the binding's conversation, creating it
// on first contact. The unique constraint on binding_id makes the insert
// race-safe: the loser falls back to the winner's row.
func (s *Conversations) CreateOrReuseConversation(ctx context.Context, binding pipeline.Binding) (pipeline.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE binding_id = $1`,
		binding.ID,
	)
	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}

	row = s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, binding_id, channel_id, contact_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+conversationColumns,
		uuid.NewString(), binding.ID, binding.ChannelID, binding.ContactID,
	)
	conv, err = scanConversation(row)
	if err != nil {
		if isUniqueViolation(err) {
			row = s.pool.QueryRow(ctx,
				`SELECT `+conversationColumns+` FROM conversations WHERE binding_id = $1`,
				binding.ID,
			)
			conv, err = scanConversation(row)
			if err != nil {
				return pipeline.Conversation{}, fmt.Errorf("refetch conversation: %w", err)
			}
			return conv, nil
		}
		return pipeline.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *Conversations) CreateMessage(ctx context.Context, msg pipeline.StoredMessage) (pipeline.StoredMessage, error) {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (
			id, conversation_id, external_id, direction, sender_contact_id,
			kind, body, media_url, media_mime, media_filename,
			reply_to_external_id, status, sent_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		id,
		msg.ConversationID,
		pgtype.Text{String: msg.ExternalID, Valid: msg.ExternalID != ""},
		string(msg.Direction),
		pgtype.Text{String: msg.SenderContactID, Valid: msg.SenderContactID != ""},
		string(msg.Kind),
		msg.Body,
		msg.MediaReference,
		msg.MediaMimeType,
		msg.MediaFilename,
		msg.ReplyToExternalID,
		string(msg.Status),
		sentAt,
	)
	stored := msg
	stored.SentAt = sentAt
	if err := row.Scan(&stored.ID, &stored.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return pipeline.StoredMessage{}, pipeline.ErrMessageExists
		}
		return pipeline.StoredMessage{}, fmt.Errorf("create message: %w", err)
	}
	return stored, nil
}

// UpdateMessageStatus applies a delivery receipt to every message carrying
// the external id. Unknown ids are a no-op; receipts can outrun messages.
func (s *Conversations) UpdateMessageStatus(ctx context.Context, externalID string, status webhook.Status, timestamp int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2, status_updated_at = $3
		WHERE external_id = $1`,
		externalID, string(status), time.Unix(timestamp, 0).UTC(),
	)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}
