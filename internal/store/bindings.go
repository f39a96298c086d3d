package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/chatwire/internal/pipeline"
)

// Bindings is the Postgres-backed binding store. The (channel_id, source_id)
// unique constraint is what makes concurrent webhook deliveries converge on
// one contact.
type Bindings struct {
	pool *pgxpool.Pool
}

func NewBindings(pool *pgxpool.Pool) *Bindings {
	return &Bindings{pool: pool}
}

const bindingColumns = `id, channel_id, contact_id, source_id, created_at`

func scanBinding(row pgx.Row) (pipeline.Binding, error) {
	var b pipeline.Binding
	err := row.Scan(&b.ID, &b.ChannelID, &b.ContactID, &b.SourceID, &b.CreatedAt)
	return b, err
}

func (s *Bindings) FindBinding(ctx context.Context, channelID, sourceID string) (pipeline.Binding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM contact_bindings WHERE channel_id = $1 AND source_id = $2`,
		channelID, sourceID,
	)
	b, err := scanBinding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Binding{}, pipeline.ErrBindingNotFound
		}
		return pipeline.Binding{}, fmt.Errorf("find binding: %w", err)
	}
	return b, nil
}

func (s *Bindings) CreateBinding(ctx context.Context, channelID, sourceID, contactID string) (pipeline.Binding, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO contact_bindings (id, channel_id, contact_id, source_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+bindingColumns,
		uuid.NewString(), channelID, contactID, sourceID,
	)
	b, err := scanBinding(row)
	if err != nil {
		if isUniqueViolation(err) {
			return pipeline.Binding{}, pipeline.ErrBindingExists
		}
		return pipeline.Binding{}, fmt.Errorf("create binding: %w", err)
	}
	return b, nil
}
