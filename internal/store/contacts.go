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
)

// Contacts is the Postgres-backed contact store.
type Contacts struct {
	pool *pgxpool.Pool
}

func NewContacts(pool *pgxpool.Pool) *Contacts {
	return &Contacts{pool: pool}
}

const contactColumns = `id, name, phone_number, identifier, avatar_url, avatar_fetched_at, created_at, updated_at`

func scanContact(row pgx.Row) (pipeline.Contact, error) {
	var (
		c          pipeline.Contact
		phone      pgtype.Text
		identifier pgtype.Text
		avatarAt   pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.Name, &phone, &identifier, &c.AvatarURL, &avatarAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return pipeline.Contact{}, err
	}
	c.PhoneNumber = phone.String
	c.Identifier = identifier.String
	if avatarAt.Valid {
		c.AvatarUpdatedAt = avatarAt.Time
	}
	return c, nil
}

func (s *Contacts) FindContactByID(ctx context.Context, id string) (pipeline.Contact, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Contact{}, pipeline.ErrContactNotFound
		}
		return pipeline.Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

func (s *Contacts) CreateContact(ctx context.Context, attrs pipeline.ContactAttributes) (pipeline.Contact, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, name, phone_number, identifier)
		VALUES ($1, $2, $3, $4)
		RETURNING `+contactColumns,
		uuid.NewString(),
		attrs.Name,
		pgtype.Text{String: attrs.PhoneNumber, Valid: attrs.PhoneNumber != ""},
		pgtype.Text{String: attrs.Identifier, Valid: attrs.Identifier != ""},
	)
	c, err := scanContact(row)
	if err != nil {
		return pipeline.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return c, nil
}

func (s *Contacts) UpdateContact(ctx context.Context, id string, update pipeline.ContactUpdate) (pipeline.Contact, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE contacts
		SET name = COALESCE($2, name),
		    identifier = COALESCE($3, identifier),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns,
		id, textOrNil(update.Name), textOrNil(update.Identifier),
	)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Contact{}, pipeline.ErrContactNotFound
		}
		return pipeline.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

// SetAvatar records a fetched avatar URL and stamps the fetch time. An empty
// URL still stamps the time so failed-but-attempted fetches back off.
func (s *Contacts) SetAvatar(ctx context.Context, id, avatarURL string, fetchedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contacts
		SET avatar_url = $2, avatar_fetched_at = $3, updated_at = now()
		WHERE id = $1`,
		id, avatarURL, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrContactNotFound
	}
	return nil
}

// ListStaleAvatars returns contacts whose avatar was last fetched before
// cutoff (or never) and that carry an identifier to fetch against.
func (s *Contacts) ListStaleAvatars(ctx context.Context, cutoff time.Time, limit int) ([]pipeline.Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE identifier IS NOT NULL
		  AND (avatar_fetched_at IS NULL OR avatar_fetched_at < $1)
		ORDER BY avatar_fetched_at NULLS FIRST
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale avatars: %w", err)
	}
	defer rows.Close()

	var contacts []pipeline.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale avatar contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func textOrNil(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
