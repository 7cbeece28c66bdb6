package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chainscreen/pkg/domain"
)

// PostgresStore is the production outbox.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event *Event) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_outbox (event_id, kind, subject, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`,
		uuid.UUID(event.ID),
		event.Kind,
		event.Subject,
		[]byte(event.Payload),
		event.CreatedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unpublished(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event_id, kind, subject, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e  Event
			id uuid.UUID
		)
		if err := rows.Scan(&e.Seq, &id, &e.Kind, &e.Subject, (*[]byte)(&e.Payload), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = domain.EventID(id)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []domain.EventID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = NOW()
		WHERE event_id = ANY($1) AND published_at IS NULL
	`, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
