package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

// PostgresStore persists cases, their action histories, and notes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (
			id, chain, canonical_address, entity_uid, entity_name, program,
			status, priority, risk_score, opened_at, sla_deadline, updated_at,
			closed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(c.ID),
		string(c.Address.Chain),
		c.Address.Canonical,
		c.EntityUID,
		c.EntityName,
		c.Program,
		string(c.Status),
		string(c.Priority),
		c.RiskScore,
		c.OpenedAt,
		c.SLADeadline,
		c.UpdatedAt,
		nullTime(c.ClosedAt),
	)
	if err != nil {
		// The partial unique index on (chain, canonical_address) rejects a
		// second open case for the same subject.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id domain.CaseID) (*Case, error) {
	row := s.db.QueryRowContext(ctx, selectCase+` WHERE id = $1`, uuid.UUID(id))
	return scanCase(row)
}

func (s *PostgresStore) FindOpenByAddress(ctx context.Context, addr canonical.Address) (*Case, error) {
	row := s.db.QueryRowContext(ctx, selectCase+`
		WHERE chain = $1 AND canonical_address = $2 AND closed_at IS NULL
		ORDER BY opened_at DESC
		LIMIT 1
	`, string(addr.Chain), addr.Canonical)
	return scanCase(row)
}

func (s *PostgresStore) Update(ctx context.Context, c *Case) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET
			status = $2, priority = $3, risk_score = $4, sla_deadline = $5,
			updated_at = $6, closed_at = $7
		WHERE id = $1
	`,
		uuid.UUID(c.ID),
		string(c.Status),
		string(c.Priority),
		c.RiskScore,
		c.SLADeadline,
		c.UpdatedAt,
		nullTime(c.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Case, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectCase+`
		WHERE status = $1
		ORDER BY sla_deadline
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query cases by status: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *PostgresStore) ListOpen(ctx context.Context, limit int) ([]*Case, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectCase+`
		WHERE closed_at IS NULL
		ORDER BY sla_deadline
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query open cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *PostgresStore) AppendAction(ctx context.Context, entry *ActionEntry) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO case_actions (case_id, actor, from_status, to_status, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`,
		uuid.UUID(entry.CaseID),
		entry.Actor,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.Note,
		entry.OccurredAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("append case action: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActionsFor(ctx context.Context, id domain.CaseID) ([]ActionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, case_id, actor, from_status, to_status, note, occurred_at
		FROM case_actions
		WHERE case_id = $1
		ORDER BY seq
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query case actions: %w", err)
	}
	defer rows.Close()

	var entries []ActionEntry
	for rows.Next() {
		var (
			e      ActionEntry
			caseID uuid.UUID
			from   string
			to     string
		)
		if err := rows.Scan(&e.Seq, &caseID, &e.Actor, &from, &to, &e.Note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan case action: %w", err)
		}
		e.CaseID = domain.CaseID(caseID)
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case actions: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) AppendNote(ctx context.Context, note *Note) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO case_notes (case_id, author, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING seq
	`,
		uuid.UUID(note.CaseID),
		note.Author,
		note.Body,
		note.CreatedAt,
	).Scan(&note.Seq)
	if err != nil {
		return fmt.Errorf("append case note: %w", err)
	}
	return nil
}

func (s *PostgresStore) NotesFor(ctx context.Context, id domain.CaseID) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, case_id, author, body, created_at
		FROM case_notes
		WHERE case_id = $1
		ORDER BY seq
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query case notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var (
			n      Note
			caseID uuid.UUID
		)
		if err := rows.Scan(&n.Seq, &caseID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case note: %w", err)
		}
		n.CaseID = domain.CaseID(caseID)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case notes: %w", err)
	}
	return notes, nil
}

const selectCase = `
	SELECT id, chain, canonical_address, entity_uid, entity_name, program,
	       status, priority, risk_score, opened_at, sla_deadline, updated_at,
	       closed_at
	FROM cases
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	var (
		c        Case
		id       uuid.UUID
		chain    string
		status   string
		priority string
		closedAt sql.NullTime
	)
	err := row.Scan(&id, &chain, &c.Address.Canonical, &c.EntityUID, &c.EntityName,
		&c.Program, &status, &priority, &c.RiskScore, &c.OpenedAt, &c.SLADeadline,
		&c.UpdatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	c.ID = domain.CaseID(id)
	c.Address.Chain = canonical.Chain(chain)
	c.Address.Raw = c.Address.Canonical
	c.Status = Status(status)
	c.Priority = Priority(priority)
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}

func scanCases(rows *sql.Rows) ([]*Case, error) {
	var cs []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cs, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
