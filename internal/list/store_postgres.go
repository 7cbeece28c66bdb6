package list

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

// PostgresStore persists list versions and entries in PostgreSQL. A partial
// unique index on (source) WHERE status='active' backs the one-active-per-
// source invariant at the storage layer as well.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateVersion(ctx context.Context, version *ListVersion) error {
	query := `
		INSERT INTO list_versions (
			id, source, format, source_uri, retrieved_at, content_hash,
			parser_version, record_count, address_count, status,
			failure_reason, promoted_at, promoted_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(version.ID),
		string(version.Source),
		version.Format,
		version.SourceURI,
		version.RetrievedAt,
		version.ContentHash,
		version.ParserVersion,
		version.RecordCount,
		version.AddressCount,
		string(version.Status),
		version.FailureReason,
		nullTime(version.PromotedAt),
		version.PromotedBy,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert list version: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindVersion(ctx context.Context, id domain.VersionID) (*ListVersion, error) {
	row := s.db.QueryRowContext(ctx, selectVersion+` WHERE id = $1`, uuid.UUID(id))
	return scanVersion(row)
}

func (s *PostgresStore) ActiveVersion(ctx context.Context, source Source) (*ListVersion, error) {
	row := s.db.QueryRowContext(ctx, selectVersion+` WHERE source = $1 AND status = 'active'`, string(source))
	return scanVersion(row)
}

func (s *PostgresStore) ActiveVersions(ctx context.Context) ([]*ListVersion, error) {
	rows, err := s.db.QueryContext(ctx, selectVersion+` WHERE status = 'active' ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query active versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func (s *PostgresStore) VersionsBySource(ctx context.Context, source Source) ([]*ListVersion, error) {
	rows, err := s.db.QueryContext(ctx, selectVersion+` WHERE source = $1 ORDER BY created_at DESC`, string(source))
	if err != nil {
		return nil, fmt.Errorf("query versions by source: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id domain.VersionID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE list_versions SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(id), reason)
	if err != nil {
		return fmt.Errorf("mark version failed: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) SetCounts(ctx context.Context, id domain.VersionID, recordCount, addressCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE list_versions SET record_count = $2, address_count = $3, status = 'validated'
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(id), recordCount, addressCount)
	if err != nil {
		return fmt.Errorf("set version counts: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) SaveEntries(ctx context.Context, id domain.VersionID, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save entries: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("sanction_entries",
		"version_id", "chain", "raw_address", "canonical_address",
		"entity_uid", "entity_name", "program"))
	if err != nil {
		return fmt.Errorf("prepare entry copy: %w", err)
	}
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			uuid.UUID(e.VersionID),
			string(e.Address.Chain),
			e.Address.Raw,
			e.Address.Canonical,
			e.EntityUID,
			e.EntityName,
			e.Program,
		); err != nil {
			return fmt.Errorf("copy entry: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush entry copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close entry copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries: %w", err)
	}
	return nil
}

func (s *PostgresStore) EntriesForVersions(ctx context.Context, ids []domain.VersionID) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, chain, raw_address, canonical_address,
		       entity_uid, entity_name, program
		FROM sanction_entries
		WHERE version_id = ANY($1)
	`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			versionID uuid.UUID
			chain     string
		)
		if err := rows.Scan(&versionID, &chain, &e.Address.Raw, &e.Address.Canonical,
			&e.EntityUID, &e.EntityName, &e.Program); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.VersionID = domain.VersionID(versionID)
		e.Address.Chain = canonical.Chain(chain)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Promote(ctx context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error {
	return s.swapActive(ctx, id, StatusValidated, promotedAt, promotedBy)
}

func (s *PostgresStore) Reactivate(ctx context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error {
	return s.swapActive(ctx, id, StatusSuperseded, promotedAt, promotedBy)
}

// swapActive runs the supersede+activate pair in one transaction so no reader
// ever observes zero or two active versions for a source.
func (s *PostgresStore) swapActive(ctx context.Context, id domain.VersionID, required VersionStatus, promotedAt time.Time, promotedBy string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback()

	var source string
	err = tx.QueryRowContext(ctx, `
		SELECT source FROM list_versions WHERE id = $1 AND status = $2 FOR UPDATE
	`, uuid.UUID(id), string(required)).Scan(&source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish missing from wrong-state for the caller.
			var exists bool
			if checkErr := s.db.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM list_versions WHERE id = $1)`,
				uuid.UUID(id)).Scan(&exists); checkErr == nil && !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrInvalidState
		}
		return fmt.Errorf("lock version for promote: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE list_versions SET status = 'superseded'
		WHERE source = $1 AND status = 'active'
	`, source); err != nil {
		return fmt.Errorf("supersede active version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE list_versions SET status = 'active', promoted_at = $2, promoted_by = $3
		WHERE id = $1
	`, uuid.UUID(id), promotedAt, promotedBy); err != nil {
		return fmt.Errorf("activate version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promote: %w", err)
	}
	return nil
}

const selectVersion = `
	SELECT id, source, format, source_uri, retrieved_at, content_hash,
	       parser_version, record_count, address_count, status,
	       failure_reason, promoted_at, promoted_by, created_at
	FROM list_versions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*ListVersion, error) {
	var (
		v          ListVersion
		id         uuid.UUID
		source     string
		status     string
		promotedAt sql.NullTime
	)
	err := row.Scan(&id, &source, &v.Format, &v.SourceURI, &v.RetrievedAt,
		&v.ContentHash, &v.ParserVersion, &v.RecordCount, &v.AddressCount,
		&status, &v.FailureReason, &promotedAt, &v.PromotedBy, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan list version: %w", err)
	}
	v.ID = domain.VersionID(id)
	v.Source = Source(source)
	v.Status = VersionStatus(status)
	if promotedAt.Valid {
		v.PromotedAt = &promotedAt.Time
	}
	return &v, nil
}

func scanVersions(rows *sql.Rows) ([]*ListVersion, error) {
	var versions []*ListVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list versions: %w", err)
	}
	return versions, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
