package screening

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

// PostgresStore persists the decision log. The sequence number comes from a
// BIGSERIAL, so ordering is assigned by the database and survives restarts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, decision *Decision) error {
	versionIDs := make([]uuid.UUID, len(decision.ListVersionsUsed))
	for i, id := range decision.ListVersionsUsed {
		versionIDs[i] = uuid.UUID(id)
	}
	var caseID any
	if !decision.CaseID.IsNil() {
		caseID = uuid.UUID(decision.CaseID)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO screening_decisions (
			id, chain, raw_address, canonical_address, match_type, risk_score,
			action, annotation, vendor, list_version_ids, case_id, request_id,
			screened_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq
	`,
		uuid.UUID(decision.ID),
		string(decision.Address.Chain),
		decision.Address.Raw,
		decision.Address.Canonical,
		string(decision.MatchType),
		decision.RiskScore,
		string(decision.Action),
		decision.Annotation,
		decision.Vendor,
		pq.Array(versionIDs),
		caseID,
		decision.RequestID,
		decision.ScreenedAt,
	).Scan(&decision.Seq)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDecision(ctx context.Context, id domain.DecisionID) (*Decision, error) {
	row := s.db.QueryRowContext(ctx, selectDecision+` WHERE id = $1`, uuid.UUID(id))
	return scanDecision(row)
}

func (s *PostgresStore) DecisionsForAddress(ctx context.Context, addr canonical.Address, limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectDecision+`
		WHERE chain = $1 AND canonical_address = $2
		ORDER BY seq DESC
		LIMIT $3
	`, string(addr.Chain), addr.Canonical, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

const selectDecision = `
	SELECT seq, id, chain, raw_address, canonical_address, match_type,
	       risk_score, action, annotation, vendor, list_version_ids, case_id,
	       request_id, screened_at
	FROM screening_decisions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*Decision, error) {
	var (
		d          Decision
		id         uuid.UUID
		chain      string
		matchType  string
		action     string
		versionIDs []uuid.UUID
		caseID     uuid.NullUUID
	)
	err := row.Scan(&d.Seq, &id, &chain, &d.Address.Raw, &d.Address.Canonical,
		&matchType, &d.RiskScore, &action, &d.Annotation, &d.Vendor,
		pq.Array(&versionIDs), &caseID, &d.RequestID, &d.ScreenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	d.ID = domain.DecisionID(id)
	d.Address.Chain = canonical.Chain(chain)
	d.MatchType = MatchType(matchType)
	d.Action = Action(action)
	for _, v := range versionIDs {
		d.ListVersionsUsed = append(d.ListVersionsUsed, domain.VersionID(v))
	}
	if caseID.Valid {
		d.CaseID = domain.CaseID(caseID.UUID)
	}
	return &d, nil
}
