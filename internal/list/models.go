package list

import (
	"errors"
	"fmt"
	"time"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// Source enumerates the authorities we ingest from.
type Source string

const (
	SourceOFACSDN        Source = "OFAC_SDN"
	SourceUKSanctions    Source = "UK_SANCTIONS_LIST"
	SourceUNConsolidated Source = "UN_CONSOLIDATED_LIST"
)

// Sources lists every configured authority in ingestion order.
var Sources = []Source{SourceOFACSDN, SourceUKSanctions, SourceUNConsolidated}

// VersionStatus is the lifecycle state of an ingested list version:
// pending -> validated -> active -> superseded, with pending -> failed on
// any integrity or validation failure. Only validated versions may activate.
type VersionStatus string

const (
	StatusPending    VersionStatus = "pending"
	StatusValidated  VersionStatus = "validated"
	StatusActive     VersionStatus = "active"
	StatusSuperseded VersionStatus = "superseded"
	StatusFailed     VersionStatus = "failed"
)

// ListVersion is the immutable provenance record for one ingested payload.
// Once superseded or failed it is only ever read for audit.
type ListVersion struct {
	ID            domain.VersionID
	Source        Source
	Format        string
	SourceURI     string
	RetrievedAt   time.Time
	ContentHash   string // hex sha256 of the raw payload
	ParserVersion string
	RecordCount   int
	AddressCount  int
	Status        VersionStatus
	FailureReason string
	PromotedAt    *time.Time
	PromotedBy    string
	CreatedAt     time.Time
}

// Entry is one sanctioned address owned by its list version. Entries are
// append-only; retention policy never deletes them.
type Entry struct {
	VersionID  domain.VersionID
	Address    canonical.Address
	EntityUID  string
	EntityName string
	Program    string
}

// ErrIntegrityMismatch marks a payload whose declared checksum does not match
// the computed content hash. The version is recorded as failed and is never
// indexed or promoted.
var ErrIntegrityMismatch = errors.New("declared checksum does not match content hash")

// ValidationError halts promotion of a version. The previous active version
// stays authoritative.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Detail)
}

// Validation rule identifiers, applied in order.
const (
	RuleRecordCountDrop = "record_count_drop"
	RuleSmokeTest       = "smoke_test"
)

// QuarantinedRecord is a parsed record that could not be turned into an
// indexable entry. Quarantines are logged, never silently dropped.
type QuarantinedRecord struct {
	EntityUID string
	IDType    string
	IDValue   string
	Reason    string
}

// ValidationResult summarizes what Validate accepted and rejected.
type ValidationResult struct {
	VersionID    domain.VersionID
	RecordCount  int
	AddressCount int
	Deduplicated int
	Quarantined  []QuarantinedRecord
}
