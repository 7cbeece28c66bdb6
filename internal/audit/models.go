// Package audit records compliance-relevant events durably and ships them to
// downstream consumers. Events are written to an outbox in the same database
// as the state they describe; a background shipper forwards them to Kafka so
// a broker outage never loses an event or blocks the hot path.
package audit

import (
	"encoding/json"
	"time"

	"chainscreen/pkg/domain"
)

// Event kinds emitted across the engine.
const (
	KindVersionPromoted   = "list.version_promoted"
	KindVersionRolledBack = "list.version_rolled_back"
	KindVersionFailed     = "list.version_failed"
	KindDecisionRecorded  = "screening.decision_recorded"
	KindCaseOpened        = "case.opened"
	KindCaseTransitioned  = "case.transitioned"
	KindSubjectCleared    = "case.subject_cleared"
	KindSLABreached       = "case.sla_breached"
)

// Event is one audit record. Payload is the kind-specific body, already
// marshalled so the outbox row is self-contained.
type Event struct {
	Seq         int64
	ID          domain.EventID
	Kind        string
	Subject     string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}
