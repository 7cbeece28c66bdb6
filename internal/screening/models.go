package screening

import (
	"errors"
	"time"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// MatchType classifies what a screening found.
type MatchType string

const (
	MatchNone   MatchType = "none"
	MatchExact  MatchType = "exact"
	MatchVendor MatchType = "vendor"
)

// Action is the disposition a screening returns to the caller.
type Action string

const (
	ActionAllow      Action = "allow"
	ActionMonitor    Action = "monitor"
	ActionEnhancedDD Action = "enhanced_dd"
	ActionHold       Action = "hold"
	ActionBlock      Action = "block"
)

// Annotations attached to decisions for non-standard paths.
const (
	AnnotationInvalidFormat     = "invalid_format"
	AnnotationOracleUnavailable = "vendor_oracle_unavailable"
	AnnotationClearedOverride   = "cleared_registry_override"
)

// RiskSignal is an untrusted vendor risk assessment for an address.
// Score is clamped to [0, 100] before policy is applied.
type RiskSignal struct {
	Vendor   string
	Score    int
	Category string
}

// Decision is one immutable screening outcome. Every Screen call appends
// exactly one decision to the log before returning.
type Decision struct {
	ID               domain.DecisionID
	Seq              int64
	Address          canonical.Address
	MatchType        MatchType
	RiskScore        int
	Action           Action
	Annotation       string
	Vendor           string
	ListVersionsUsed []domain.VersionID
	EntityUID        string
	EntityName       string
	Program          string
	CaseID           domain.CaseID
	RequestID        string
	ScreenedAt       time.Time
}

// ErrDecisionNotPersisted fails a screening closed: the caller must treat the
// subject as unscreened, never as allowed.
var ErrDecisionNotPersisted = errors.New("screening decision could not be persisted")
