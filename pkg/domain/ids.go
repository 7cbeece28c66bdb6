// Package domain holds the typed identifiers shared across modules. Wrapping
// uuid.UUID in distinct types keeps a VersionID from ever being passed where a
// CaseID is expected.
package domain

import "github.com/google/uuid"

type (
	// VersionID identifies an ingested sanctions list version.
	VersionID uuid.UUID
	// DecisionID identifies a single screening decision record.
	DecisionID uuid.UUID
	// CaseID identifies a compliance case opened from a screening hit.
	CaseID uuid.UUID
	// EventID identifies an audit event.
	EventID uuid.UUID
)

func NewVersionID() VersionID   { return VersionID(uuid.New()) }
func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }
func NewCaseID() CaseID         { return CaseID(uuid.New()) }
func NewEventID() EventID       { return EventID(uuid.New()) }

func (v VersionID) String() string  { return uuid.UUID(v).String() }
func (d DecisionID) String() string { return uuid.UUID(d).String() }
func (c CaseID) String() string     { return uuid.UUID(c).String() }
func (e EventID) String() string    { return uuid.UUID(e).String() }

func (v VersionID) IsNil() bool  { return uuid.UUID(v) == uuid.Nil }
func (d DecisionID) IsNil() bool { return uuid.UUID(d) == uuid.Nil }
func (c CaseID) IsNil() bool     { return uuid.UUID(c) == uuid.Nil }
func (e EventID) IsNil() bool    { return uuid.UUID(e) == uuid.Nil }

// ParseVersionID parses the string form of a VersionID.
func ParseVersionID(s string) (VersionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return VersionID{}, err
	}
	return VersionID(u), nil
}

// ParseDecisionID parses the string form of a DecisionID.
func ParseDecisionID(s string) (DecisionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DecisionID{}, err
	}
	return DecisionID(u), nil
}

// ParseCaseID parses the string form of a CaseID.
func ParseCaseID(s string) (CaseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CaseID{}, err
	}
	return CaseID(u), nil
}
