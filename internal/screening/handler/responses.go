package handler

import (
	"time"

	"chainscreen/internal/screening"
)

// DecisionResponse is the wire form of a screening decision.
type DecisionResponse struct {
	ID               string    `json:"id"`
	Seq              int64     `json:"seq"`
	Chain            string    `json:"chain"`
	Address          string    `json:"address"`
	CanonicalAddress string    `json:"canonical_address"`
	MatchType        string    `json:"match_type"`
	RiskScore        int       `json:"risk_score"`
	Action           string    `json:"action"`
	Annotation       string    `json:"annotation,omitempty"`
	Vendor           string    `json:"vendor,omitempty"`
	ListVersionsUsed []string  `json:"list_versions_used,omitempty"`
	EntityUID        string    `json:"entity_uid,omitempty"`
	EntityName       string    `json:"entity_name,omitempty"`
	Program          string    `json:"program,omitempty"`
	CaseID           string    `json:"case_id,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	ScreenedAt       time.Time `json:"screened_at"`
}

// ScreenResponse wraps the per-candidate decisions of one screening call.
type ScreenResponse struct {
	Decisions []DecisionResponse `json:"decisions"`
}

// FromDecision maps a domain decision onto its wire form.
func FromDecision(d *screening.Decision) DecisionResponse {
	resp := DecisionResponse{
		ID:               d.ID.String(),
		Seq:              d.Seq,
		Chain:            string(d.Address.Chain),
		Address:          d.Address.Raw,
		CanonicalAddress: d.Address.Canonical,
		MatchType:        string(d.MatchType),
		RiskScore:        d.RiskScore,
		Action:           string(d.Action),
		Annotation:       d.Annotation,
		Vendor:           d.Vendor,
		EntityUID:        d.EntityUID,
		EntityName:       d.EntityName,
		Program:          d.Program,
		RequestID:        d.RequestID,
		ScreenedAt:       d.ScreenedAt,
	}
	for _, v := range d.ListVersionsUsed {
		resp.ListVersionsUsed = append(resp.ListVersionsUsed, v.String())
	}
	if !d.CaseID.IsNil() {
		resp.CaseID = d.CaseID.String()
	}
	return resp
}

// FromDecisions maps a batch of decisions.
func FromDecisions(decisions []*screening.Decision) ScreenResponse {
	resp := ScreenResponse{Decisions: make([]DecisionResponse, 0, len(decisions))}
	for _, d := range decisions {
		resp.Decisions = append(resp.Decisions, FromDecision(d))
	}
	return resp
}
