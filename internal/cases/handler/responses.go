package handler

import (
	"time"

	"chainscreen/internal/cases"
)

// CaseResponse is the wire form of a case.
type CaseResponse struct {
	ID          string     `json:"id"`
	Chain       string     `json:"chain"`
	Address     string     `json:"address"`
	EntityUID   string     `json:"entity_uid,omitempty"`
	EntityName  string     `json:"entity_name,omitempty"`
	Program     string     `json:"program,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	RiskScore   int        `json:"risk_score"`
	OpenedAt    time.Time  `json:"opened_at"`
	SLADeadline time.Time  `json:"sla_deadline"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// ActionResponse is one entry of the actions_taken history.
type ActionResponse struct {
	Seq        int64     `json:"seq"`
	Actor      string    `json:"actor"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NoteResponse is one analyst note.
type NoteResponse struct {
	Seq       int64     `json:"seq"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailResponse is a case with its full histories.
type DetailResponse struct {
	Case    CaseResponse     `json:"case"`
	Actions []ActionResponse `json:"actions"`
	Notes   []NoteResponse   `json:"notes"`
}

// ListResponse wraps a case listing.
type ListResponse struct {
	Cases []CaseResponse `json:"cases"`
}

// FromCase maps a domain case onto its wire form.
func FromCase(c *cases.Case) CaseResponse {
	return CaseResponse{
		ID:          c.ID.String(),
		Chain:       string(c.Address.Chain),
		Address:     c.Address.Canonical,
		EntityUID:   c.EntityUID,
		EntityName:  c.EntityName,
		Program:     c.Program,
		Status:      string(c.Status),
		Priority:    string(c.Priority),
		RiskScore:   c.RiskScore,
		OpenedAt:    c.OpenedAt,
		SLADeadline: c.SLADeadline,
		UpdatedAt:   c.UpdatedAt,
		ClosedAt:    c.ClosedAt,
	}
}

// FromCases maps a batch of cases.
func FromCases(listed []*cases.Case) ListResponse {
	resp := ListResponse{Cases: make([]CaseResponse, 0, len(listed))}
	for _, c := range listed {
		resp.Cases = append(resp.Cases, FromCase(c))
	}
	return resp
}

// FromNote maps a note onto its wire form.
func FromNote(n cases.Note) NoteResponse {
	return NoteResponse{
		Seq:       n.Seq,
		Author:    n.Author,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
}

// FromDetail maps a case with histories.
func FromDetail(d *cases.Detail) DetailResponse {
	resp := DetailResponse{
		Case:    FromCase(d.Case),
		Actions: make([]ActionResponse, 0, len(d.Actions)),
		Notes:   make([]NoteResponse, 0, len(d.Notes)),
	}
	for _, a := range d.Actions {
		resp.Actions = append(resp.Actions, ActionResponse{
			Seq:        a.Seq,
			Actor:      a.Actor,
			FromStatus: string(a.FromStatus),
			ToStatus:   string(a.ToStatus),
			Note:       a.Note,
			OccurredAt: a.OccurredAt,
		})
	}
	for _, n := range d.Notes {
		resp.Notes = append(resp.Notes, FromNote(n))
	}
	return resp
}
