package handler

import (
	"strings"

	"chainscreen/internal/cases"
	dErrors "chainscreen/pkg/domain-errors"
)

// TransitionRequest is the HTTP request body for POST /cases/{id}/transition.
type TransitionRequest struct {
	To   string `json:"to"`
	Note string `json:"note,omitempty"`

	parsedStatus cases.Status
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.To = strings.TrimSpace(r.To)
	if r.To == "" {
		return dErrors.New(dErrors.CodeBadRequest, "to is required")
	}
	status, ok := cases.ParseStatus(r.To)
	if !ok {
		return dErrors.New(dErrors.CodeBadRequest, "unknown status")
	}
	if len(r.Note) > 4096 {
		return dErrors.New(dErrors.CodeBadRequest, "note must be at most 4096 characters")
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *TransitionRequest) ParsedStatus() cases.Status { return r.parsedStatus }

// NoteRequest is the HTTP request body for POST /cases/{id}/notes.
type NoteRequest struct {
	Body string `json:"body"`
}

func (r *NoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Body = strings.TrimSpace(r.Body)
	if r.Body == "" {
		return dErrors.New(dErrors.CodeBadRequest, "body is required")
	}
	if len(r.Body) > 8192 {
		return dErrors.New(dErrors.CodeBadRequest, "body must be at most 8192 characters")
	}
	return nil
}
