package handler

import (
	"encoding/base64"
	"strings"

	dErrors "chainscreen/pkg/domain-errors"
)

// IngestRequest is the HTTP request body for POST /lists/{source}/ingest.
// Payload is the base64-encoded publication; Checksum is the publisher's
// declared sha256 hex digest when known.
type IngestRequest struct {
	Payload   string `json:"payload"`
	SourceURI string `json:"source_uri,omitempty"`
	Checksum  string `json:"checksum,omitempty"`

	decoded []byte
}

func (r *IngestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Payload) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "payload is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(r.Payload)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "payload must be base64")
	}
	r.decoded = decoded
	r.Checksum = strings.ToLower(strings.TrimSpace(r.Checksum))
	return nil
}

// PayloadBytes returns the decoded publication.
func (r *IngestRequest) PayloadBytes() []byte { return r.decoded }
