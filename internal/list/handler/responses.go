package handler

import (
	"time"

	"chainscreen/internal/list"
)

// VersionResponse is the wire form of a list version.
type VersionResponse struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Format        string     `json:"format"`
	SourceURI     string     `json:"source_uri,omitempty"`
	RetrievedAt   time.Time  `json:"retrieved_at"`
	ContentHash   string     `json:"content_hash"`
	ParserVersion string     `json:"parser_version"`
	RecordCount   int        `json:"record_count"`
	AddressCount  int        `json:"address_count"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PromotedAt    *time.Time `json:"promoted_at,omitempty"`
	PromotedBy    string     `json:"promoted_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HistoryResponse wraps a source's version history, newest first.
type HistoryResponse struct {
	Versions []VersionResponse `json:"versions"`
}

// QuarantineResponse is one record rejected during validation.
type QuarantineResponse struct {
	EntityUID string `json:"entity_uid"`
	IDType    string `json:"id_type"`
	IDValue   string `json:"id_value"`
	Reason    string `json:"reason"`
}

// IngestResponse reports the outcome of a manual ingest plus validation.
type IngestResponse struct {
	Version      VersionResponse      `json:"version"`
	Deduplicated int                  `json:"deduplicated"`
	Quarantined  []QuarantineResponse `json:"quarantined,omitempty"`
}

// FromVersion maps a domain version onto its wire form.
func FromVersion(v *list.ListVersion) VersionResponse {
	return VersionResponse{
		ID:            v.ID.String(),
		Source:        string(v.Source),
		Format:        v.Format,
		SourceURI:     v.SourceURI,
		RetrievedAt:   v.RetrievedAt,
		ContentHash:   v.ContentHash,
		ParserVersion: v.ParserVersion,
		RecordCount:   v.RecordCount,
		AddressCount:  v.AddressCount,
		Status:        string(v.Status),
		FailureReason: v.FailureReason,
		PromotedAt:    v.PromotedAt,
		PromotedBy:    v.PromotedBy,
		CreatedAt:     v.CreatedAt,
	}
}

// FromVersions maps a version history.
func FromVersions(versions []*list.ListVersion) HistoryResponse {
	resp := HistoryResponse{Versions: make([]VersionResponse, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, FromVersion(v))
	}
	return resp
}

// FromIngest maps an ingest outcome.
func FromIngest(v *list.ListVersion, result *list.ValidationResult) IngestResponse {
	resp := IngestResponse{
		Version:      FromVersion(v),
		Deduplicated: result.Deduplicated,
	}
	for _, q := range result.Quarantined {
		resp.Quarantined = append(resp.Quarantined, QuarantineResponse{
			EntityUID: q.EntityUID,
			IDType:    q.IDType,
			IDValue:   q.IDValue,
			Reason:    q.Reason,
		})
	}
	return resp
}
