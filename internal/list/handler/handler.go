// Package handler exposes list version administration over HTTP. Promote and
// rollback sit behind operator auth; the authenticated subject is recorded as
// the actor on every lifecycle change.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chainscreen/internal/list"
	"chainscreen/internal/list/parser"
	"chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
	"chainscreen/pkg/platform/httputil"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// Service defines the list lifecycle operations the handler needs.
type Service interface {
	Ingest(ctx context.Context, source list.Source, payload []byte, sourceURI, declaredChecksum, parserVersion string) (*list.ListVersion, error)
	Validate(ctx context.Context, id domain.VersionID, records []parser.Record) (*list.ValidationResult, error)
	Promote(ctx context.Context, id domain.VersionID, promotedBy string) (*list.ListVersion, error)
	Rollback(ctx context.Context, source list.Source, actor string) (*list.ListVersion, error)
	Version(ctx context.Context, id domain.VersionID) (*list.ListVersion, error)
	History(ctx context.Context, source list.Source) ([]*list.ListVersion, error)
}

// Handler wires list administration endpoints to the list service.
type Handler struct {
	service Service
	parsers map[list.Source]parser.Parser
	logger  *slog.Logger
}

func New(service Service, parsers map[list.Source]parser.Parser, logger *slog.Logger) *Handler {
	return &Handler{service: service, parsers: parsers, logger: logger}
}

// Register mounts list administration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/lists/{source}/ingest", h.HandleIngest)
	r.Post("/lists/versions/{id}/promote", h.HandlePromote)
	r.Post("/lists/{source}/rollback", h.HandleRollback)
	r.Get("/lists/{source}/versions", h.HandleHistory)
	r.Get("/lists/versions/{id}", h.HandleVersion)
}

// HandleIngest handles POST /lists/{source}/ingest. The body is the raw
// publication; it is ingested, parsed, and validated, and the resulting
// validated version awaits an explicit promote.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	source, ok := parseSource(chi.URLParam(r, "source"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown source"))
		return
	}
	p, ok := h.parsers[source]
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no parser configured for source"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*IngestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	version, err := h.service.Ingest(ctx, source, req.PayloadBytes(), req.SourceURI, req.Checksum, p.Version())
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}

	records, err := p.Parse(ctx, req.PayloadBytes())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "payload does not parse", err))
		return
	}

	result, err := h.service.Validate(ctx, version.ID, records)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}

	h.logger.InfoContext(ctx, "manual ingest validated",
		"request_id", requestID,
		"source", source,
		"version_id", version.ID,
		"addresses", result.AddressCount,
	)
	reloaded, err := h.service.Version(ctx, version.ID)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromIngest(reloaded, result))
}

// HandlePromote handles POST /lists/versions/{id}/promote.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseVersionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed version id"))
		return
	}

	actor := requestcontext.Actor(ctx)
	version, err := h.service.Promote(ctx, id, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "promote rejected",
			"request_id", requestcontext.RequestID(ctx),
			"version_id", id,
			"actor", actor,
			"error", err,
		)
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersion(version))
}

// HandleRollback handles POST /lists/{source}/rollback.
func (h *Handler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	source, ok := parseSource(chi.URLParam(r, "source"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown source"))
		return
	}

	version, err := h.service.Rollback(ctx, source, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersion(version))
}

// HandleHistory handles GET /lists/{source}/versions.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	source, ok := parseSource(chi.URLParam(r, "source"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown source"))
		return
	}

	versions, err := h.service.History(ctx, source)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersions(versions))
}

// HandleVersion handles GET /lists/versions/{id}.
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseVersionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed version id"))
		return
	}

	version, err := h.service.Version(ctx, id)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersion(version))
}

func parseSource(tag string) (list.Source, bool) {
	for _, s := range list.Sources {
		if string(s) == tag {
			return s, true
		}
	}
	return "", false
}

func translate(err error) error {
	var vErr *list.ValidationError
	switch {
	case errors.As(err, &vErr):
		return dErrors.Wrap(dErrors.CodeInvalidState, vErr.Error(), err)
	case errors.Is(err, list.ErrIntegrityMismatch):
		return dErrors.Wrap(dErrors.CodeInvalidState, "declared checksum does not match payload", err)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(dErrors.CodeInvalidState, "version is not in a promotable state", err)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "version not found", err)
	default:
		return err
	}
}
