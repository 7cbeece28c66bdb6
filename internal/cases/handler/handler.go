// Package handler exposes case management over HTTP. All case endpoints sit
// behind operator auth; the authenticated subject is the recorded actor.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chainscreen/internal/cases"
	"chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
	"chainscreen/pkg/platform/httputil"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// Service defines the case operations the handler needs.
type Service interface {
	Get(ctx context.Context, id domain.CaseID) (*cases.Detail, error)
	ListByStatus(ctx context.Context, status cases.Status, limit int) ([]*cases.Case, error)
	Transition(ctx context.Context, id domain.CaseID, to cases.Status, actor, note string) (*cases.Case, error)
	AddNote(ctx context.Context, id domain.CaseID, author, body string) (*cases.Note, error)
}

// Handler wires case endpoints to the case service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts case endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/cases", h.HandleList)
	r.Get("/cases/{id}", h.HandleGet)
	r.Post("/cases/{id}/transition", h.HandleTransition)
	r.Post("/cases/{id}/notes", h.HandleAddNote)
}

// HandleList handles GET /cases?status=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, ok := cases.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status"))
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	listed, err := h.service.ListByStatus(ctx, status, limit)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCases(listed))
}

// HandleGet handles GET /cases/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed case id"))
		return
	}

	detail, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDetail(detail))
}

// HandleTransition handles POST /cases/{id}/transition.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed case id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	actor := requestcontext.Actor(ctx)
	updated, err := h.service.Transition(ctx, id, req.ParsedStatus(), actor, req.Note)
	if err != nil {
		h.logger.WarnContext(ctx, "case transition rejected",
			"request_id", requestID,
			"case_id", id,
			"to", req.To,
			"actor", actor,
			"error", err,
		)
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(updated))
}

// HandleAddNote handles POST /cases/{id}/notes.
func (h *Handler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed case id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*NoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	note, err := h.service.AddNote(ctx, id, requestcontext.Actor(ctx), req.Body)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromNote(*note))
}

func translate(err error) error {
	var illegal *cases.IllegalTransitionError
	switch {
	case errors.As(err, &illegal):
		return dErrors.Wrap(dErrors.CodeInvalidState, illegal.Error(), err)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "case not found", err)
	default:
		return err
	}
}
