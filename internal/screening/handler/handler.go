// Package handler exposes the screening engine over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chainscreen/internal/canonical"
	"chainscreen/internal/screening"
	"chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
	"chainscreen/pkg/platform/httputil"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// Service defines the screening operations the handler needs.
type Service interface {
	Screen(ctx context.Context, chain canonical.Chain, raw string) (*screening.Decision, error)
	ScreenByTicker(ctx context.Context, ticker, raw string) ([]*screening.Decision, error)
	Decision(ctx context.Context, id domain.DecisionID) (*screening.Decision, error)
	History(ctx context.Context, chain canonical.Chain, raw string, limit int) ([]*screening.Decision, error)
}

// Handler wires screening endpoints to the screening service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts screening endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/screen", h.HandleScreen)
	r.Get("/decisions/{id}", h.HandleDecision)
	r.Get("/addresses/{chain}/{address}/decisions", h.HandleHistory)
}

// HandleScreen handles POST /screen. The body names either a chain or a
// ticker; ticker requests may fan out to several chain candidates.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[*ScreenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var decisions []*screening.Decision
	var err error
	if req.Ticker != "" {
		decisions, err = h.service.ScreenByTicker(ctx, req.Ticker, req.Address)
	} else {
		var d *screening.Decision
		d, err = h.service.Screen(ctx, req.ParsedChain(), req.Address)
		if d != nil {
			decisions = []*screening.Decision{d}
		}
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "screening failed",
			"request_id", requestID,
			"chain", req.Chain,
			"ticker", req.Ticker,
			"error", err,
		)
		httputil.WriteError(w, translate(err))
		return
	}

	h.logger.InfoContext(ctx, "address screened",
		"request_id", requestID,
		"chain", req.Chain,
		"ticker", req.Ticker,
		"candidates", len(decisions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecisions(decisions))
}

// HandleDecision handles GET /decisions/{id}.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseDecisionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed decision id"))
		return
	}

	decision, err := h.service.Decision(ctx, id)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}

// HandleHistory handles GET /addresses/{chain}/{address}/decisions.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chain, ok := canonical.ParseChain(chi.URLParam(r, "chain"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown chain"))
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

	decisions, err := h.service.History(ctx, chain, chi.URLParam(r, "address"), limit)
	if err != nil {
		httputil.WriteError(w, translate(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecisions(decisions))
}

// translate maps service errors onto stable client-facing codes. Persistence
// failures surface as unavailable: the caller must treat the screening as not
// performed.
func translate(err error) error {
	switch {
	case errors.Is(err, screening.ErrDecisionNotPersisted):
		return dErrors.Wrap(dErrors.CodeUnavailable, "decision could not be recorded; transaction must not proceed", err)
	case errors.Is(err, canonical.ErrUnmappedTicker):
		return dErrors.Wrap(dErrors.CodeBadRequest, "unmapped ticker", err)
	case errors.Is(err, canonical.ErrInvalidAddressFormat):
		return dErrors.Wrap(dErrors.CodeBadRequest, "invalid address", err)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "decision not found", err)
	default:
		return err
	}
}
