// Package httpapi assembles the HTTP surface: screening endpoints are open to
// calling services, case work and list administration sit behind operator
// auth.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	caseshandler "chainscreen/internal/cases/handler"
	listhandler "chainscreen/internal/list/handler"
	"chainscreen/internal/platform/middleware"
	screeninghandler "chainscreen/internal/screening/handler"
)

// Deps carries the handlers and middleware dependencies for the router.
type Deps struct {
	Screening *screeninghandler.Handler
	Cases     *caseshandler.Handler
	Lists     *listhandler.Handler
	Validator middleware.TokenValidator
	Logger    *slog.Logger
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	deps.Screening.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator(deps.Validator, deps.Logger))
		deps.Cases.Register(r)
		r.Route("/admin", func(r chi.Router) {
			deps.Lists.Register(r)
		})
	})

	return r
}
