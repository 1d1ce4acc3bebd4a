package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/mw"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	cidrs := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)

	r.Get("/healthz", handlers.Healthz(d))
	r.With(cidrs).Get("/readyz", handlers.Readyz(d))
	r.With(cidrs, mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		r.With(cidrs).Handle("/metrics", d.Metrics.Handler())
	}
}
