package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/mw"
)

func init() { Register(registerPackages) }

func registerPackages(r chi.Router, d deps.Deps) {
	limiter := mw.RateLimit(mw.RateLimitConfig{
		Burst:      d.UploadBurst,
		PerMinute:  d.UploadPerMin,
		MaxEntries: 10000,
		TrustProxy: d.TrustProxy,
	})

	r.Route("/api/packages", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(corsHandler(d))
			r.Use(requestTimeout(d))
			r.Get("/", handlers.ListPackages(d))
			r.Get("/{name}", handlers.GetPackage(d))
		})

		// Uploads may take longer than the read timeout.
		r.With(
			mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			limiter,
			mw.RequireToken(d.UploadTokenHash, d.Logger),
		).Put("/{name}", handlers.UploadPackage(d))
	})
}

func corsHandler(d deps.Deps) Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func requestTimeout(d deps.Deps) Middleware {
	if d.RequestTimeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Timeout(d.RequestTimeout)
}
