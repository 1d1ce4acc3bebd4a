package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Backend       string  `json:"backend"`
	Feed          string  `json:"feed"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz is the liveness probe. It touches no dependency.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		render.JSON(w, r, healthzResponse{
			Status:        "ok",
			UptimeSeconds: d.TimeNow().Sub(d.StartTime).Seconds(),
			Backend:       d.StorageBackend,
			Feed:          d.Publisher.FeedName(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		})
	}
}

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the store answers and the catalog was loaded.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyzResponse{Ready: true}
		switch {
		case d.Store.Ping(ctx) != nil:
			resp = readyzResponse{Error: "store unavailable"}
		case d.Catalog.GetLastReload().IsZero():
			resp = readyzResponse{Error: "catalog not loaded"}
		}

		if !resp.Ready {
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, resp)
	}
}
