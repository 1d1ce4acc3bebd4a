package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/utils"
)

type reloadResponse struct {
	Status   string `json:"status"`
	Packages int    `json:"packages"`
	Revision string `json:"revision,omitempty"`
}

// Reload queues a catalog reload from the stored feed. The answer carries the
// catalog as it was before the reload.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := reloadResponse{Packages: d.Catalog.Count(), Revision: d.Catalog.Revision()}
		ip := logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy))

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual catalog reload triggered via endpoint", ip)
			resp.Status = "queued"
			render.Status(r, http.StatusAccepted)
		default:
			d.Logger.Warn("catalog reload already pending", ip)
			resp.Status = "pending"
			render.Status(r, http.StatusTooManyRequests)
		}
		render.JSON(w, r, resp)
	}
}
