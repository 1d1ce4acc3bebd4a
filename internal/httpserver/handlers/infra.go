package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool   `json:"ok"`
	PackagesLoaded *int   `json:"packages_loaded,omitempty"`
	LastReload     string `json:"last_reload,omitempty"`
	Revision       string `json:"revision,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Clients        *int   `json:"clients,omitempty"`
	Blobs          *int   `json:"blobs,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Error          string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		packages := d.Catalog.Count()
		lastReload := d.Catalog.GetLastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"catalog": {
				OK:             !lastReload.IsZero(),
				PackagesLoaded: &packages,
				LastReload:     lastReloadStr,
				Revision:       d.Catalog.Revision(),
			},
			"store": checkStore(r.Context(), d),
			"queue": checkQueue(d),
		}
		if d.Events != nil {
			clients := d.Events.Clients()
			components["events"] = componentStatus{OK: true, Clients: &clients}
		}

		response := infraResponse{
			Status:     determineStatus(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineStatus(components map[string]componentStatus) string {
	// The store holds the feed: without it nothing can be published or served
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}

	// Catalog or queue down: downloads still work, search or uploads do not
	for _, name := range []string{"catalog", "queue"} {
		if c, exists := components[name]; exists && !c.OK {
			return "degraded"
		}
	}

	return "ok"
}

func checkStore(parent context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StorageBackend,
			Impact: "publishing-and-downloads-disabled",
			Error:  err.Error(),
		}
	}
	names, err := d.Store.List(ctx)
	if err != nil {
		return componentStatus{OK: true, Mode: d.StorageBackend, Error: err.Error()}
	}
	blobs := len(names)
	return componentStatus{OK: true, Mode: d.StorageBackend, Blobs: &blobs}
}

func checkQueue(d deps.Deps) componentStatus {
	if d.Producer == nil {
		return componentStatus{OK: true, Mode: "inline"}
	}
	if err := d.Producer.Ping(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "nsq",
			Impact: "uploads-disabled",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "nsq"}
}
