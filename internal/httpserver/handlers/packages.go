package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
	"github.com/MrSnakeDoc/gallery/internal/domain"
	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/logger"
)

const (
	maxListLimit   = 200
	suggestionsMax = 3
)

type uploadResponse struct {
	Blob      string `json:"blob"`
	Published bool   `json:"published"`
	ID        string `json:"id,omitempty"`
	Version   string `json:"version,omitempty"`
	Icon      bool   `json:"icon"`
	Entries   int    `json:"entries"`
	Recovered bool   `json:"feed_recovered,omitempty"`
}

type queuedResponse struct {
	Blob    string `json:"blob"`
	EventID string `json:"event_id"`
}

type listResponse struct {
	Query    string            `json:"query,omitempty"`
	Total    int               `json:"total"`
	Packages []*domain.Package `json:"packages"`
}

// UploadPackage stores the request body as "<blob>.vsix" and publishes it,
// inline or through the queue.
func UploadPackage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		blob := strings.TrimSuffix(chi.URLParam(r, "name"), gallery.PackageExt)

		body := http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
		pkg, err := io.ReadAll(body)
		if err != nil {
			renderError(w, r, fmt.Errorf("read upload: %w", err))
			return
		}
		if len(pkg) == 0 {
			renderError(w, r, fmt.Errorf("%w: empty body", gallery.ErrInvalidRequest))
			return
		}

		if d.Producer != nil {
			if err := d.Publisher.StorePackage(ctx, blob, pkg); err != nil {
				renderError(w, r, err)
				return
			}
			ev, err := d.Producer.Enqueue(blob)
			if err != nil {
				d.Logger.Error("failed to queue publish", logger.String("blob", blob), logger.Error(err))
				_ = render.Render(w, r, newErr(http.StatusServiceUnavailable, errors.New("publish queue unavailable")))
				return
			}
			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, queuedResponse{Blob: blob, EventID: ev.ID.String()})
			return
		}

		res, err := d.Publisher.Upload(ctx, blob, pkg)
		if err != nil {
			d.Logger.Warn("upload failed", logger.String("blob", blob), logger.Error(err))
			renderError(w, r, err)
			return
		}

		resp := uploadResponse{
			Blob:      blob,
			Published: !res.Skipped,
			Icon:      res.Icon,
			Entries:   res.Entries,
			Recovered: res.FeedRecovered,
		}
		if res.Manifest != nil {
			resp.ID, resp.Version = res.Manifest.ID, res.Manifest.Version
		}
		render.JSON(w, r, resp)
	}
}

// ListPackages lists the catalog in feed order, or full-text search results
// for ?q=.
func ListPackages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := catalog.DefaultSearchLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				_ = render.Render(w, r, newErr(http.StatusBadRequest, fmt.Errorf("invalid limit %q", v)))
				return
			}
			limit = min(n, maxListLimit)
		}

		pkgs, err := d.Catalog.Search(query, limit)
		if err != nil {
			d.Logger.Debug("catalog search failed", logger.String("query", query), logger.Error(err))
			renderError(w, r, err)
			return
		}

		render.JSON(w, r, listResponse{Query: query, Total: d.Catalog.Count(), Packages: pkgs})
	}
}

// GetPackage returns one catalog entry. Unknown ids get close matches as
// suggestions.
func GetPackage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "name")
		if pkg, ok := d.Catalog.Get(id); ok {
			render.JSON(w, r, pkg)
			return
		}

		e := newErr(http.StatusNotFound, fmt.Errorf("package %q not found", id))
		for _, p := range d.Catalog.Suggest(id, suggestionsMax) {
			e.Suggestions = append(e.Suggestions, p.ID)
		}
		_ = render.Render(w, r, e)
	}
}
