package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

// Feed serves the stored Atom feed.
func Feed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveBlob(w, r, d, d.Publisher.FeedName())
	}
}

// Blob serves a stored package, icon or feed by name.
func Blob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveBlob(w, r, d, chi.URLParam(r, "name"))
	}
}

// serveBlob writes the object with its revision as a strong ETag.
func serveBlob(w http.ResponseWriter, r *http.Request, d deps.Deps, name string) {
	if err := store.ValidateName(name); err != nil {
		renderError(w, r, err)
		return
	}

	obj, err := d.Store.Get(r.Context(), name)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			d.Logger.Error("failed to read blob", logger.String("name", name), logger.Error(err))
		}
		renderError(w, r, err)
		return
	}

	etag := strconv.Quote(obj.Revision)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(obj.Data); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}
