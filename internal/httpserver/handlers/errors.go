package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/publisher"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

// ErrResponse renders an error as JSON with its status code.
type ErrResponse struct {
	HTTPStatusCode int `json:"-"`

	StatusText  string   `json:"status"`
	ErrorText   string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErr(status int, err error) *ErrResponse {
	e := &ErrResponse{HTTPStatusCode: status, StatusText: http.StatusText(status)}
	if err != nil {
		e.ErrorText = err.Error()
	}
	return e
}

// statusFor maps package sentinel errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, gallery.ErrInvalidPackage),
		errors.Is(err, gallery.ErrInvalidManifest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gallery.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, publisher.ErrTooManyConflicts):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// renderError writes err as a JSON error body. Internal errors are not echoed.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = render.Render(w, r, newErr(status, nil))
		return
	}
	_ = render.Render(w, r, newErr(status, err))
}
