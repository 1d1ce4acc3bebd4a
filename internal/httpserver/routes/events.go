package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/mw"
)

func init() { Register(registerEvents) }

// The websocket route stays outside the request timeout.
func registerEvents(r chi.Router, d deps.Deps) {
	if d.Events == nil {
		return
	}
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/api/events", d.Events.ServeHTTP)
}
