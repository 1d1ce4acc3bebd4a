package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/handlers"
)

func init() { Register(registerFeed) }

func registerFeed(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(corsHandler(d))
		r.Use(requestTimeout(d))
		r.Get("/feed", handlers.Feed(d))
		r.Get("/blobs/{name}", handlers.Blob(d))
	})
}
