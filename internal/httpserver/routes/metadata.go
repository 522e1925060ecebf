package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/handlers"
)

func init() { Register(registerMetadata) }

func registerMetadata(r chi.Router, d deps.Deps) {
	r.Get("/api/metadata", handlers.ListMetadata(d))
	r.Get("/api/metadata/{id}", handlers.GetMetadata(d))

	limited := r.With(writeLimit(d))
	limited.Post("/api/metadata", handlers.CreateMetadata(d))
	limited.Put("/api/metadata/{id}", handlers.UpdateMetadata(d))
	limited.Delete("/api/metadata/{id}", handlers.DeleteMetadata(d))
}
