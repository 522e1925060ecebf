package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/handlers"
)

func init() { Register(registerValidate) }

func registerValidate(r chi.Router, d deps.Deps) {
	limited := r.With(writeLimit(d))
	limited.Get("/api/validate", handlers.ValidateGet(d))
	limited.Post("/api/validate", handlers.ValidatePost(d))
}
