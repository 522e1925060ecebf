package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/handlers"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	r.With(adminOnly(d)...).Get("/infra", handlers.Infra(d))
}
