package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/handlers"
)

func init() { Register(registerQuery) }

func registerQuery(r chi.Router, d deps.Deps) {
	r.Get("/api/suggestion", handlers.Suggestion(d))
	r.Get("/api/metakg", handlers.MetaKG(d))
}
