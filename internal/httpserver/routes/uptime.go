package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/handlers"
)

func init() { Register(registerUptime) }

func registerUptime(r chi.Router, d deps.Deps) {
	limited := r.With(writeLimit(d))
	limited.Get("/api/uptime", handlers.Uptime(d))
	limited.Post("/api/uptime", handlers.Uptime(d))
}
