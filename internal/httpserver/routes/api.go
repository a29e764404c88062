package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		api.Get("/status", handlers.Status(d))
		api.Get("/alerts", handlers.Alerts(d))
		if d.CheckTrigger != nil {
			api.Post("/check", handlers.Check(d))
		}
	})
}
