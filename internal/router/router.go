package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/prabalshrestha/grade-lens/internal/config"
	"github.com/prabalshrestha/grade-lens/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler *handler.GradingHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))

	if deps.GradingHandler != nil {
		api := app.Group("/api", func(c *fiber.Ctx) error {
			c.Set("X-Application", cfg.AppName)
			return c.Next()
		})
		deps.GradingHandler.Register(api)
	}
}
