package server

import (
	"github.com/gofiber/fiber/v2"

	"oilcatalog/internal/core/run"
	"oilcatalog/internal/health"
)

type Dependencies struct {
	Runs    run.Reader
	Enqueue run.EnqueueFunc
	Checks  map[string]health.Check
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Checks)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	runHandler := run.NewHandler(d.Runs, d.Enqueue)
	api.Post("/runs", runHandler.HandleCreateRun)
	api.Get("/runs/:runId", runHandler.HandleGetRun)

	return healthHandler
}
