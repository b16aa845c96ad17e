package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp wires the routes of the operations API.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/actions", handlers.GetActions)
	app.Get("/workflows/:id/executions", handlers.GetExecutions)
	app.Get("/executions/last/:workflowId", handlers.GetLastExecution)

	return app
}
