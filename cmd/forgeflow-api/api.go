// Package main provides the ForgeFlow status API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/metrics"
	"github.com/quendro/forgeflow/pkg/persistence"
	"github.com/quendro/forgeflow/pkg/web"
)

type API struct {
	logger    *slog.Logger
	store     persistence.Persistence
	trail     audit.Trail
	collector *metrics.Collector
	runner    web.Runner
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	trail audit.Trail,
	collector *metrics.Collector,
	runner web.Runner,
) *API {
	return &API{
		logger:    logger,
		store:     store,
		trail:     trail,
		collector: collector,
		runner:    runner,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.store, a.trail, a.runner, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ForgeFlow API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Get("/:id/events", handlers.GetWorkflowEvents)

	app.Get("/stats", handlers.GetStatistics)
	app.Get("/health", handlers.HealthCheck)

	metricsHandler := promhttp.HandlerFor(a.collector.Registry(), promhttp.HandlerOpts{})
	app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
