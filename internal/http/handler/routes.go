package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxdocs/internal/auth"
	"taxdocs/internal/http/middleware"
	"taxdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Every /api/documents route requires a bearer credential resolved by verifier.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, verifier auth.Verifier) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/api/documents", middleware.Authenticate(verifier))
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/upload", UploadDocument(docSvc))
	docs.Get("/:owner/:name", DownloadDocument(docSvc))
	docs.Get("/:name", DownloadDocument(docSvc))
	docs.Delete("/:owner/:name", DeleteDocument(docSvc))
	docs.Delete("/:name", DeleteDocument(docSvc))
}

// Root reports that the API is up.
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "message": "Tax document API is running"})
	}
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Checks record store connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a dependency-free liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// MetricsHandler exposes g in the Prometheus text format.
func MetricsHandler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
