package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"taxdocs/docs"
	"taxdocs/internal/auth"
	"taxdocs/internal/config"
	"taxdocs/internal/database"
	handlers "taxdocs/internal/http/handler"
	"taxdocs/internal/http/middleware"
	"taxdocs/internal/logger"
	"taxdocs/internal/otel"
	"taxdocs/internal/repository"
	"taxdocs/internal/repository/postgres"
	"taxdocs/internal/repository/sqlite"
	"taxdocs/internal/service"
	"taxdocs/internal/storage"
)

// @title Tax Document API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger.Init(cfg.Log.Dev, cfg.Log.SentryDSN)

	if err := config.Validate(cfg); err != nil {
		fatal("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		fatal("failed to initialize tracing", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()

	objStore, err := newStorage(cfg)
	if err != nil {
		fatal("failed to initialize document storage", err)
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		fatal("failed to initialize authentication", err)
	}

	docRepo := newRepository(cfg.Database.Driver, db)
	docSvc := service.NewDocumentService(objStore, docRepo)

	metrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		fatal("failed to register metrics", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxUploadMB << 20,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	app.Use(middleware.CORS(cfg.AllowedOrigins))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(metrics.Handler())

	handlers.RegisterRoutes(app, db, docSvc, verifier)
	app.Get(middleware.MetricsPath, handlers.MetricsHandler(prometheus.DefaultGatherer))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("server shutdown failed", slog.Any("error", err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Log.Info("server starting",
		slog.String("addr", addr),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("storage_backend", cfg.Storage.Backend),
	)
	if err := app.Listen(addr); err != nil {
		fatal("failed to start server", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Log.Error("tracing shutdown failed", slog.Any("error", err))
	}
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return storage.NewMinIO(cfg.MinIO)
	case "local":
		return storage.NewLocal(cfg.Storage.UploadRoot)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

func newRepository(driver string, db *sql.DB) repository.DocumentRepository {
	if driver == "sqlite" {
		return sqlite.NewDocumentSQLite(db)
	}
	return postgres.NewDocumentPostgres(db)
}

// newVerifier accepts locally issued session tokens and, when configured,
// ID tokens from the external identity provider.
func newVerifier(a config.AuthConfig) (auth.Verifier, error) {
	router := auth.NewRouter(auth.NewLocalVerifier([]byte(a.JWTSecret), a.JWTIssuer, a.JWTTTL))
	if a.ProviderIssuer == "" {
		return router, nil
	}

	var keys auth.KeySource
	if len(a.ProviderKeys) > 0 {
		static, err := auth.NewStaticKeys(a.ProviderKeys)
		if err != nil {
			return nil, err
		}
		keys = static
	} else {
		keys = auth.NewCertURLKeys(a.ProviderCertsURL, a.KeyCacheTTL, nil)
	}
	router.Register(a.ProviderIssuer, auth.NewProviderVerifier(a.ProviderIssuer, a.ProviderAudience, keys))
	return router, nil
}

func fatal(msg string, err error) {
	logger.Log.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
