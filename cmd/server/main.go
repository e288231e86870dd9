package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/lborres/authstore"
	fiberadapter "github.com/lborres/authstore/adapters/fiber"
	"github.com/lborres/authstore/internal/config"
	"github.com/lborres/authstore/internal/logger"
	"github.com/lborres/authstore/internal/telemetry"
)

func logFormat() string {
	format := []string{
		// Timestamp & Request ID
		"${time}|${respHeader:X-Request-ID}",

		// Response metadata
		"${status}|${latency}",

		// Request details
		"${method}|${path}",

		// errors
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to set up tracing", "error", err)
	}

	db, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", "backend", cfg.Backend, "error", err)
	}

	app := fiber.New()
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     logFormat(),
		TimeFormat: "2006/01/02 15:04:05",
	}))

	http := fiberadapter.New(app)
	auth, err := authstore.New(authstore.Config{
		Secret:  cfg.Auth.Secret,
		Adapter: db.adapter,
		HTTP:    http,
		SessionConfig: &authstore.SessionConfig{
			MaxAge:    cfg.Session.MaxAge,
			UpdateAge: cfg.Session.UpdateAge,
		},
		CacheConfig: &authstore.CacheConfig{
			TTL:     cfg.Cache.TTL,
			MaxSize: cfg.Cache.MaxSize,
		},
		DisableCache: !cfg.Cache.Enabled,
		Logger:       logger.Logger,
		BasePath:     cfg.Auth.BasePath,
	})
	if err != nil {
		logger.Fatal("could not create auth instance", "error", err)
	}

	// Example application route behind the session guard
	app.Get("/me", http.Protected, func(c fiber.Ctx) error {
		return c.JSON(fiberadapter.SessionFrom(c).User)
	})

	go func() {
		logger.Info("starting server", "address", cfg.HTTP.Addr, "backend", cfg.Backend, "base_path", auth.BasePath)
		if err := app.Listen(cfg.HTTP.Addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	if err := db.close(shutdownCtx); err != nil {
		logger.Error("error closing storage", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("error flushing traces", "error", err)
	}

	logger.Info("shutdown complete")
}
