package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/yumyum-storefront/internal/api"
	"github.com/dom/yumyum-storefront/internal/config"
	"github.com/dom/yumyum-storefront/internal/logging"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/dom/yumyum-storefront/internal/repository/memory"
	"github.com/dom/yumyum-storefront/internal/repository/mongodb"
	"github.com/dom/yumyum-storefront/internal/repository/postgres"
	"github.com/dom/yumyum-storefront/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repos, err := openRepositories(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("failed to open store", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}

	// Initialize services
	services, err := service.NewServices(repos, cfg, log)
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	seeded, err := services.Product.EnsureCatalog(context.Background())
	if err != nil {
		log.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}
	if seeded > 0 {
		log.Info("seeded product catalog", "count", seeded)
	}

	// Initialize router
	router := api.NewRouter(services, cfg, log)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "port", cfg.Port, "driver", cfg.DatabaseDriver, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	if err := repos.Close(ctx); err != nil {
		log.Error("failed to close store", "error", err)
	}

	log.Info("server stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repository.Repositories, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return postgres.NewRepositories(db), nil

	case config.DriverMongo:
		client, err := mongodb.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		names := mongodb.Collections{Users: cfg.UsersCollection, Products: cfg.ProductsCollection}
		db := client.Database(cfg.DatabaseName)
		if err := mongodb.EnsureIndexes(ctx, db, names); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return mongodb.NewRepositories(client, db, names), nil

	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewRepositories(), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}
