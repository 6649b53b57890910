// Package main is the entry point for the wine catalogue API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/wine-catalog/backend/internal/config"
	"github.com/pkordes/wine-catalog/backend/internal/database"
	"github.com/pkordes/wine-catalog/backend/internal/handler"
	"github.com/pkordes/wine-catalog/backend/internal/middleware"
	"github.com/pkordes/wine-catalog/backend/internal/photo"
	"github.com/pkordes/wine-catalog/backend/internal/repo"
	"github.com/pkordes/wine-catalog/backend/internal/service"
	"github.com/pkordes/wine-catalog/backend/internal/store"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// The default logger is used before the configured one exists.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// --- Durable store ----------------------------------------------------
	wineRepo, closeDB, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB.Close()
	logger.Info("database ready", "driver", cfg.StoreDriver)

	// --- Entry store ------------------------------------------------------
	// Open loads the whole collection once and starts the write worker.
	entries := store.New(wineRepo, logger)
	if err := entries.Open(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := entries.Close(); err != nil {
			logger.Warn("store close", "error", err)
		}
	}()

	photos, err := photo.NewLibrary(cfg.PhotosDir)
	if err != nil {
		return err
	}
	wines := service.NewWineService(entries, cfg.PhotosDir)

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(wines, photos, cfg.CORSOrigins, logger)
	r.Mount("/", handler.Handler(srv))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays generous for photo downloads; live connections are
	// hijacked and manage their own deadlines.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: on SIGINT/SIGTERM give in-flight requests up to
	// 15 seconds to complete before forcefully closing.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// openRepo opens the configured durable store and returns its repo together
// with the handle to close on exit.
func openRepo(ctx context.Context, cfg config.Config) (repo.WineRepo, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewWineRepo(pool), closerFunc(pool.Close), nil
	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewSQLiteWineRepo(db), db, nil
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
