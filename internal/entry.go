// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tagshelf/internal/api"
	"github.com/starford/tagshelf/internal/mcpserver"
	"github.com/starford/tagshelf/internal/query"
	"github.com/starford/tagshelf/internal/sse"
	"github.com/starford/tagshelf/internal/watcher"
)

// Serve starts the HTTP query API with the given options.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.log(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("mode", cfg.Query.Mode),
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("data_path", cfg.Output.DataPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init query source: %w", err)
	}
	defer src.close()

	svc := query.NewService(src.accessor, cfg.Query.PageSize)

	// SSE broker.
	broker := sse.NewBroker(sse.DefaultTreeThrottle)
	defer broker.Close()

	r := newRouter(svc, broker, src)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if src.live != nil && cfg.Query.Watch {
		live := src.live
		g.Go(func() error {
			return watcher.Watch(gCtx, cfg.Notes.Path, logger, watcher.Options{
				OnEvent: broker.PublishNoteChange,
				OnSettled: func(ctx context.Context) {
					cat, err := live.Refresh(ctx)
					if err != nil {
						logger.Warn("rebuild failed", slog.String("error", err.Error()))
						return
					}
					broker.PublishTreeUpdated(sse.TreeUpdate{
						Notes:   len(cat.Notes),
						Folders: len(cat.Tree.Paths()),
					})
				},
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newRouter(svc *query.Service, broker *sse.Broker, src *source) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.FolderStructure(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(svc, events))

	if src.attachments != nil {
		ah := api.NewAttachmentHandler(src.attachments)
		r.Mount(ah.MountPath(), ah.Routes())
	}
	return r
}

// ServeMCP exposes the query API as MCP tools over stdio. Logs go to
// stderr since stdout carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.log(os.Stderr)
	slog.SetDefault(logger)

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init query source: %w", err)
	}
	defer src.close()

	svc := query.NewService(src.accessor, cfg.Query.PageSize)
	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(svc, app.version).ServeStdio()
}
