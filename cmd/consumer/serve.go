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

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/config"
	"github.com/telhawk-systems/event-relay/internal/handlers"
	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/publisher"
	"github.com/telhawk-systems/event-relay/internal/ratelimit"
	"github.com/telhawk-systems/event-relay/internal/server"
	"github.com/telhawk-systems/event-relay/internal/service"
	"github.com/telhawk-systems/event-relay/internal/storage"
	"github.com/telhawk-systems/event-relay/internal/storage/postgres"
	"github.com/telhawk-systems/event-relay/internal/storage/sqlite"
	"github.com/telhawk-systems/event-relay/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event consumer HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("consumer"))
	logging.SetDefault(logger)

	if cfg.Warning != "" {
		logger.Warn(cfg.Warning)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "event-consumer",
		Stdout:      cfg.Tracing.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", logging.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg.Consumer)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	limiter := newRateLimiter(ctx, cfg.RateLimit, logger)
	defer limiter.Close()

	pub := newPublisher(cfg.NATS, logger)
	defer pub.Close()

	svc := service.NewIngestService(store,
		service.WithPublisher(pub),
		service.WithLogger(logger),
	)
	handler := handlers.NewEventHandler(svc, limiter, logger, cfg.Consumer.MaxBodyBytes)

	srv := &http.Server{
		Addr:         cfg.Consumer.Addr(),
		Handler:      server.NewRouter(handler, logger),
		ReadTimeout:  cfg.Consumer.ReadTimeout,
		WriteTimeout: cfg.Consumer.WriteTimeout,
		IdleTimeout:  cfg.Consumer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting event consumer",
			slog.String("host", cfg.Consumer.Host),
			slog.Int("port", cfg.Consumer.Port),
			slog.String("db_type", cfg.Consumer.DBType),
			slog.String("db_path", cfg.Consumer.DBPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Consumer.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// openStore selects the storage backend named by db_type.
func openStore(ctx context.Context, cfg config.ConsumerConfig) (storage.Store, error) {
	switch cfg.DBType {
	case storage.BackendSQLite, "":
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return store, nil
	case storage.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database_url is required when db_type is postgres")
		}
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)",
			storage.ErrUnknownBackend, cfg.DBType, storage.BackendSQLite, storage.BackendPostgres)
	}
}

func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *logging.Logger) ratelimit.RateLimiter {
	if !cfg.Enabled {
		logger.Debug("Rate limiting disabled in configuration")
		return ratelimit.NoOpRateLimiter{}
	}

	limiter, err := ratelimit.NewRedisRateLimiter(ctx, cfg.RedisURL, cfg.Requests, cfg.Window)
	if err != nil {
		logger.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
			logging.Error(err))
		return ratelimit.NoOpRateLimiter{}
	}

	logger.Info("Rate limiting enabled",
		slog.Int("requests", cfg.Requests),
		slog.Duration("window", cfg.Window),
	)
	return limiter
}

func newPublisher(cfg config.NATSConfig, logger *logging.Logger) publisher.Publisher {
	if !cfg.Enabled {
		return publisher.Noop{}
	}

	pub, err := publisher.NewNATS(publisher.Config{
		URL:     cfg.URL,
		Subject: cfg.Subject,
	}, logger.Logger)
	if err != nil {
		logger.Warn("Failed to connect to NATS, events will not be published",
			logging.Error(err))
		return publisher.Noop{}
	}

	logger.Info("Publishing committed events",
		logging.URL(cfg.URL),
		slog.String("subject", cfg.Subject),
	)
	return pub
}
