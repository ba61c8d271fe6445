package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcnem/agentgraph/internal/adapters/postgres"
	"github.com/arcnem/agentgraph/internal/adapters/redis"
	"github.com/arcnem/agentgraph/internal/api"
	"github.com/arcnem/agentgraph/internal/config"
	"github.com/arcnem/agentgraph/internal/logging"
	"github.com/arcnem/agentgraph/internal/transact"
	"github.com/arcnem/agentgraph/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow graph HTTP API",
	Long: `Serve starts the HTTP API backed by Postgres, with an optional Redis
cache in front of the model and tool catalogs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(logLevel(cfg.Log.Level))

	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required (set AGENTGRAPH_POSTGRES_DSN or the config file)")
	}
	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	store := postgres.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	var catalogs ports.CatalogSource = postgres.NewCatalogSource(pool)
	if cfg.Redis.Addr != "" {
		cache := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, catalogs,
			redis.WithTTL(cfg.Redis.CacheTTL))
		defer cache.Close()
		catalogs = cache
		logger.Info("catalog cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	transactor := transact.New(store, catalogs, nil, logger)
	handler := api.NewHandler(transactor, store, catalogs, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
