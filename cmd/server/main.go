package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/config"
	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/logging"
	"github.com/mkarlsen/opsimport/internal/markup"
	"github.com/mkarlsen/opsimport/internal/store"
	"github.com/mkarlsen/opsimport/internal/tabular"
	"github.com/mkarlsen/opsimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"batch_size", cfg.Import.BatchSize,
	)

	tabular.MaxFileSize = cfg.Import.MaxFileSize
	ingest.SessionTimeout = cfg.Import.SessionTimeout

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := store.New(pool)
	if err := db.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	categories, err := loadCategoryMatcher(cfg.Import.CategoryRulesFile)
	if err != nil {
		slog.Error("failed to load category rules", "error", err)
		os.Exit(1)
	}

	service := ingest.NewService(db, db, ingest.Options{
		BatchSize:     cfg.Import.BatchSize,
		BatchPause:    cfg.Import.BatchPause,
		DefaultPolicy: catalog.FirstEntry,
		Categories:    categories,
		OnRefresh: func(ctx context.Context) {
			slog.Info("commit pass finished, downstream views should refresh")
		},
	})

	server := web.NewServer(service, cfg.Import.MaxFileSize)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// loadCategoryMatcher reads the optional YAML rules file; an empty path
// yields the compiled-in default rules.
func loadCategoryMatcher(path string) (*markup.CategoryMatcher, error) {
	if path == "" {
		return markup.NewCategoryMatcher(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := markup.LoadCategoryRules(data)
	if err != nil {
		return nil, err
	}
	return markup.NewCategoryMatcher(rules), nil
}
