// importctl is a batch-mode companion to the import server. It validates
// and uploads service-order files from the command line, either against a
// live database or against a YAML catalog fixture for offline dry runs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/markup"
	"github.com/mkarlsen/opsimport/internal/store"
)

var (
	catalogPath string
	rulesPath   string
	tenantFlag  string
	batchSize   int
)

var rootCmd = &cobra.Command{
	Use:           "importctl",
	Short:         "Validate and upload service-order files",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "",
		"YAML catalog fixture; when set, commands run offline against an in-memory store")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "",
		"YAML category keyword rules file (defaults to compiled-in rules)")
	rootCmd.PersistentFlags().StringVar(&tenantFlag, "tenant", "",
		"tenant UUID (required when talking to a database)")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"rows per commit batch (0 = default)")
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// pipeline bundles the collaborators a command needs, plus the cleanup to
// run when it is done with them.
type pipeline struct {
	service  *ingest.Service
	tenantID uuid.UUID
	memory   *store.Memory // nil when backed by a database
	close    func()
}

// newPipeline builds an import service over either the catalog fixture
// (offline mode) or the database named by DATABASE_URL.
func newPipeline(ctx context.Context) (*pipeline, error) {
	matcher, err := loadRules()
	if err != nil {
		return nil, err
	}

	opts := ingest.Options{
		BatchSize:     batchSize,
		DefaultPolicy: catalog.FirstEntry,
		Categories:    matcher,
	}

	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("read catalog fixture: %w", err)
		}
		cat, err := store.LoadCatalogFixture(data)
		if err != nil {
			return nil, err
		}
		mem := store.NewMemory(cat)
		return &pipeline{
			service:  ingest.NewService(mem, mem, opts),
			tenantID: uuid.Nil,
			memory:   mem,
			close:    func() {},
		}, nil
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("set DATABASE_URL or pass --catalog for an offline run")
	}
	tenantID, err := uuid.Parse(tenantFlag)
	if err != nil {
		return nil, fmt.Errorf("--tenant must be a UUID when using a database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := store.New(pool)
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &pipeline{
		service:  ingest.NewService(db, db, opts),
		tenantID: tenantID,
		close:    pool.Close,
	}, nil
}

func loadRules() (*markup.CategoryMatcher, error) {
	if rulesPath == "" {
		return markup.NewCategoryMatcher(nil), nil
	}
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	rules, err := markup.LoadCategoryRules(data)
	if err != nil {
		return nil, err
	}
	return markup.NewCategoryMatcher(rules), nil
}
