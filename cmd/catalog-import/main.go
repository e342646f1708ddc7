package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/catalog"
	"github.com/xenking/procurement-portal/internal/repository"
)

func main() {
	_ = godotenv.Load()

	var (
		dataDir     string
		databaseURL string
		batchSize   int
		expected    uint
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 500, "products per upsert batch")
	flag.UintVar(&expected, "expected-records", 1_000_000, "expected records per file, sizes the duplicate filters")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := catalog.Config{BatchSize: batchSize, ExpectedRecords: expected}
	if err := run(ctx, lg, dataDir, databaseURL, cfg); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, dataDir, databaseURL string, cfg catalog.Config) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list catalog files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}
	// Name order decides which file wins on duplicate codes.
	slices.Sort(files)

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := catalog.NewImporter(repository.NewProductRepository(pool), lg, cfg)
	if _, err := im.Import(ctx, files); err != nil {
		return errors.Wrap(err, "import")
	}
	return nil
}
