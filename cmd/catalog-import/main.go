// Command catalog-import loads gzipped NDJSON product feeds into the catalog.
// A product id present in several feeds is imported from the last feed that
// lists it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/luxe-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		workers     int
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent feed writers")
	flag.BoolVar(&dryRun, "dry-run", false, "scan feeds and report duplicates without writing")
	flag.Parse()

	feeds := flag.Args()
	if len(feeds) == 0 {
		slog.Error("usage: catalog-import [flags] feed1.ndjson.gz [feed2.ndjson.gz ...]")
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, feeds, workers, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, feeds []string, workers int, dryRun bool) error {
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	plan, err := planImport(ctx, feeds)
	if err != nil {
		return err
	}

	slog.Info("feeds scanned",
		slog.Int("feeds", len(feeds)),
		slog.Int("duplicates", len(plan.owner)),
	)
	if dryRun {
		for id, idx := range plan.owner {
			slog.Info("duplicate product", slog.String("id", id), slog.String("kept_from", feeds[idx]))
		}
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := importFeeds(ctx, postgres.NewProductRepository(pool), feeds, plan, workers)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("written", stats.written),
		slog.Int("shadowed", stats.shadowed),
	)
	return nil
}
