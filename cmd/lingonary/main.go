package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/japaniel/lingonary/pkg/cli"
	"github.com/japaniel/lingonary/pkg/config"
	"github.com/japaniel/lingonary/pkg/db"
	"github.com/japaniel/lingonary/pkg/db/pgstore"
	"github.com/japaniel/lingonary/pkg/ingest"
	"github.com/japaniel/lingonary/pkg/logger"
	"github.com/japaniel/lingonary/pkg/transcript"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	configFlag := flag.String("config", "", "Path to YAML config file (default ./config/config.yaml)")
	dbFlag := flag.String("db", "", "Path to SQLite database (overrides database.path)")
	importFlag := flag.String("import", "", "Path to a transcript JSON file to add to the word library")
	statsFlag := flag.Bool("stats", false, "Print word library counts and exit")
	lengthFlag := flag.Int("length", 0, "Number of questions per quiz (overrides quiz.length)")
	masteredFlag := flag.Bool("include-mastered", false, "Include mastered words in the quiz")
	flag.Parse()

	// A .env next to the binary may carry DATABASE_URL and LINGONARY_* settings.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to read .env: %v", err)
	}

	// Flags win over the config file and are applied before validation, so
	// -db works even when the file selects postgres without a URL.
	flagOverrides := func(cfg *config.Config) {
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "db":
				cfg.DB.Driver = "sqlite"
				cfg.DB.Path = *dbFlag
			case "length":
				cfg.Quiz.Length = *lengthFlag
			case "include-mastered":
				cfg.Quiz.IncludeMastered = *masteredFlag
			}
		})
	}

	cfg, err := config.Load(*configFlag, flagOverrides)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg, *importFlag, *statsFlag); err != nil {
		lg.Error("lingonary failed", zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger, importPath string, stats bool) error {
	store, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	app := &cli.App{Store: store, Logger: lg, Prefs: cfg.Quiz}

	if importPath != "" {
		return importTranscript(ctx, store, cfg.Import, lg, importPath)
	}
	if stats {
		return app.PrintStats(ctx, os.Stdout)
	}

	saver := ingest.NewSaver(store, cfg.Saver.Workers, cfg.Saver.Queue, lg)
	// Close waits for queued saves so progress is on disk before exit.
	defer saver.Close()
	app.Saver = saver

	return app.Review(ctx, os.Stdin, os.Stdout)
}

func openStore(ctx context.Context, cfg config.DB) (db.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.URL, pgstore.PoolConfig{
			MaxConns:        int32(cfg.MaxConnections),
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		conn, err := db.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
		}
		return db.NewSQLiteStore(conn), nil
	}
}

func importTranscript(ctx context.Context, store db.Store, cfg config.Import, lg *zap.Logger, path string) error {
	fmt.Printf("Loading transcript from %s...\n", path)
	entries, err := transcript.Load(path)
	if err != nil {
		return err
	}

	importer := ingest.NewImporter(store, lg)
	importer.Padding = cfg.Padding
	if cfg.BatchSize > 0 {
		importer.BatchSize = cfg.BatchSize
	}
	importer.OnProgress = func(current, total int) {
		fmt.Printf("\rProcessed %d/%d entries", current, total)
	}

	res, err := importer.Import(ctx, entries)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("Added %d new words (%d skipped) from %d entries.\n", res.Created, res.Skipped, res.Entries)
	return nil
}
