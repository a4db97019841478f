package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/joho/godotenv/autoload"

	"library/internal/config"
	"library/internal/importer"
	"library/internal/logger"
	"library/internal/storage/books"
	"library/internal/storage/postgres"
)

// Seeds the books table from an OPDS acquisition feed. The catalog service itself never writes.
func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.LoadImporter()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("Invalid LOG_LEVEL: " + err.Error())
		os.Exit(1)
	}

	l, err := logger.NewSLog(os.Stderr, cfg.LogFormat, lvl, path.Dir(path.Dir(path.Dir(thisFile))), nil)
	if err != nil {
		slog.Error("Invalid LOG_FORMAT: " + err.Error())
		os.Exit(1)
	}
	slog.SetDefault(l)

	feed, err := url.Parse(cfg.Feed)
	if err != nil {
		l.Error("Invalid URL in OPDS_FEED: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.Connect(ctx, cfg.Postgres, l)
	if err != nil {
		l.Error(err.Error())
		os.Exit(1)
	}
	defer pg.Close()

	br := books.NewPGXRepository(pg, l)
	if err = br.EnsureSchema(ctx); err != nil {
		l.Error("Failed to create books table: " + err.Error())
		os.Exit(1)
	}

	imp := importer.OPDS{
		Client:   &http.Client{Timeout: time.Minute},
		Logger:   l,
		Books:    br,
		MaxPages: cfg.MaxPages,
	}

	n, err := imp.Import(ctx, feed)
	if err != nil {
		l.Error("Import failed: "+err.Error(), slog.Int("imported", n))
		os.Exit(1)
	}

	l.Info("Import finished", slog.Int("books", n))
}
