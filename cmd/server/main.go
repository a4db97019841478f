package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"library/internal/catalog"
	"library/internal/config"
	"library/internal/keepalive"
	"library/internal/logger"
	"library/internal/response"
	"library/internal/server"
	"library/internal/storage/books"
	"library/internal/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("Invalid LOG_LEVEL: " + err.Error())
		os.Exit(1)
	}

	l, err := logger.NewSLog(os.Stderr, cfg.LogFormat, lvl, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey)
	if err != nil {
		slog.Error("Invalid LOG_FORMAT: " + err.Error())
		os.Exit(1)
	}
	slog.SetDefault(l)

	if err = run(cfg, l); err != nil {
		l.Error("aborting: " + err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("Starting catalog service", slog.String("env", cfg.Env), slog.String("addr", cfg.BindAddr))

	pg, err := postgres.Connect(ctx, cfg.Postgres, l)
	if err != nil {
		return err
	}
	defer pg.Close()

	br := books.NewPGXRepository(pg, l)
	if err = br.EnsureSchema(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           server.Router(catalog.NewService(br, l), &response.Responder{DebugMode: cfg.DebugMode}, cfg.Origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var ka *keepalive.Scheduler
	if cfg.KeepAlive.Enabled {
		ka = keepalive.NewScheduler(
			&keepalive.Prober{Client: &http.Client{Timeout: cfg.KeepAlive.Timeout}, Url: cfg.KeepAlive.Url},
			cfg.KeepAlive.Interval, cfg.KeepAlive.Timeout, l,
		)
		ka.Start()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if ka != nil {
			if err := ka.Stop(sctx); err != nil {
				l.Warn("Keep-alive scheduler did not stop in time: " + err.Error())
			}
		}

		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
