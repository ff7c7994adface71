package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/advisio/appointment-reminder-backend/internal/api"
	"github.com/advisio/appointment-reminder-backend/internal/config"
	"github.com/advisio/appointment-reminder-backend/internal/db"
	"github.com/advisio/appointment-reminder-backend/internal/email"
	"github.com/advisio/appointment-reminder-backend/internal/scheduler"
	"github.com/advisio/appointment-reminder-backend/internal/store"
)

func main() {
	runOnce := flag.Bool("run-once", false, "execute a single reminder batch and exit")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger, *runOnce); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, runOnce bool) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "tz", cfg.Timezone)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (atomic multi-step writes) ──────────────────────────────────────
	st := store.New(pool, queries)

	// ── Mailer ────────────────────────────────────────────────────────────────
	// The SMTP transport is built exactly once here and passed down by
	// interface — there is no ambient transport singleton anywhere.
	mailer, err := email.NewSMTPClient(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromAddr: cfg.FromAddr,
		FromName: cfg.FromName,
		Timeout:  cfg.EmailTimeout,
	})
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	// ── Scheduler ─────────────────────────────────────────────────────────────
	sched := scheduler.New(queries, st, mailer, scheduler.Config{
		BaseURL:                cfg.BaseURL,
		DefaultConsultantEmail: cfg.DefaultConsultantEmail,
		Hour:                   cfg.ReminderHour,
		Minute:                 cfg.ReminderMinute,
		Location:               loc,
		EmailTimeout:           cfg.EmailTimeout,
	}, logger)

	// Operational escape hatch: run one batch and exit, e.g. after a missed
	// cron window.
	if runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		return sched.RunOnce(ctx, time.Now())
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(queries, st, mailer, api.Config{
		Env:                    cfg.Env,
		DefaultConsultantEmail: cfg.DefaultConsultantEmail,
		Location:               loc,
		EmailTimeout:           cfg.EmailTimeout,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Scheduler and HTTP server both
	// respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The scheduler blocks until ctx is done.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// The scheduler waits for an in-flight batch before returning.
	<-schedDone
	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool, verifies it is reachable, and returns the
// query layer bound to it.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool. The service is low-traffic; the batch is the
	// only thing that fans out queries.
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}
