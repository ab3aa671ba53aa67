package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crucial707/trakset/internal/config"
	"github.com/crucial707/trakset/internal/db"
	"github.com/crucial707/trakset/internal/notify"
	"github.com/crucial707/trakset/internal/repo"
	"github.com/crucial707/trakset/internal/scheduler"
)

func main() {
	// Load configuration
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database FIRST
	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return err
	}

	queue := notify.NewQueue(repo.NewStore(database), newMailer(cfg), notify.Options{
		Workers: cfg.NotifyWorkers,
		Size:    cfg.NotifyQueueSize,
		BaseURL: cfg.BaseURL,
	})
	queue.Start(ctx)
	defer queue.Close()

	if err := scheduler.Run(ctx, repo.NewNoteRepo(database), cfg.DraftPurgeCron, cfg.DraftNoteRetention); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(database, cfg, queue),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
		slog.Info("starting server", "addr", srv.Addr, "tls", tls)
		if tls {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newMailer sends through SMTP when a host is configured and logs otherwise.
func newMailer(cfg config.Config) notify.Mailer {
	if cfg.SMTPHost == "" {
		slog.Warn("SMTP_HOST not set; notifications will be logged, not sent")
		return &notify.LogMailer{Log: slog.Default()}
	}
	return &notify.SMTPMailer{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}
}
