package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/minibank/pkg/config"
	"github.com/Proton-105/minibank/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "minibank: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		env := cfg.Sentry.Environment
		if env == "" {
			env = cfg.AppEnv
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: env,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log, closer := logger.New(logger.Options{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Sentry:     cfg.Sentry.Enabled,
	})
	defer closer.Close()
	slog.SetDefault(log)

	log.Info("starting minibank",
		slog.String("env", cfg.AppEnv),
		slog.Bool("bot", cfg.Bot.Enabled),
		slog.Bool("http", cfg.HTTP.Enabled),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", slog.Any("error", err))
		return err
	}

	app.start(ctx)
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+5*time.Second)
	defer cancel()

	return app.shutdown.Execute(shutdownCtx)
}
