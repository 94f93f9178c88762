package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/api"
	"github.com/Proton-105/minibank/internal/bot"
	"github.com/Proton-105/minibank/internal/bot/keyboard"
	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/health"
	"github.com/Proton-105/minibank/internal/history"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/internal/idempotency"
	"github.com/Proton-105/minibank/internal/jobs"
	"github.com/Proton-105/minibank/internal/ledger"
	"github.com/Proton-105/minibank/internal/lifecycle"
	"github.com/Proton-105/minibank/internal/middleware"
	"github.com/Proton-105/minibank/internal/notify"
	"github.com/Proton-105/minibank/internal/ratelimit"
	"github.com/Proton-105/minibank/internal/repository"
	"github.com/Proton-105/minibank/internal/state"
	"github.com/Proton-105/minibank/pkg/config"
	"github.com/Proton-105/minibank/pkg/graceful"
	"github.com/Proton-105/minibank/pkg/metrics"
	"github.com/Proton-105/minibank/pkg/redis"
)

// app holds the wired components and the background loops to start.
type app struct {
	log      *slog.Logger
	shutdown *lifecycle.Shutdown
	loops    []func(ctx context.Context)
	wg       sync.WaitGroup
}

func (a *app) goLoop(fn func(ctx context.Context)) {
	a.loops = append(a.loops, fn)
}

// start launches the background loops. They stop when ctx is cancelled.
func (a *app) start(ctx context.Context) {
	for _, fn := range a.loops {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			fn(ctx)
		}()
	}

	a.shutdown.Register(lifecycle.PhaseDrain, "background loops", func(hookCtx context.Context) error {
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	})
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log, shutdown: lifecycle.NewShutdown(log)}
	checker := health.NewChecker(log)
	probes := lifecycle.NewProbes(checker, log)
	a.shutdown.Register(lifecycle.PhaseIntake, "readiness", probes.Drain)

	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	store := repository.NewAccountStore(cfg.Storage.UsersFile, log)
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize account store: %w", err)
	}
	checker.AddCheck("account_store", health.NewStoreChecker(cfg.Storage.UsersFile))
	metrics.SetAccounts(store.Count(ctx))
	if cfg.Storage.Watch {
		a.goLoop(func(ctx context.Context) {
			if err := store.Watch(ctx); err != nil {
				log.Error("account store watcher stopped", slog.Any("error", err))
			}
		})
	}

	hist := history.New(cfg.Storage.HistoryDir, log)
	if err := hist.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize history log: %w", err)
	}

	catalog, err := i18n.Load(cfg.Bot.Lang)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	var rc *redis.Client
	if cfg.Redis.Enabled {
		rc, err = redis.New(ctx, redis.Config{
			Addr:            cfg.Redis.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			DialTimeout:     cfg.Redis.DialTimeout,
			ConnectAttempts: cfg.Redis.ConnectAttempts,
		})
		if err != nil {
			return nil, err
		}
		checker.AddCheck("redis", health.NewRedisChecker(rc))
		a.shutdown.Register(lifecycle.PhaseRelease, "redis", func(context.Context) error {
			return rc.Close()
		})
	}

	var tb *telebot.Bot
	if cfg.Bot.Enabled {
		tb, err = bot.NewTelebot(cfg.Bot, log)
		if err != nil {
			return nil, err
		}
		checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	}

	notifier, err := a.notifier(cfg, tb, catalog, rc)
	if err != nil {
		return nil, err
	}

	svc := ledger.NewService(store, hist, notifier, ledger.Config{
		PinLength:      cfg.Ledger.PinLength,
		InitialBalance: cfg.Ledger.InitialBalanceAmount(),
		Currency:       cfg.Ledger.Currency,
	}, log)

	fsm := a.sessions(cfg, rc)
	engine := conversation.NewEngine(svc, fsm, catalog, log)
	collector := metrics.NewStateCollector(fsm, 30*time.Second, a.log)
	a.goLoop(collector.Run)

	idem := a.idempotency(cfg, rc)
	rateLimit := a.rateLimit(cfg, rc, catalog)

	if tb != nil {
		b := bot.New(tb, bot.Deps{
			Engine:         engine,
			I18n:           catalog,
			ErrHandler:     errHandler,
			Idempotency:    idem,
			IdempotencyTTL: cfg.Idempotency.TTL,
			RateLimit:      rateLimit,
		}, log)
		a.goLoop(func(context.Context) { b.Start() })
		a.shutdown.Register(lifecycle.PhaseIntake, "telegram bot", func(context.Context) error {
			b.Stop()
			return nil
		})
	}

	if cfg.HTTP.Enabled {
		handler := api.NewHandler(svc, idem, cfg.Idempotency.TTL, errHandler, log)
		srv := graceful.NewServer(log, &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.NewRouter(handler, api.RouterOptions{Probes: probes, RateLimit: rateLimit}),
			ReadHeaderTimeout: 10 * time.Second,
		}, cfg.HTTP.ShutdownTimeout)
		a.goLoop(func(ctx context.Context) {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("http server stopped", slog.Any("error", err))
			}
		})
	}

	return a, nil
}

// notifier picks the delivery pipeline for receiver notices. Without a
// Telegram client there is nobody to deliver to and transfers skip it.
func (a *app) notifier(cfg *config.Config, tb *telebot.Bot, catalog *i18n.Manager, rc *redis.Client) (ledger.Notifier, error) {
	if tb == nil {
		a.log.Info("telegram disabled, receiver notifications are off")
		return nil, nil
	}

	tr := catalog.Translator(cfg.Bot.Lang)
	dispatcher := notify.NewDispatcher(tb, tr, cfg.Ledger.Currency, keyboard.MainMenu(tr), a.log)

	if cfg.Notifications.Backend == "asynq" {
		opt := rc.AsynqOpt()

		manager := jobs.NewManager(opt, a.log)
		worker := jobs.NewWorker(opt, cfg.Notifications.Concurrency, a.log)
		worker.RegisterHandler(jobs.TaskTypeTransferNotification, jobs.NewNotificationHandler(dispatcher.DeliverFunc(), a.log))
		if err := worker.Start(); err != nil {
			return nil, fmt.Errorf("start notification worker: %w", err)
		}

		a.shutdown.Register(lifecycle.PhaseDrain, "notification worker", func(context.Context) error {
			worker.Shutdown()
			return manager.Close()
		})
		return jobs.NewNotificationPublisher(manager, cfg.Notifications.MaxRetry, a.log), nil
	}

	queue := notify.NewQueue(dispatcher.Deliver, cfg.Notifications.Workers, cfg.Notifications.QueueSize, a.log)
	a.goLoop(queue.Start)
	a.shutdown.Register(lifecycle.PhaseDrain, "notification queue", queue.Stop)
	return queue, nil
}

func (a *app) sessions(cfg *config.Config, rc *redis.Client) state.StateMachine {
	var (
		storage state.Storage
		locks   *goredis.Client
	)

	if cfg.Session.Backend == "redis" {
		// A fresh boot id orphans sessions of the previous run, so nobody
		// resumes a half finished transfer after a restart.
		storage = state.NewRedisStorage(rc.Client, a.log, uuid.NewString(), cfg.Session.TTL)
		locks = rc.Client
	} else {
		storage = state.NewMemoryStorage()
	}

	cleaner := state.NewCleaner(storage, a.log, cfg.Session.TTL, cfg.Session.CleanupInterval)
	a.goLoop(cleaner.Run)

	return state.NewStateMachine(storage, a.log, locks)
}

func (a *app) idempotency(cfg *config.Config, rc *redis.Client) idempotency.Manager {
	var (
		store   idempotency.Store
		sweeper idempotency.Sweeper
	)

	if rc != nil {
		rs := idempotency.NewRedisStore(rc.Client, a.log)
		store, sweeper = rs, rs
	} else {
		ms := idempotency.NewMemoryStore()
		store, sweeper = ms, ms
	}

	a.goLoop(idempotency.NewCleaner(sweeper, a.log, cfg.Idempotency.CleanupInterval).Run)
	return idempotency.NewManager(store, a.log)
}

func (a *app) rateLimit(cfg *config.Config, rc *redis.Client, catalog *i18n.Manager) *middleware.RateLimitMiddleware {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	rules := ratelimit.NewRules(cfg.RateLimit)
	_, window := rules.PerActor()
	memory := ratelimit.NewMemoryLimiter(a.log)

	var limiter ratelimit.Limiter = memory
	var sweeper ratelimit.Sweeper = memory
	if rc != nil {
		primary := ratelimit.NewRedisLimiter(rc.Client, a.log)
		limiter = ratelimit.NewAdaptiveLimiter(primary, memory, a.log)
		a.goLoop(ratelimit.NewCleaner(primary, a.log, 10*window, 2*window).Run)
	}
	a.goLoop(ratelimit.NewCleaner(sweeper, a.log, 10*window, 2*window).Run)

	return middleware.NewRateLimitMiddleware(limiter, rules, catalog, a.log)
}
