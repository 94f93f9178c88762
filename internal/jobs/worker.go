package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/minibank/pkg/metrics"
)

// Worker consumes notification tasks from Redis.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker builds a Worker processing at most concurrency tasks at once.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "jobs_worker"))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          Queues,
		Concurrency:     concurrency,
		RetryDelayFunc:  notificationRetryDelay,
		ShutdownTimeout: 5 * time.Second,
		ErrorHandler:    taskErrorHandler(log),
		Logger:          newAsynqLogger(log),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start begins processing in the background and returns immediately.
// Signal handling stays with the caller, which calls Shutdown.
func (w *worker) Start() error {
	w.log.Info("starting processing loop")
	return w.server.Start(w.mux)
}

func (w *worker) Shutdown() {
	w.log.Info("shutting down")
	w.server.Shutdown()
}

// notificationRetryDelay waits 2s, 4s, 8s and so on, capped at a minute.
func notificationRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 5 {
		return time.Minute
	}
	return time.Duration(2<<n) * time.Second
}

func taskErrorHandler(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		if retried >= maxRetry {
			metrics.RecordNotification("exhausted")
		}

		log.WarnContext(ctx, "task failed",
			slog.String("task_type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		)
	})
}
