package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/minibank/internal/domain"
)

// NotificationHandler processes TaskTypeTransferNotification tasks. A
// delivery error makes asynq retry the task up to its MaxRetry.
type NotificationHandler struct {
	deliver func(ctx context.Context, notice domain.TransferNotice) error
	log     *slog.Logger
}

func NewNotificationHandler(deliver func(ctx context.Context, notice domain.TransferNotice) error, log *slog.Logger) *NotificationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationHandler{deliver: deliver, log: log}
}

func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var notice domain.TransferNotice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		h.log.ErrorContext(ctx, "notification task: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return fmt.Errorf("decode notice: %v: %w", err, asynq.SkipRetry)
	}

	return h.deliver(ctx, notice)
}

// asynqLogger routes asynq's internal logging through slog. Fatal exits the
// process, as the asynq.Logger contract requires.
type asynqLogger struct {
	log  *slog.Logger
	exit func(code int)
}

func newAsynqLogger(log *slog.Logger) asynqLogger {
	return asynqLogger{log: log.With(slog.String("component", "asynq")), exit: os.Exit}
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...), slog.Bool("fatal", true))
	l.exit(1)
}
