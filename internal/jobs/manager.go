package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Close() error {
	return m.client.Close()
}

// NotificationPublisher puts transfer notices on the durable queue. Enqueue
// is a single Redis round trip, so publishing stays off the network path
// of the actual Telegram delivery.
type NotificationPublisher struct {
	manager  Manager
	maxRetry int
	log      *slog.Logger
}

func NewNotificationPublisher(manager Manager, maxRetry int, log *slog.Logger) *NotificationPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationPublisher{manager: manager, maxRetry: maxRetry, log: log}
}

func (p *NotificationPublisher) Publish(ctx context.Context, notice domain.TransferNotice) bool {
	task, err := NewTransferNotificationTask(notice, p.maxRetry)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to build notification task", slog.Any("error", err))
		metrics.RecordNotification("dropped")
		return false
	}

	info, err := p.manager.Enqueue(ctx, task)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to enqueue notification",
			slog.Int64("receiver_id", notice.ReceiverID),
			slog.Any("error", err),
		)
		metrics.RecordNotification("dropped")
		return false
	}

	p.log.DebugContext(ctx, "notification enqueued", slog.String("task_id", info.ID))
	return true
}
