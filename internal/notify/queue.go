package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// Queue is the in-process notification pipeline: Publish never blocks, and
// a fixed set of workers drains the buffer. A full buffer drops the notice.
type Queue struct {
	deliver func(ctx context.Context, notice domain.TransferNotice) bool
	ch      chan domain.TransferNotice
	workers int
	log     *slog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func NewQueue(deliver func(ctx context.Context, notice domain.TransferNotice) bool, workers, size int, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}

	return &Queue{
		deliver: deliver,
		ch:      make(chan domain.TransferNotice, size),
		workers: workers,
		log:     log.With(slog.String("component", "notify_queue")),
	}
}

// Start launches the workers. They run until Stop is called.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for notice := range q.ch {
				q.deliver(context.WithoutCancel(ctx), notice)
			}
		}()
	}
}

// Publish enqueues notice and reports whether it was accepted.
func (q *Queue) Publish(ctx context.Context, notice domain.TransferNotice) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotification("dropped")
		return false
	}

	select {
	case q.ch <- notice:
		return true
	default:
		metrics.RecordNotification("dropped")
		q.log.WarnContext(ctx, "notification queue full, notice dropped", slog.Int64("receiver_id", notice.ReceiverID))
		return false
	}
}

// Stop refuses new notices, lets the workers drain the buffer and waits
// for them or for ctx, whichever comes first.
func (q *Queue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
