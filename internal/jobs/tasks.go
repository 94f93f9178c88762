package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/minibank/internal/domain"
)

const TaskTypeTransferNotification = "transfer:notify"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues is the priority map handed to the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

func NewTransferNotificationTask(notice domain.TransferNotice, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeTransferNotification, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(maxRetry),
	), nil
}
