package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskNotifyDispatch is the asynq task type consumed by the worker.
const TaskNotifyDispatch = "notify:dispatch"

// Enqueuer publishes events onto the asynq queue.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer over the given asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Publish serialises the event and enqueues a dispatch task.
func (e *Enqueuer) Publish(ctx context.Context, event Event) error {
	if e == nil || e.client == nil {
		return fmt.Errorf("notify: enqueuer not configured")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	task := asynq.NewTask(TaskNotifyDispatch, payload)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Queue("notify")); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}
