package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/manarah-platform/manarah/internal/jobs"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Mailer delivers a single notification message.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPMailer sends notifications through a plain SMTP relay.
type SMTPMailer struct {
	Addr string
	From string
	To   string
}

// Send submits the message to the relay.
func (m SMTPMailer) Send(_ context.Context, subject, body string) error {
	if m.Addr == "" || m.To == "" {
		return errors.New("smtp mailer: not configured")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, m.To, subject, body)
	return smtp.SendMail(m.Addr, nil, m.From, []string{m.To}, []byte(msg))
}

// NotifyDispatchJob consumes queued notification events and hands them to the
// mailer. Events are deduplicated by their ID so a retried task never sends the
// same notification twice.
type NotifyDispatchJob struct {
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Mailer      Mailer
	Idempotency *shared.IdempotencyStore
}

// NewNotifyDispatchJob initialises the dispatch handler.
func NewNotifyDispatchJob(logger *slog.Logger, metrics *jobmetrics.Metrics, mailer Mailer, idem *shared.IdempotencyStore) *NotifyDispatchJob {
	return &NotifyDispatchJob{Logger: logger, Metrics: metrics, Mailer: mailer, Idempotency: idem}
}

// Handle executes a dispatch task.
func (j *NotifyDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notify dispatch: handler not configured")
	}
	var event notify.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(notify.TaskNotifyDispatch)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("event_id", event.ID.String()),
		slog.String("kind", string(event.Kind)),
		slog.String("entity", event.Entity),
		slog.Int64("entity_id", event.EntityID),
	)

	if j.Idempotency != nil {
		if err := j.Idempotency.CheckAndInsert(ctx, event.ID.String(), "notify"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("notification already dispatched")
				return nil
			}
			resultErr = err
			return resultErr
		}
	}

	subject := fmt.Sprintf("[manarah] %s #%d %s", event.Entity, event.EntityID, event.Kind)
	if j.Mailer == nil {
		logger.Info("notification dispatched", slog.String("message", event.Message))
		return nil
	}
	if err := j.Mailer.Send(ctx, subject, event.Message); err != nil {
		// Release the key so the retry is not swallowed as a duplicate.
		if j.Idempotency != nil {
			_ = j.Idempotency.Delete(ctx, event.ID.String())
		}
		resultErr = err
		logger.Error("notification dispatch failed", slog.Any("error", err))
		return resultErr
	}
	logger.Info("notification dispatched")
	return nil
}

func (j *NotifyDispatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
