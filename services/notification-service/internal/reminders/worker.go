package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	otelx "github.com/lfmoreira/agendo/libs/otel"
	"github.com/lfmoreira/agendo/services/notification-service/internal/email"
	"github.com/lfmoreira/agendo/services/notification-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/notification-service/internal/sms"
	"github.com/lfmoreira/agendo/services/notification-service/internal/storage"
)

// Beginner is the transaction entry point the worker needs; *db.Pool in
// production, pgxmock in tests.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Worker drains due reminders and delivers them over the configured
// channels. Delivery outcome, the audit row and the outcome event commit
// in one transaction per batch.
type Worker struct {
	pool      Beginner
	repo      *Repository
	notifRepo *storage.Repository
	outbox    *outbox.Repository
	email     email.Sender
	sms       sms.Sender
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool Beginner, repo *Repository, notifRepo *storage.Repository, outboxRepo *outbox.Repository,
	emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		notifRepo: notifRepo,
		outbox:    outboxRepo,
		email:     emailSender,
		sms:       smsSender,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) ProcessBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var sent []int64
	for _, rem := range due {
		remCtx := otelx.ContextWithTraceContext(ctx, rem.Traceparent, rem.Tracestate)

		providerID, sendErr := w.deliver(remCtx, rem)
		if sendErr != nil {
			w.logger.Error("reminder delivery failed",
				"appointment_id", rem.AppointmentID, "channel", rem.Channel, "err", sendErr)
			attempts := rem.Attempts + 1
			nextRunAt := time.Now().UTC().Add(w.backoff)
			if err := w.repo.MarkFailed(ctx, tx, rem.ID, attempts, rem.MaxAttempts, nextRunAt, sendErr.Error()); err != nil {
				return err
			}
			if attempts >= rem.MaxAttempts {
				if err := w.recordOutcome(remCtx, tx, rem, "failed", "", sendErr.Error()); err != nil {
					return err
				}
			}
			continue
		}

		sent = append(sent, rem.ID)
		if err := w.recordOutcome(remCtx, tx, rem, "sent", providerID, ""); err != nil {
			return err
		}
	}

	if err := w.repo.MarkSent(ctx, tx, sent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) deliver(ctx context.Context, rem Reminder) (string, error) {
	scheduledAt, _ := rem.TemplateData["scheduled_at"].(string)
	serviceName, _ := rem.TemplateData["service_name"].(string)
	clientName, _ := rem.TemplateData["client_name"].(string)

	when := scheduledAt
	if t, err := time.Parse(time.RFC3339, scheduledAt); err == nil {
		when = t.Format("Mon, 02 Jan 2006 at 15:04")
	}

	switch strings.ToLower(rem.Channel) {
	case "email":
		subject, body := email.ReminderMessage(clientName, serviceName, when)
		if err := w.email.Send(rem.Recipient, subject, body); err != nil {
			return "", err
		}
		return "smtp", nil
	case "sms":
		if err := w.sms.Send(ctx, rem.Recipient, sms.ReminderBody(serviceName, when)); err != nil {
			return "", err
		}
		return w.sms.ProviderID(), nil
	default:
		return "", fmt.Errorf("unsupported channel: %s", rem.Channel)
	}
}

func (w *Worker) recordOutcome(ctx context.Context, tx pgx.Tx, rem Reminder, status, providerID, reason string) error {
	if err := w.notifRepo.Insert(ctx, tx, storage.Notification{
		AppointmentID: rem.AppointmentID,
		Channel:       rem.Channel,
		Recipient:     rem.Recipient,
		Payload:       rem.TemplateData,
		Status:        status,
		ErrorReason:   reason,
	}); err != nil {
		return err
	}

	body := map[string]any{
		"appointment_id": rem.AppointmentID,
		"channel":        rem.Channel,
		"remind_at":      rem.RemindAt.UTC().Format(time.RFC3339),
	}
	eventType := outbox.EventNotificationSent
	if status == "failed" {
		eventType = outbox.EventNotificationFailed
		body["error_reason"] = reason
		body["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		body["provider_id"] = providerID
		body["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   rem.AppointmentID,
		EventType:     eventType,
		Payload:       payload,
	})
}
