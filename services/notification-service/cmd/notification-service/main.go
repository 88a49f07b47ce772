package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lfmoreira/agendo/libs/config"
	"github.com/lfmoreira/agendo/libs/db"
	"github.com/lfmoreira/agendo/libs/httpx"
	"github.com/lfmoreira/agendo/libs/kafkax"
	otelx "github.com/lfmoreira/agendo/libs/otel"
	"github.com/lfmoreira/agendo/libs/runtime"
	"github.com/lfmoreira/agendo/services/notification-service/internal/consumer"
	"github.com/lfmoreira/agendo/services/notification-service/internal/email"
	"github.com/lfmoreira/agendo/services/notification-service/internal/inbox"
	"github.com/lfmoreira/agendo/services/notification-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/notification-service/internal/reminders"
	"github.com/lfmoreira/agendo/services/notification-service/internal/sms"
	"github.com/lfmoreira/agendo/services/notification-service/internal/storage"
)

type reminderRequestPayload struct {
	AppointmentID string         `json:"appointment_id"`
	Channel       string         `json:"channel"`
	Recipient     string         `json:"recipient"`
	RemindAt      string         `json:"remind_at"`
	TemplateData  map[string]any `json:"template_data"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	remindersRepo := reminders.NewRepository()
	notificationsRepo := storage.NewRepository()
	outboxRepo := outbox.NewRepository()

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@agendo.local"),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sms.NewNoopSender()
	}

	worker := reminders.NewWorker(pool, remindersRepo, notificationsRepo, outboxRepo,
		emailSender, smsSender, logger, reminders.WorkerConfig{
			Interval:  time.Duration(config.Int("REMINDER_POLL_SECONDS", 2)) * time.Second,
			BatchSize: config.Int("REMINDER_BATCH_SIZE", 50),
			Backoff:   time.Duration(config.Int("REMINDER_BACKOFF_SECONDS", 60)) * time.Second,
		})
	go worker.Run(ctx)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	startConsumer(config.String("KAFKA_REMINDER_TOPIC", "scheduling.reminder.requested.v1"),
		func(ctx context.Context, msg kafka.Message) error {
			var payload reminderRequestPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid reminder request payload", "err", err)
				return nil
			}
			if payload.AppointmentID == "" || payload.Channel == "" || payload.Recipient == "" {
				logger.Error("missing reminder request fields")
				return nil
			}
			remindAt, err := time.Parse(time.RFC3339, payload.RemindAt)
			if err != nil {
				logger.Error("invalid remind_at", "err", err)
				return nil
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			if err := remindersRepo.Insert(ctx, tx, reminders.Reminder{
				AppointmentID: payload.AppointmentID,
				Channel:       payload.Channel,
				Recipient:     payload.Recipient,
				RemindAt:      remindAt,
				TemplateData:  payload.TemplateData,
			}); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})

	cancelHandler := func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			AppointmentID string `json:"appointment_id"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid appointment event payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" {
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := remindersRepo.CancelForAppointment(ctx, tx, payload.AppointmentID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "scheduling.appointment.cancelled.v1"), cancelHandler)
	startConsumer(config.String("KAFKA_NOSHOW_TOPIC", "scheduling.appointment.no_show.v1"), cancelHandler)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
