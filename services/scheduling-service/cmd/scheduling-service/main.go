package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lfmoreira/agendo/libs/config"
	"github.com/lfmoreira/agendo/libs/db"
	"github.com/lfmoreira/agendo/libs/httpx"
	"github.com/lfmoreira/agendo/libs/kafkax"
	otelx "github.com/lfmoreira/agendo/libs/otel"
	"github.com/lfmoreira/agendo/libs/runtime"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/handlers"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/storage"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8081")
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

	openMinute, err := config.ClockMinute("BUSINESS_OPEN", "08:00")
	if err != nil {
		panic(err)
	}
	closeMinute, err := config.ClockMinute("BUSINESS_CLOSE", "20:00")
	if err != nil {
		panic(err)
	}

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	engine := scheduler.NewEngine(store, scheduler.Config{
		OpenMinute:        openMinute,
		CloseMinute:       closeMinute,
		SlotStep:          time.Duration(config.Int("SLOT_STEP_MINUTES", 30)) * time.Minute,
		CancellationLimit: time.Duration(config.Int("CANCELLATION_LIMIT_HOURS", 4)) * time.Hour,
		ReminderOffsets:   parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger),
	}, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	schedulingHandler := handlers.NewSchedulingHandler(engine, logger)
	registryHandler := handlers.NewRegistryHandler(store, logger, openMinute, closeMinute)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/appointments", schedulingHandler.Create)
	mux.HandleFunc("/api/v1/appointments/cancel", schedulingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/confirm", schedulingHandler.Confirm)
	mux.HandleFunc("/api/v1/appointments/complete", schedulingHandler.Complete)
	mux.HandleFunc("/api/v1/appointments/no-show", schedulingHandler.NoShow)
	mux.HandleFunc("/api/v1/appointments/client", schedulingHandler.ListClient)
	mux.HandleFunc("/api/v1/appointments/professional", schedulingHandler.ListProfessional)
	mux.HandleFunc("/api/v1/public/slots", schedulingHandler.Slots)
	mux.HandleFunc("/api/v1/public/slots/suggest", schedulingHandler.SuggestSlots)
	mux.HandleFunc("/api/v1/services", registryHandler.Services)
	mux.HandleFunc("/api/v1/professionals", registryHandler.Professionals)
	mux.HandleFunc("/api/v1/professionals/schedule", registryHandler.Schedule)
	mux.HandleFunc("/api/v1/clients", registryHandler.Clients)
	mux.HandleFunc("/api/v1/clients/", registryHandler.ClientByID)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
