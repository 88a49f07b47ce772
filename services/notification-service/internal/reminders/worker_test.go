package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/lfmoreira/agendo/libs/runtime"
	"github.com/lfmoreira/agendo/services/notification-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/notification-service/internal/storage"
)

type fakeEmailSender struct {
	to      string
	subject string
	body    string
	err     error
}

func (f *fakeEmailSender) Send(to, subject, body string) error {
	f.to = to
	f.subject = subject
	f.body = body
	return f.err
}

type fakeSMSSender struct {
	to   string
	body string
	err  error
}

func (f *fakeSMSSender) Send(_ context.Context, to, body string) error {
	f.to = to
	f.body = body
	return f.err
}

func (f *fakeSMSSender) ProviderID() string { return "sms-fake" }

var reminderColumns = []string{
	"id", "appointment_id", "channel", "recipient", "remind_at", "template_data",
	"traceparent", "tracestate", "attempts", "max_attempts", "next_run_at",
}

func newTestWorker(t *testing.T, emailSender *fakeEmailSender, smsSender *fakeSMSSender) (*Worker, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	w := NewWorker(mock, NewRepository(), storage.NewRepository(), outbox.NewRepository(),
		emailSender, smsSender, runtime.NewLogger("reminders-test"), WorkerConfig{})
	return w, mock
}

func TestProcessBatchSendsDueEmailReminder(t *testing.T) {
	emailSender := &fakeEmailSender{}
	w, mock := newTestWorker(t, emailSender, &fakeSMSSender{})
	remindAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(reminderColumns).AddRow(
			int64(1), "appt-1", "email", "ana@example.com", remindAt,
			[]byte(`{"client_name":"Ana","service_name":"Haircut","scheduled_at":"2026-09-01T10:00:00Z"}`),
			"", "", 0, 3, remindAt,
		))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("appt-1", "email", "ana@example.com", pgxmock.AnyArg(), "sent", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("notification", "appt-1", outbox.EventNotificationSent,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE reminders").
		WithArgs([]int64{1}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if emailSender.to != "ana@example.com" {
		t.Fatalf("email went to %q", emailSender.to)
	}
	if emailSender.subject != "Reminder: Haircut on Tue, 01 Sep 2026 at 10:00" {
		t.Fatalf("subject = %q", emailSender.subject)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessBatchRetriesFailedDelivery(t *testing.T) {
	smsSender := &fakeSMSSender{err: errors.New("provider down")}
	w, mock := newTestWorker(t, &fakeEmailSender{}, smsSender)
	remindAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(reminderColumns).AddRow(
			int64(7), "appt-2", "sms", "+5511999990001", remindAt,
			[]byte(`{"service_name":"Coloring"}`),
			"", "", 0, 3, remindAt,
		))
	// Attempt 1 of 3: reschedule only, no terminal failure record.
	mock.ExpectExec("UPDATE reminders").
		WithArgs(int64(7), 1, "pending", pgxmock.AnyArg(), "provider down").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessBatchRecordsTerminalFailure(t *testing.T) {
	smsSender := &fakeSMSSender{err: errors.New("provider down")}
	w, mock := newTestWorker(t, &fakeEmailSender{}, smsSender)
	remindAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(reminderColumns).AddRow(
			int64(8), "appt-3", "sms", "+5511999990001", remindAt,
			[]byte(`{}`),
			"", "", 2, 3, remindAt,
		))
	mock.ExpectExec("UPDATE reminders").
		WithArgs(int64(8), 3, "failed", pgxmock.AnyArg(), "provider down").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("appt-3", "sms", "+5511999990001", pgxmock.AnyArg(), "failed", "provider down").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("notification", "appt-3", outbox.EventNotificationFailed,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	w, mock := newTestWorker(t, &fakeEmailSender{}, &fakeSMSSender{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(reminderColumns))
	mock.ExpectCommit()

	if err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
