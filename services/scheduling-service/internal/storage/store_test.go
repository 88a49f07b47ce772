package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewStore(mock, outbox.NewRepository()), mock
}

func TestGetService(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM services").
		WithArgs("svc-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "price", "duration_mins", "is_active", "created_at",
		}).AddRow("svc-1", "Haircut", "", "80.00", 30, true, created))

	svc, err := store.GetService(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if svc.Name != "Haircut" || svc.DurationMins != 30 || svc.Price != "80.00" {
		t.Fatalf("service = %+v", svc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetServiceNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM services").
		WithArgs("svc-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetService(context.Background(), "svc-missing")
	if !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx scheduler.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the fn error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertAppointmentExclusionViolation(t *testing.T) {
	store, mock := newMockStore(t)
	appt := model.Appointment{
		ID:             "appt-1",
		ClientID:       "cli-1",
		ProfessionalID: "pro-1",
		ServiceID:      "svc-1",
		ScheduledAt:    time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndAt:          time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
		Status:         model.StatusScheduled,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.ID, appt.ClientID, appt.ProfessionalID, appt.ServiceID,
			appt.ScheduledAt, appt.EndAt, appt.Status, appt.Notes).
		WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx scheduler.Tx) error {
		return tx.InsertAppointment(context.Background(), &appt)
	})
	if !errors.Is(err, scheduler.ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateAppointmentMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs("gone", model.StatusCancelled, "client request",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx scheduler.Tx) error {
		return tx.UpdateAppointment(context.Background(), model.Appointment{
			ID:                 "gone",
			Status:             model.StatusCancelled,
			CancellationReason: "client request",
		})
	})
	if !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLockProfessionalInsideTx(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM professional_profiles (.+) FOR UPDATE").
		WithArgs("pro-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "specialty", "commission_percent", "is_available", "created_at",
		}).AddRow("pro-1", "Bia", "color", 40.0, true, created))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx scheduler.Tx) error {
		p, err := tx.LockProfessional(context.Background(), "pro-1")
		if err != nil {
			return err
		}
		if p.CommissionPercent != 40 || !p.IsAvailable {
			t.Fatalf("professional = %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListActiveBetween(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	start := from.Add(10 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("pro-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "client_id", "professional_id", "service_id", "scheduled_at", "end_at", "status",
			"notes", "cancellation_reason", "confirmed_at", "cancelled_at", "completed_at", "created_at",
		}).AddRow("appt-1", "cli-1", "pro-1", "svc-1", start, start.Add(30*time.Minute),
			model.StatusScheduled, "", "", nil, nil, nil, from))

	appts, err := store.ListActiveBetween(context.Background(), "pro-1", from, to)
	if err != nil {
		t.Fatalf("ListActiveBetween: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "appt-1" || !appts[0].Status.Active() {
		t.Fatalf("appointments = %+v", appts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertFinancialRecordComputesSplitInSQL(t *testing.T) {
	store, mock := newMockStore(t)
	appt := model.Appointment{ID: "appt-1", ProfessionalID: "pro-1"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO financial_records").
		WithArgs(appt.ID, appt.ProfessionalID, "240.00", 40.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx scheduler.Tx) error {
		return tx.InsertFinancialRecord(context.Background(), appt, "240.00", 40.0)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
