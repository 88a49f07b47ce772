// Package reminders schedules and delivers appointment reminders. Rows
// arrive from scheduling events, wait until due, and a worker drains them
// in batches under FOR UPDATE SKIP LOCKED.
package reminders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	otelx "github.com/lfmoreira/agendo/libs/otel"
)

type Reminder struct {
	ID            int64
	AppointmentID string
	Channel       string
	Recipient     string
	RemindAt      time.Time
	TemplateData  map[string]any
	Traceparent   string
	Tracestate    string
	Attempts      int
	MaxAttempts   int
	NextRunAt     time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores a pending reminder. Conflicting rows on (appointment_id,
// channel, remind_at) are dropped, so redelivered request events are a
// no-op.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rem Reminder) error {
	payload, err := json.Marshal(rem.TemplateData)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO reminders
			(appointment_id, channel, recipient, remind_at, template_data, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $4, $6, $7)
		ON CONFLICT (appointment_id, channel, remind_at) DO NOTHING
	`, rem.AppointmentID, rem.Channel, rem.Recipient, rem.RemindAt, payload, traceparent, tracestate)
	return err
}

// CancelForAppointment drops pending reminders when the appointment leaves
// an active state.
func (r *Repository) CancelForAppointment(ctx context.Context, tx pgx.Tx, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled', updated_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Reminder, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id, channel, recipient, remind_at, template_data,
			traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM reminders
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Reminder
	for rows.Next() {
		var rem Reminder
		var raw []byte
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.Channel, &rem.Recipient, &rem.RemindAt, &raw,
			&rem.Traceparent, &rem.Tracestate, &rem.Attempts, &rem.MaxAttempts, &rem.NextRunAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rem.TemplateData); err != nil {
				return nil, err
			}
		} else {
			rem.TemplateData = map[string]any{}
		}
		due = append(due, rem)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

func (r *Repository) MarkSent(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'sent', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// MarkFailed bumps the attempt counter and reschedules, or parks the row as
// failed once attempts reach the cap.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}
