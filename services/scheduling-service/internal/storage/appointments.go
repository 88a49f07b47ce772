package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
)

const appointmentColumns = `
	id, client_id, professional_id, service_id, scheduled_at, end_at, status,
	COALESCE(notes, ''), COALESCE(cancellation_reason, ''),
	confirmed_at, cancelled_at, completed_at, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.ProfessionalID,
		&appt.ServiceID,
		&appt.ScheduledAt,
		&appt.EndAt,
		&appt.Status,
		&appt.Notes,
		&appt.CancellationReason,
		&appt.ConfirmedAt,
		&appt.CancelledAt,
		&appt.CompletedAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func queryAppointments(ctx context.Context, q querier, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, classify(err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return appts, nil
}

func listActiveBetween(ctx context.Context, q querier, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	return queryAppointments(ctx, q, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND status IN ('scheduled', 'confirmed')
			AND scheduled_at < $3
			AND end_at > $2
		ORDER BY scheduled_at ASC
	`, professionalID, from, to)
}

func (s *Store) ListActiveBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	return listActiveBetween(ctx, s.pool, professionalID, from, to)
}

func (t *storeTx) ListActiveBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	return listActiveBetween(ctx, t.tx, professionalID, from, to)
}

func (s *Store) ListClientAppointments(ctx context.Context, clientID string, from *time.Time) ([]model.Appointment, error) {
	return queryAppointments(ctx, s.pool, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
			AND ($2::timestamptz IS NULL OR scheduled_at >= $2)
		ORDER BY scheduled_at ASC
	`, clientID, from)
}

func (s *Store) ListProfessionalAppointments(ctx context.Context, professionalID string, from, to *time.Time) ([]model.Appointment, error) {
	return queryAppointments(ctx, s.pool, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND ($2::timestamptz IS NULL OR scheduled_at >= $2)
			AND ($3::timestamptz IS NULL OR scheduled_at < $3)
		ORDER BY scheduled_at ASC
	`, professionalID, from, to)
}

func (t *storeTx) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, client_id, professional_id, service_id, scheduled_at, end_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, appt.ID, appt.ClientID, appt.ProfessionalID, appt.ServiceID,
		appt.ScheduledAt, appt.EndAt, appt.Status, appt.Notes).Scan(&appt.CreatedAt)
	return classify(err)
}

func (t *storeTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return appt, nil
}

func (t *storeTx) UpdateAppointment(ctx context.Context, appt model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			cancellation_reason = $3,
			confirmed_at = $4,
			cancelled_at = $5,
			completed_at = $6
		WHERE id = $1
	`, appt.ID, appt.Status, appt.CancellationReason,
		appt.ConfirmedAt, appt.CancelledAt, appt.CompletedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows)
	}
	return nil
}

func (t *storeTx) InsertFinancialRecord(ctx context.Context, appt model.Appointment, servicePrice string, commissionPercent float64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO financial_records
			(appointment_id, professional_id, service_price, professional_commission, business_revenue)
		VALUES (
			$1, $2, $3::numeric,
			round($3::numeric * $4::numeric / 100, 2),
			round($3::numeric * (100 - $4::numeric) / 100, 2)
		)
	`, appt.ID, appt.ProfessionalID, servicePrice, commissionPercent)
	return classify(err)
}
