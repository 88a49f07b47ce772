package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
)

// Registry reads and writes below serve both the engine transaction surface
// and the admin registry handlers.

const serviceColumns = `id, name, COALESCE(description, ''), price::text, duration_mins, is_active, created_at`

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.DurationMins, &svc.IsActive, &svc.CreatedAt)
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func getService(ctx context.Context, q querier, id string) (model.Service, error) {
	svc, err := scanService(q.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1 AND is_active
	`, id))
	if err != nil {
		return model.Service{}, classify(err)
	}
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	return getService(ctx, s.pool, id)
}

func (t *storeTx) GetService(ctx context.Context, id string) (model.Service, error) {
	return getService(ctx, t.tx, id)
}

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO services (name, description, price, duration_mins, is_active)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING id, created_at
	`, svc.Name, svc.Description, svc.Price, svc.DurationMins, svc.IsActive).Scan(&svc.ID, &svc.CreatedAt)
	return classify(err)
}

func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE is_active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, classify(err)
		}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return services, nil
}

const clientColumns = `
	id, name, COALESCE(phone, ''), COALESCE(email, ''),
	no_show_count, late_cancellation_count, total_appointments, reliability, created_at`

func scanClient(row pgx.Row) (model.ClientProfile, error) {
	var c model.ClientProfile
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email,
		&c.NoShowCount, &c.LateCancellationCount, &c.TotalAppointments, &c.Reliability, &c.CreatedAt)
	if err != nil {
		return model.ClientProfile{}, err
	}
	return c, nil
}

func getClient(ctx context.Context, q querier, id string) (model.ClientProfile, error) {
	c, err := scanClient(q.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM client_profiles
		WHERE id = $1
	`, id))
	if err != nil {
		return model.ClientProfile{}, classify(err)
	}
	return c, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (model.ClientProfile, error) {
	return getClient(ctx, s.pool, id)
}

func (t *storeTx) GetClient(ctx context.Context, id string) (model.ClientProfile, error) {
	return getClient(ctx, t.tx, id)
}

func (s *Store) CreateClient(ctx context.Context, c *model.ClientProfile) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO client_profiles (name, phone, email, reliability)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Name, c.Phone, c.Email, model.ReliabilityExcellent).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return classify(err)
	}
	c.Reliability = model.ReliabilityExcellent
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]model.ClientProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM client_profiles
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var clients []model.ClientProfile
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, classify(err)
		}
		clients = append(clients, c)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return clients, nil
}

func (t *storeTx) UpdateClientCounters(ctx context.Context, client model.ClientProfile) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE client_profiles
		SET no_show_count = $2,
			late_cancellation_count = $3,
			total_appointments = $4,
			reliability = $5
		WHERE id = $1
	`, client.ID, client.NoShowCount, client.LateCancellationCount,
		client.TotalAppointments, client.Reliability)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows)
	}
	return nil
}

const professionalColumns = `id, name, COALESCE(specialty, ''), commission_percent, is_available, created_at`

func scanProfessional(row pgx.Row) (model.ProfessionalProfile, error) {
	var p model.ProfessionalProfile
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CommissionPercent, &p.IsAvailable, &p.CreatedAt)
	if err != nil {
		return model.ProfessionalProfile{}, err
	}
	return p, nil
}

func (s *Store) GetProfessional(ctx context.Context, id string) (model.ProfessionalProfile, error) {
	p, err := scanProfessional(s.pool.QueryRow(ctx, `
		SELECT `+professionalColumns+`
		FROM professional_profiles
		WHERE id = $1
	`, id))
	if err != nil {
		return model.ProfessionalProfile{}, classify(err)
	}
	return p, nil
}

func (t *storeTx) GetProfessional(ctx context.Context, id string) (model.ProfessionalProfile, error) {
	p, err := scanProfessional(t.tx.QueryRow(ctx, `
		SELECT `+professionalColumns+`
		FROM professional_profiles
		WHERE id = $1
	`, id))
	if err != nil {
		return model.ProfessionalProfile{}, classify(err)
	}
	return p, nil
}

// LockProfessional takes a row lock held until commit. Every booking for a
// professional passes through here, which serializes the conflict check.
func (t *storeTx) LockProfessional(ctx context.Context, id string) (model.ProfessionalProfile, error) {
	p, err := scanProfessional(t.tx.QueryRow(ctx, `
		SELECT `+professionalColumns+`
		FROM professional_profiles
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return model.ProfessionalProfile{}, classify(err)
	}
	return p, nil
}

func (s *Store) CreateProfessional(ctx context.Context, p *model.ProfessionalProfile) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO professional_profiles (name, specialty, commission_percent, is_available)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.Name, p.Specialty, p.CommissionPercent, p.IsAvailable).Scan(&p.ID, &p.CreatedAt)
	return classify(err)
}

func (s *Store) ListProfessionals(ctx context.Context) ([]model.ProfessionalProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+professionalColumns+`
		FROM professional_profiles
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var pros []model.ProfessionalProfile
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, classify(err)
		}
		pros = append(pros, p)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return pros, nil
}

// UpsertSchedule replaces the professional's weekly schedule in one
// transaction.
func (s *Store) UpsertSchedule(ctx context.Context, professionalID string, entries []model.ScheduleEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM professional_schedules
		WHERE professional_id = $1
	`, professionalID); err != nil {
		return classify(err)
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO professional_schedules
				(professional_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, professionalID, e.Weekday, e.IsWorking, e.StartMinute, e.EndMinute); err != nil {
			return classify(err)
		}
	}
	return classify(tx.Commit(ctx))
}

func (s *Store) ListSchedule(ctx context.Context, professionalID string) ([]model.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT professional_id, weekday, is_working, start_minute, end_minute
		FROM professional_schedules
		WHERE professional_id = $1
		ORDER BY weekday ASC
	`, professionalID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var entries []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.ProfessionalID, &e.Weekday, &e.IsWorking, &e.StartMinute, &e.EndMinute); err != nil {
			return nil, classify(err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return entries, nil
}
