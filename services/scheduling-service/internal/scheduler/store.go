package scheduler

import (
	"context"
	"time"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
)

// Store is the persistence contract of the engine. Reads outside a
// transaction serve the listing and slot queries; every mutating operation
// runs inside InTx so that the conflict check, the appointment write, the
// counter mutation and the outbox insert commit or roll back as one unit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetService(ctx context.Context, id string) (model.Service, error)
	// ListActiveBetween returns active (scheduled/confirmed) appointments of
	// the professional intersecting the half-open window [from, to),
	// ascending by scheduled_at.
	ListActiveBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error)
	// ListClientAppointments returns the client's appointments ascending by
	// scheduled_at; a non-nil from drops everything scheduled before it.
	ListClientAppointments(ctx context.Context, clientID string, from *time.Time) ([]model.Appointment, error)
	// ListProfessionalAppointments returns the professional's appointments
	// ascending by scheduled_at, any status, bounded by the optional
	// [from, to) window.
	ListProfessionalAppointments(ctx context.Context, professionalID string, from, to *time.Time) ([]model.Appointment, error)
}

// Tx is the unit-of-work surface available inside InTx. Implementations
// must make LockProfessional block concurrent transactions on the same
// professional until commit, which serializes double-booking races.
type Tx interface {
	LockProfessional(ctx context.Context, id string) (model.ProfessionalProfile, error)
	GetProfessional(ctx context.Context, id string) (model.ProfessionalProfile, error)
	GetClient(ctx context.Context, id string) (model.ClientProfile, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListActiveBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error)

	InsertAppointment(ctx context.Context, appt *model.Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, appt model.Appointment) error
	UpdateClientCounters(ctx context.Context, client model.ClientProfile) error
	InsertFinancialRecord(ctx context.Context, appt model.Appointment, servicePrice string, commissionPercent float64) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}
