package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Active reports whether the status blocks the professional's calendar.
// Cancelled, completed and no-show appointments never block a slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal reports whether no further lifecycle transition is permitted.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type ReliabilityLevel string

const (
	ReliabilityExcellent ReliabilityLevel = "excellent"
	ReliabilityGood      ReliabilityLevel = "good"
	ReliabilityModerate  ReliabilityLevel = "moderate"
	ReliabilityLow       ReliabilityLevel = "low"
)

type Service struct {
	ID           string
	Name         string
	Description  string
	Price        string // numeric, carried as text to avoid float drift
	DurationMins int
	IsActive     bool
	CreatedAt    time.Time
}

type ClientProfile struct {
	ID                    string
	Name                  string
	Phone                 string
	Email                 string
	NoShowCount           int
	LateCancellationCount int
	TotalAppointments     int
	Reliability           ReliabilityLevel
	CreatedAt             time.Time
}

type ProfessionalProfile struct {
	ID                string
	Name              string
	Specialty         string
	CommissionPercent float64
	IsAvailable       bool
	CreatedAt         time.Time
}

// ScheduleEntry is one weekday row of a professional's weekly schedule.
// Minutes are measured from local midnight.
type ScheduleEntry struct {
	ProfessionalID string
	Weekday        int // 0=Sunday .. 6=Saturday, time.Weekday numbering
	IsWorking      bool
	StartMinute    int
	EndMinute      int
}

type Appointment struct {
	ID                 string
	ClientID           string
	ProfessionalID     string
	ServiceID          string
	ScheduledAt        time.Time
	EndAt              time.Time // ScheduledAt + service duration, fixed at creation
	Status             AppointmentStatus
	Notes              string
	CancellationReason string
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
}

// FinancialRecord captures the revenue split written when an appointment
// completes.
type FinancialRecord struct {
	ID                     string
	AppointmentID          string
	ProfessionalID         string
	ServicePrice           string
	ProfessionalCommission string
	BusinessRevenue        string
	RecordedAt             time.Time
}
