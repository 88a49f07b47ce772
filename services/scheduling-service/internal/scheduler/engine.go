// Package scheduler implements the appointment scheduling engine: slot
// availability, booking-conflict enforcement, the appointment lifecycle and
// the client-reliability rules that gate peak-demand slots.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/reliability"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/slots"
)

// Config carries the business rules the engine enforces. The peak window
// (weekdays 18:00-20:00) is fixed in the slots package and intentionally
// not configurable here.
type Config struct {
	OpenMinute        int           // business open, minutes after midnight
	CloseMinute       int           // business close, exclusive boundary
	SlotStep          time.Duration // granularity of generated slots
	CancellationLimit time.Duration // client cancellations closer than this are late
	ReminderOffsets   []time.Duration
}

// Engine orchestrates slot generation, conflict detection and the
// reliability rules over a transactional store. All operations are
// synchronous; the engine performs no internal retries.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, cfg Config, logger *slog.Logger) *Engine {
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.CancellationLimit <= 0 {
		cfg.CancellationLimit = 4 * time.Hour
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type CreateParams struct {
	ClientID       string
	ProfessionalID string
	ServiceID      string
	ScheduledAt    time.Time
	Notes          string
}

// CreateAppointment books a slot. The professional row is locked for the
// duration of the transaction so two concurrent requests for the same
// professional cannot both pass the conflict check.
func (e *Engine) CreateAppointment(ctx context.Context, p CreateParams) (model.Appointment, error) {
	now := e.now()
	var created model.Appointment

	err := e.store.InTx(ctx, func(tx Tx) error {
		prof, err := tx.LockProfessional(ctx, p.ProfessionalID)
		if err != nil {
			return err
		}
		if !prof.IsAvailable {
			return ErrSlotUnavailable
		}
		svc, err := tx.GetService(ctx, p.ServiceID)
		if err != nil {
			return err
		}
		client, err := tx.GetClient(ctx, p.ClientID)
		if err != nil {
			return err
		}

		start := p.ScheduledAt
		end := start.Add(time.Duration(svc.DurationMins) * time.Minute)

		existing, err := tx.ListActiveBetween(ctx, p.ProfessionalID, start, end)
		if err != nil {
			return err
		}
		if slots.Overlaps(start, end, busyIntervals(existing)) {
			return ErrSlotUnavailable
		}

		if slots.IsPeak(start) && client.Reliability == model.ReliabilityLow {
			return ErrPeakAccessDenied
		}

		created = model.Appointment{
			ID:             uuid.NewString(),
			ClientID:       client.ID,
			ProfessionalID: p.ProfessionalID,
			ServiceID:      svc.ID,
			ScheduledAt:    start,
			EndAt:          end,
			Status:         model.StatusScheduled,
			Notes:          p.Notes,
			CreatedAt:      now,
		}
		if err := tx.InsertAppointment(ctx, &created); err != nil {
			return err
		}

		// total_appointments counts bookings made, not bookings kept; it
		// moves exactly once, here.
		client.TotalAppointments++
		if err := tx.UpdateClientCounters(ctx, client); err != nil {
			return err
		}

		if err := e.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentBooked, created, map[string]any{
			"is_peak": slots.IsPeak(start),
		}); err != nil {
			return err
		}
		return e.enqueueReminders(ctx, tx, created, client, svc, now)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return created, nil
}

// CancelAppointment cancels a booking. Client cancellations inside the
// notice window count as late and lower the client's reliability, even when
// the appointment is already in the past.
func (e *Engine) CancelAppointment(ctx context.Context, appointmentID, reason string, cancelledByClient bool) (model.Appointment, error) {
	now := e.now()
	var cancelled model.Appointment

	err := e.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == model.StatusCancelled {
			return ErrAlreadyCancelled
		}
		if appt.Status.Terminal() {
			return ErrInvalidTransition
		}

		late := cancelledByClient && appt.ScheduledAt.Sub(now) < e.cfg.CancellationLimit
		if late {
			client, err := tx.GetClient(ctx, appt.ClientID)
			if err != nil {
				return err
			}
			client.LateCancellationCount++
			client.Reliability = reliability.Classify(client.NoShowCount, client.LateCancellationCount)
			if err := tx.UpdateClientCounters(ctx, client); err != nil {
				return err
			}
		}

		appt.Status = model.StatusCancelled
		appt.CancellationReason = reason
		appt.CancelledAt = &now
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		cancelled = appt

		return e.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCancelled, appt, map[string]any{
			"reason":            reason,
			"late_cancellation": late,
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return cancelled, nil
}

// ConfirmAppointment moves a scheduled appointment to confirmed.
func (e *Engine) ConfirmAppointment(ctx context.Context, appointmentID string) (model.Appointment, error) {
	now := e.now()
	var confirmed model.Appointment

	err := e.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status != model.StatusScheduled {
			return ErrInvalidTransition
		}
		appt.Status = model.StatusConfirmed
		appt.ConfirmedAt = &now
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		confirmed = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return confirmed, nil
}

// CompleteAppointment finishes an active appointment and records the
// revenue split between the professional and the business.
func (e *Engine) CompleteAppointment(ctx context.Context, appointmentID string) (model.Appointment, error) {
	now := e.now()
	var completed model.Appointment

	err := e.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !appt.Status.Active() {
			return ErrInvalidTransition
		}

		appt.Status = model.StatusCompleted
		appt.CompletedAt = &now
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}

		svc, err := tx.GetService(ctx, appt.ServiceID)
		if err != nil {
			return err
		}
		prof, err := tx.GetProfessional(ctx, appt.ProfessionalID)
		if err != nil {
			return err
		}
		if err := tx.InsertFinancialRecord(ctx, appt, svc.Price, prof.CommissionPercent); err != nil {
			return err
		}
		completed = appt

		return e.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentCompleted, appt, nil)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return completed, nil
}

// MarkNoShow flags a client absence and downgrades their reliability.
func (e *Engine) MarkNoShow(ctx context.Context, appointmentID string) (model.Appointment, error) {
	var marked model.Appointment

	err := e.store.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !appt.Status.Active() {
			return ErrInvalidTransition
		}

		appt.Status = model.StatusNoShow
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}

		client, err := tx.GetClient(ctx, appt.ClientID)
		if err != nil {
			return err
		}
		client.NoShowCount++
		client.Reliability = reliability.Classify(client.NoShowCount, client.LateCancellationCount)
		if err := tx.UpdateClientCounters(ctx, client); err != nil {
			return err
		}
		marked = appt

		return e.emitAppointmentEvent(ctx, tx, outbox.EventAppointmentNoShow, appt, nil)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return marked, nil
}

// GetAvailableSlots returns the free slots of a professional's calendar day
// for the given service, peak slots flagged.
func (e *Engine) GetAvailableSlots(ctx context.Context, professionalID string, day time.Time, serviceID string) ([]slots.Slot, error) {
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	existing, err := e.store.ListActiveBetween(ctx, professionalID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return slots.Generate(
		dayStart,
		e.cfg.OpenMinute,
		e.cfg.CloseMinute,
		time.Duration(svc.DurationMins)*time.Minute,
		e.cfg.SlotStep,
		busyIntervals(existing),
		e.now(),
	), nil
}

// DayAlternative is one suggested day with up to five free slots.
type DayAlternative struct {
	Date  time.Time
	Slots []slots.Slot
}

const (
	suggestScanDays    = 7
	suggestMaxDays     = 3
	suggestSlotsPerDay = 5
)

// SuggestAlternatives scans forward from preferredDate (inclusive) and
// collects free slots, stopping after three days with availability or seven
// scanned days, whichever comes first.
func (e *Engine) SuggestAlternatives(ctx context.Context, professionalID string, preferredDate time.Time, serviceID string) ([]DayAlternative, error) {
	var alternatives []DayAlternative
	for offset := 0; offset < suggestScanDays; offset++ {
		day := preferredDate.AddDate(0, 0, offset)
		free, err := e.GetAvailableSlots(ctx, professionalID, day, serviceID)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			continue
		}
		if len(free) > suggestSlotsPerDay {
			free = free[:suggestSlotsPerDay]
		}
		alternatives = append(alternatives, DayAlternative{Date: day, Slots: free})
		if len(alternatives) >= suggestMaxDays {
			break
		}
	}
	return alternatives, nil
}

// ListClientAppointments lists a client's appointments ascending by time.
// Past appointments are excluded unless includePast is set.
func (e *Engine) ListClientAppointments(ctx context.Context, clientID string, includePast bool) ([]model.Appointment, error) {
	var from *time.Time
	if !includePast {
		now := e.now()
		from = &now
	}
	return e.store.ListClientAppointments(ctx, clientID, from)
}

// ListProfessionalAppointments lists a professional's appointments
// ascending by time. With no date only future appointments are returned;
// with a date, that whole calendar day regardless of past or future.
func (e *Engine) ListProfessionalAppointments(ctx context.Context, professionalID string, date *time.Time) ([]model.Appointment, error) {
	if date == nil {
		now := e.now()
		return e.store.ListProfessionalAppointments(ctx, professionalID, &now, nil)
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return e.store.ListProfessionalAppointments(ctx, professionalID, &dayStart, &dayEnd)
}

func busyIntervals(appts []model.Appointment) []slots.Interval {
	out := make([]slots.Interval, 0, len(appts))
	for _, a := range appts {
		out = append(out, slots.Interval{Start: a.ScheduledAt, End: a.EndAt})
	}
	return out
}

func (e *Engine) emitAppointmentEvent(ctx context.Context, tx Tx, eventType string, appt model.Appointment, extra map[string]any) error {
	payload := map[string]any{
		"appointment_id":  appt.ID,
		"client_id":       appt.ClientID,
		"professional_id": appt.ProfessionalID,
		"service_id":      appt.ServiceID,
		"scheduled_at":    appt.ScheduledAt.UTC().Format(time.RFC3339),
		"end_at":          appt.EndAt.UTC().Format(time.RFC3339),
		"status":          string(appt.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       raw,
	})
}

// enqueueReminders writes one reminder-request event per configured offset
// and channel. Offsets already in the past at booking time are skipped.
func (e *Engine) enqueueReminders(ctx context.Context, tx Tx, appt model.Appointment, client model.ClientProfile, svc model.Service, now time.Time) error {
	channels := []struct {
		name      string
		recipient string
	}{
		{"email", client.Email},
		{"sms", client.Phone},
	}

	for _, offset := range e.cfg.ReminderOffsets {
		remindAt := appt.ScheduledAt.Add(-offset)
		if !remindAt.After(now) {
			continue
		}
		for _, ch := range channels {
			if ch.recipient == "" {
				continue
			}
			raw, err := json.Marshal(map[string]any{
				"appointment_id": appt.ID,
				"channel":        ch.name,
				"recipient":      ch.recipient,
				"remind_at":      remindAt.UTC().Format(time.RFC3339),
				"template_data": map[string]any{
					"client_name":  client.Name,
					"service_name": svc.Name,
					"scheduled_at": appt.ScheduledAt.UTC().Format(time.RFC3339),
				},
			})
			if err != nil {
				return fmt.Errorf("marshal reminder payload: %w", err)
			}
			if err := tx.InsertEvent(ctx, outbox.Event{
				AggregateType: "appointment",
				AggregateID:   appt.ID,
				EventType:     outbox.EventReminderRequested,
				Payload:       raw,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
