package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/slots"
)

const dateLayout = "2006-01-02"

// Scheduler is the slice of the engine the HTTP layer calls.
type Scheduler interface {
	CreateAppointment(ctx context.Context, p scheduler.CreateParams) (model.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID, reason string, cancelledByClient bool) (model.Appointment, error)
	ConfirmAppointment(ctx context.Context, appointmentID string) (model.Appointment, error)
	CompleteAppointment(ctx context.Context, appointmentID string) (model.Appointment, error)
	MarkNoShow(ctx context.Context, appointmentID string) (model.Appointment, error)
	GetAvailableSlots(ctx context.Context, professionalID string, day time.Time, serviceID string) ([]slots.Slot, error)
	SuggestAlternatives(ctx context.Context, professionalID string, preferredDate time.Time, serviceID string) ([]scheduler.DayAlternative, error)
	ListClientAppointments(ctx context.Context, clientID string, includePast bool) ([]model.Appointment, error)
	ListProfessionalAppointments(ctx context.Context, professionalID string, date *time.Time) ([]model.Appointment, error)
}

type SchedulingHandler struct {
	engine Scheduler
	logger *slog.Logger
}

func NewSchedulingHandler(engine Scheduler, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{engine: engine, logger: logger}
}

type createAppointmentRequest struct {
	ClientID       string `json:"client_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	ScheduledAt    string `json:"scheduled_at"`
	Notes          string `json:"notes"`
}

type appointmentResponse struct {
	AppointmentID      string `json:"appointment_id"`
	ClientID           string `json:"client_id"`
	ProfessionalID     string `json:"professional_id"`
	ServiceID          string `json:"service_id"`
	ScheduledAt        string `json:"scheduled_at"`
	EndAt              string `json:"end_at"`
	Status             string `json:"status"`
	Notes              string `json:"notes,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	ConfirmedAt        string `json:"confirmed_at,omitempty"`
	CancelledAt        string `json:"cancelled_at,omitempty"`
	CompletedAt        string `json:"completed_at,omitempty"`
}

func toAppointmentResponse(appt model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID:      appt.ID,
		ClientID:           appt.ClientID,
		ProfessionalID:     appt.ProfessionalID,
		ServiceID:          appt.ServiceID,
		ScheduledAt:        appt.ScheduledAt.UTC().Format(time.RFC3339),
		EndAt:              appt.EndAt.UTC().Format(time.RFC3339),
		Status:             string(appt.Status),
		Notes:              appt.Notes,
		CancellationReason: appt.CancellationReason,
	}
	if appt.ConfirmedAt != nil {
		resp.ConfirmedAt = appt.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	if appt.CompletedAt != nil {
		resp.CompletedAt = appt.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *SchedulingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ClientID == "" || req.ProfessionalID == "" || req.ServiceID == "" {
		http.Error(w, "client_id, professional_id and service_id required", http.StatusBadRequest)
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		http.Error(w, "invalid scheduled_at", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.CreateAppointment(r.Context(), scheduler.CreateParams{
		ClientID:       req.ClientID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		ScheduledAt:    scheduledAt,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

type cancelAppointmentRequest struct {
	AppointmentID     string `json:"appointment_id"`
	Reason            string `json:"reason"`
	CancelledByClient bool   `json:"cancelled_by_client"`
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.CancelAppointment(r.Context(), req.AppointmentID, strings.TrimSpace(req.Reason), req.CancelledByClient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *SchedulingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ConfirmAppointment)
}

func (h *SchedulingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.CompleteAppointment)
}

func (h *SchedulingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.MarkNoShow)
}

func (h *SchedulingHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := op(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *SchedulingHandler) ListClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}
	includePast := r.URL.Query().Get("include_past") == "true"

	appts, err := h.engine.ListClientAppointments(r.Context(), clientID, includePast)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentList(appts))
}

func (h *SchedulingHandler) ListProfessional(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
	if professionalID == "" {
		http.Error(w, "professional_id required", http.StatusBadRequest)
		return
	}

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &day
	}

	appts, err := h.engine.ListProfessionalAppointments(r.Context(), professionalID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentList(appts))
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsPeak    bool   `json:"is_peak"`
}

func slotItems(in []slots.Slot) []slotItem {
	out := make([]slotItem, 0, len(in))
	for _, s := range in {
		out = append(out, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			IsPeak:    s.IsPeak,
		})
	}
	return out
}

func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	professionalID, day, serviceID, ok := h.slotQuery(w, r)
	if !ok {
		return
	}

	free, err := h.engine.GetAvailableSlots(r.Context(), professionalID, day, serviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format(dateLayout),
		"slots": slotItems(free),
	})
}

type alternativeDay struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

func (h *SchedulingHandler) SuggestSlots(w http.ResponseWriter, r *http.Request) {
	professionalID, day, serviceID, ok := h.slotQuery(w, r)
	if !ok {
		return
	}

	alts, err := h.engine.SuggestAlternatives(r.Context(), professionalID, day, serviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	days := make([]alternativeDay, 0, len(alts))
	for _, alt := range alts {
		days = append(days, alternativeDay{
			Date:  alt.Date.Format(dateLayout),
			Slots: slotItems(alt.Slots),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alternatives": days})
}

func (h *SchedulingHandler) slotQuery(w http.ResponseWriter, r *http.Request) (professionalID string, day time.Time, serviceID string, ok bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", time.Time{}, "", false
	}

	q := r.URL.Query()
	professionalID = strings.TrimSpace(q.Get("professional_id"))
	serviceID = strings.TrimSpace(q.Get("service_id"))
	if professionalID == "" || serviceID == "" {
		http.Error(w, "professional_id and service_id required", http.StatusBadRequest)
		return "", time.Time{}, "", false
	}

	day, err := time.Parse(dateLayout, q.Get("date"))
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return "", time.Time{}, "", false
	}
	return professionalID, day, serviceID, true
}

func appointmentList(appts []model.Appointment) map[string]any {
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a))
	}
	return map[string]any{"appointments": items}
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, scheduler.ErrSlotUnavailable):
		http.Error(w, "time slot unavailable", http.StatusConflict)
	case errors.Is(err, scheduler.ErrPeakAccessDenied):
		http.Error(w, "peak hours are restricted for this client", http.StatusForbidden)
	case errors.Is(err, scheduler.ErrAlreadyCancelled):
		http.Error(w, "appointment already cancelled", http.StatusConflict)
	case errors.Is(err, scheduler.ErrInvalidTransition):
		http.Error(w, "appointment state does not allow this operation", http.StatusConflict)
	case errors.Is(err, scheduler.ErrStoreUnavailable):
		http.Error(w, "storage unavailable, retry later", http.StatusServiceUnavailable)
	default:
		h.logger.Error("scheduling request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
