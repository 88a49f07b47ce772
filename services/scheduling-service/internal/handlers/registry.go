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
)

// Registry is the catalog surface backing the admin endpoints: services,
// professionals, clients and weekly schedules.
type Registry interface {
	CreateService(ctx context.Context, svc *model.Service) error
	ListServices(ctx context.Context) ([]model.Service, error)
	CreateClient(ctx context.Context, c *model.ClientProfile) error
	ListClients(ctx context.Context) ([]model.ClientProfile, error)
	GetClient(ctx context.Context, id string) (model.ClientProfile, error)
	CreateProfessional(ctx context.Context, p *model.ProfessionalProfile) error
	ListProfessionals(ctx context.Context) ([]model.ProfessionalProfile, error)
	UpsertSchedule(ctx context.Context, professionalID string, entries []model.ScheduleEntry) error
	ListSchedule(ctx context.Context, professionalID string) ([]model.ScheduleEntry, error)
}

type RegistryHandler struct {
	registry    Registry
	logger      *slog.Logger
	openMinute  int
	closeMinute int
}

func NewRegistryHandler(registry Registry, logger *slog.Logger, openMinute, closeMinute int) *RegistryHandler {
	return &RegistryHandler{
		registry:    registry,
		logger:      logger,
		openMinute:  openMinute,
		closeMinute: closeMinute,
	}
}

// defaultWeeklySchedule is Monday through Friday over the business window.
// New professionals start from this and adjust through the schedule endpoint.
func (h *RegistryHandler) defaultWeeklySchedule(professionalID string) []model.ScheduleEntry {
	entries := make([]model.ScheduleEntry, 0, 5)
	for wd := int(time.Monday); wd <= int(time.Friday); wd++ {
		entries = append(entries, model.ScheduleEntry{
			ProfessionalID: professionalID,
			Weekday:        wd,
			IsWorking:      true,
			StartMinute:    h.openMinute,
			EndMinute:      h.closeMinute,
		})
	}
	return entries
}

type serviceRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	DurationMins int    `json:"duration_mins"`
}

type serviceResponse struct {
	ServiceID    string `json:"service_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	DurationMins int    `json:"duration_mins"`
}

func (h *RegistryHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.Price == "" || req.DurationMins <= 0 {
			http.Error(w, "name, price and positive duration_mins required", http.StatusBadRequest)
			return
		}
		svc := model.Service{
			Name:         req.Name,
			Description:  strings.TrimSpace(req.Description),
			Price:        req.Price,
			DurationMins: req.DurationMins,
			IsActive:     true,
		}
		if err := h.registry.CreateService(r.Context(), &svc); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(svc))

	case http.MethodGet:
		services, err := h.registry.ListServices(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]serviceResponse, 0, len(services))
		for _, svc := range services {
			items = append(items, toServiceResponse(svc))
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": items})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func toServiceResponse(svc model.Service) serviceResponse {
	return serviceResponse{
		ServiceID:    svc.ID,
		Name:         svc.Name,
		Description:  svc.Description,
		Price:        svc.Price,
		DurationMins: svc.DurationMins,
	}
}

type clientResponse struct {
	ClientID              string `json:"client_id"`
	Name                  string `json:"name"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	NoShowCount           int    `json:"no_show_count"`
	LateCancellationCount int    `json:"late_cancellation_count"`
	TotalAppointments     int    `json:"total_appointments"`
	Reliability           string `json:"reliability"`
}

func toClientResponse(c model.ClientProfile) clientResponse {
	return clientResponse{
		ClientID:              c.ID,
		Name:                  c.Name,
		Phone:                 c.Phone,
		Email:                 c.Email,
		NoShowCount:           c.NoShowCount,
		LateCancellationCount: c.LateCancellationCount,
		TotalAppointments:     c.TotalAppointments,
		Reliability:           string(c.Reliability),
	}
}

func (h *RegistryHandler) Clients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		c := model.ClientProfile{
			Name:  req.Name,
			Phone: strings.TrimSpace(req.Phone),
			Email: strings.TrimSpace(req.Email),
		}
		if err := h.registry.CreateClient(r.Context(), &c); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toClientResponse(c))

	case http.MethodGet:
		clients, err := h.registry.ListClients(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]clientResponse, 0, len(clients))
		for _, c := range clients {
			items = append(items, toClientResponse(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": items})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ClientByID serves GET /api/v1/clients/{id} with the reliability counters.
func (h *RegistryHandler) ClientByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/clients/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}

	c, err := h.registry.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

type professionalResponse struct {
	ProfessionalID    string  `json:"professional_id"`
	Name              string  `json:"name"`
	Specialty         string  `json:"specialty,omitempty"`
	CommissionPercent float64 `json:"commission_percent"`
	IsAvailable       bool    `json:"is_available"`
}

func (h *RegistryHandler) Professionals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name              string   `json:"name"`
			Specialty         string   `json:"specialty"`
			CommissionPercent *float64 `json:"commission_percent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		commission := 50.0
		if req.CommissionPercent != nil {
			commission = *req.CommissionPercent
		}
		if commission < 0 || commission > 100 {
			http.Error(w, "commission_percent must be between 0 and 100", http.StatusBadRequest)
			return
		}
		p := model.ProfessionalProfile{
			Name:              req.Name,
			Specialty:         strings.TrimSpace(req.Specialty),
			CommissionPercent: commission,
			IsAvailable:       true,
		}
		if err := h.registry.CreateProfessional(r.Context(), &p); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.registry.UpsertSchedule(r.Context(), p.ID, h.defaultWeeklySchedule(p.ID)); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, professionalResponse{
			ProfessionalID:    p.ID,
			Name:              p.Name,
			Specialty:         p.Specialty,
			CommissionPercent: p.CommissionPercent,
			IsAvailable:       p.IsAvailable,
		})

	case http.MethodGet:
		pros, err := h.registry.ListProfessionals(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]professionalResponse, 0, len(pros))
		for _, p := range pros {
			items = append(items, professionalResponse{
				ProfessionalID:    p.ID,
				Name:              p.Name,
				Specialty:         p.Specialty,
				CommissionPercent: p.CommissionPercent,
				IsAvailable:       p.IsAvailable,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"professionals": items})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type scheduleEntryDTO struct {
	Weekday   int    `json:"weekday"`
	IsWorking bool   `json:"is_working"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Schedule serves PUT and GET for a professional's weekly schedule. Times
// are HH:MM local to the business.
func (h *RegistryHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			ProfessionalID string             `json:"professional_id"`
			Entries        []scheduleEntryDTO `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
		if req.ProfessionalID == "" || len(req.Entries) == 0 {
			http.Error(w, "professional_id and entries required", http.StatusBadRequest)
			return
		}

		entries := make([]model.ScheduleEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			if e.Weekday < 0 || e.Weekday > 6 {
				http.Error(w, "weekday must be 0 (Sunday) through 6", http.StatusBadRequest)
				return
			}
			startMin, err := parseClock(e.StartTime)
			if err != nil {
				http.Error(w, "invalid start_time, want HH:MM", http.StatusBadRequest)
				return
			}
			endMin, err := parseClock(e.EndTime)
			if err != nil {
				http.Error(w, "invalid end_time, want HH:MM", http.StatusBadRequest)
				return
			}
			if e.IsWorking && endMin <= startMin {
				http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
				return
			}
			entries = append(entries, model.ScheduleEntry{
				ProfessionalID: req.ProfessionalID,
				Weekday:        e.Weekday,
				IsWorking:      e.IsWorking,
				StartMinute:    startMin,
				EndMinute:      endMin,
			})
		}
		if err := h.registry.UpsertSchedule(r.Context(), req.ProfessionalID, entries); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			http.Error(w, "professional_id required", http.StatusBadRequest)
			return
		}
		entries, err := h.registry.ListSchedule(r.Context(), professionalID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]scheduleEntryDTO, 0, len(entries))
		for _, e := range entries {
			items = append(items, scheduleEntryDTO{
				Weekday:   e.Weekday,
				IsWorking: e.IsWorking,
				StartTime: formatClock(e.StartMinute),
				EndTime:   formatClock(e.EndMinute),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"professional_id": professionalID,
			"entries":         items,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minute int) string {
	return time.Date(0, 1, 1, minute/60, minute%60, 0, 0, time.UTC).Format("15:04")
}

func (h *RegistryHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, scheduler.ErrStoreUnavailable):
		http.Error(w, "storage unavailable, retry later", http.StatusServiceUnavailable)
	default:
		h.logger.Error("registry request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
