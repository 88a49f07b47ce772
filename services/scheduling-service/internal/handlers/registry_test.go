package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lfmoreira/agendo/libs/runtime"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
)

type stubRegistry struct {
	client        model.ClientProfile
	professionals []model.ProfessionalProfile
	schedule      []model.ScheduleEntry
	err           error

	gotSchedule []model.ScheduleEntry
}

func (s *stubRegistry) CreateService(_ context.Context, svc *model.Service) error {
	svc.ID = "svc-new"
	return s.err
}

func (s *stubRegistry) ListServices(context.Context) ([]model.Service, error) {
	return nil, s.err
}

func (s *stubRegistry) CreateClient(_ context.Context, c *model.ClientProfile) error {
	c.ID = "cli-new"
	c.Reliability = model.ReliabilityExcellent
	return s.err
}

func (s *stubRegistry) ListClients(context.Context) ([]model.ClientProfile, error) {
	return nil, s.err
}

func (s *stubRegistry) GetClient(context.Context, string) (model.ClientProfile, error) {
	return s.client, s.err
}

func (s *stubRegistry) CreateProfessional(_ context.Context, p *model.ProfessionalProfile) error {
	p.ID = "pro-new"
	return s.err
}

func (s *stubRegistry) ListProfessionals(context.Context) ([]model.ProfessionalProfile, error) {
	return s.professionals, s.err
}

func (s *stubRegistry) UpsertSchedule(_ context.Context, _ string, entries []model.ScheduleEntry) error {
	s.gotSchedule = entries
	return s.err
}

func (s *stubRegistry) ListSchedule(context.Context, string) ([]model.ScheduleEntry, error) {
	return s.schedule, s.err
}

func newRegistryHandler(stub *stubRegistry) *RegistryHandler {
	return NewRegistryHandler(stub, runtime.NewLogger("handlers-test"), 8*60, 20*60)
}

func TestCreateProfessionalDefaults(t *testing.T) {
	stub := &stubRegistry{}
	h := newRegistryHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/professionals",
		strings.NewReader(`{"name":"Maria Santos","specialty":"Hair Stylist"}`))
	rec := httptest.NewRecorder()
	h.Professionals(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp professionalResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CommissionPercent != 50 {
		t.Fatalf("commission = %v, want default 50", resp.CommissionPercent)
	}
	if len(stub.gotSchedule) != 5 {
		t.Fatalf("default schedule has %d entries, want Mon-Fri", len(stub.gotSchedule))
	}
	first := stub.gotSchedule[0]
	if first.Weekday != 1 || first.StartMinute != 8*60 || first.EndMinute != 20*60 {
		t.Fatalf("first entry = %+v", first)
	}
}

func TestCreateProfessionalCommissionValidation(t *testing.T) {
	h := newRegistryHandler(&stubRegistry{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/professionals",
		strings.NewReader(`{"name":"Pedro","commission_percent":120}`))
	rec := httptest.NewRecorder()
	h.Professionals(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	h := newRegistryHandler(&stubRegistry{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services",
		strings.NewReader(`{"name":"Haircut","duration_mins":0}`))
	rec := httptest.NewRecorder()
	h.Services(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestScheduleUpsert(t *testing.T) {
	stub := &stubRegistry{}
	h := newRegistryHandler(stub)

	body := `{"professional_id":"pro-1","entries":[
		{"weekday":2,"is_working":true,"start_time":"09:30","end_time":"17:00"},
		{"weekday":0,"is_working":false,"start_time":"00:00","end_time":"00:00"}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/professionals/schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Schedule(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(stub.gotSchedule) != 2 {
		t.Fatalf("upserted %d entries, want 2", len(stub.gotSchedule))
	}
	if stub.gotSchedule[0].StartMinute != 9*60+30 || stub.gotSchedule[0].EndMinute != 17*60 {
		t.Fatalf("entry minutes = %+v", stub.gotSchedule[0])
	}
}

func TestScheduleUpsertValidation(t *testing.T) {
	h := newRegistryHandler(&stubRegistry{})

	cases := []struct {
		name string
		body string
	}{
		{"bad weekday", `{"professional_id":"pro-1","entries":[{"weekday":7,"is_working":true,"start_time":"09:00","end_time":"17:00"}]}`},
		{"bad clock", `{"professional_id":"pro-1","entries":[{"weekday":1,"is_working":true,"start_time":"9am","end_time":"17:00"}]}`},
		{"inverted window", `{"professional_id":"pro-1","entries":[{"weekday":1,"is_working":true,"start_time":"17:00","end_time":"09:00"}]}`},
		{"no entries", `{"professional_id":"pro-1","entries":[]}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/professionals/schedule", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.Schedule(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestClientByID(t *testing.T) {
	stub := &stubRegistry{client: model.ClientProfile{
		ID: "cli-1", Name: "Ana Paula", NoShowCount: 2,
		LateCancellationCount: 1, TotalAppointments: 9,
		Reliability: model.ReliabilityModerate,
	}}
	h := newRegistryHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients/cli-1", nil)
	rec := httptest.NewRecorder()
	h.ClientByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp clientResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reliability != "moderate" || resp.NoShowCount != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestClientByIDNotFound(t *testing.T) {
	h := newRegistryHandler(&stubRegistry{err: scheduler.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients/nope", nil)
	rec := httptest.NewRecorder()
	h.ClientByID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
