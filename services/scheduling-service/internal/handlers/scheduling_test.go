package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lfmoreira/agendo/libs/runtime"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/model"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/slots"
)

// stubScheduler returns canned values per operation; err wins when set.
type stubScheduler struct {
	appt         model.Appointment
	slots        []slots.Slot
	alternatives []scheduler.DayAlternative
	list         []model.Appointment
	err          error

	gotCreate scheduler.CreateParams
	gotCancel struct {
		id       string
		reason   string
		byClient bool
	}
}

func (s *stubScheduler) CreateAppointment(_ context.Context, p scheduler.CreateParams) (model.Appointment, error) {
	s.gotCreate = p
	return s.appt, s.err
}

func (s *stubScheduler) CancelAppointment(_ context.Context, id, reason string, byClient bool) (model.Appointment, error) {
	s.gotCancel.id = id
	s.gotCancel.reason = reason
	s.gotCancel.byClient = byClient
	return s.appt, s.err
}

func (s *stubScheduler) ConfirmAppointment(context.Context, string) (model.Appointment, error) {
	return s.appt, s.err
}

func (s *stubScheduler) CompleteAppointment(context.Context, string) (model.Appointment, error) {
	return s.appt, s.err
}

func (s *stubScheduler) MarkNoShow(context.Context, string) (model.Appointment, error) {
	return s.appt, s.err
}

func (s *stubScheduler) GetAvailableSlots(context.Context, string, time.Time, string) ([]slots.Slot, error) {
	return s.slots, s.err
}

func (s *stubScheduler) SuggestAlternatives(context.Context, string, time.Time, string) ([]scheduler.DayAlternative, error) {
	return s.alternatives, s.err
}

func (s *stubScheduler) ListClientAppointments(context.Context, string, bool) ([]model.Appointment, error) {
	return s.list, s.err
}

func (s *stubScheduler) ListProfessionalAppointments(context.Context, string, *time.Time) ([]model.Appointment, error) {
	return s.list, s.err
}

func testAppointment() model.Appointment {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID:             "appt-1",
		ClientID:       "cli-1",
		ProfessionalID: "pro-1",
		ServiceID:      "svc-1",
		ScheduledAt:    start,
		EndAt:          start.Add(30 * time.Minute),
		Status:         model.StatusScheduled,
	}
}

func newTestHandler(stub *stubScheduler) *SchedulingHandler {
	return NewSchedulingHandler(stub, runtime.NewLogger("handlers-test"))
}

func TestCreateHandler(t *testing.T) {
	stub := &stubScheduler{appt: testAppointment()}
	h := newTestHandler(stub)

	body := `{"client_id":"cli-1","professional_id":"pro-1","service_id":"svc-1","scheduled_at":"2026-09-01T10:00:00Z","notes":"first"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rw := httptest.NewRecorder()
	h.Create(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	if stub.gotCreate.ClientID != "cli-1" || !stub.gotCreate.ScheduledAt.Equal(testAppointment().ScheduledAt) {
		t.Fatalf("engine got %+v", stub.gotCreate)
	}
	var resp appointmentResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AppointmentID != "appt-1" || resp.Status != "scheduled" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestCreateHandlerValidation(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing ids", `{"scheduled_at":"2026-09-01T10:00:00Z"}`},
		{"bad timestamp", `{"client_id":"c","professional_id":"p","service_id":"s","scheduled_at":"tomorrow"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(tc.body))
		rw := httptest.NewRecorder()
		h.Create(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rw.Code)
		}
	}
}

func TestCreateHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{scheduler.ErrNotFound, http.StatusNotFound},
		{scheduler.ErrSlotUnavailable, http.StatusConflict},
		{scheduler.ErrPeakAccessDenied, http.StatusForbidden},
		{scheduler.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}
	body := `{"client_id":"c","professional_id":"p","service_id":"s","scheduled_at":"2026-09-01T10:00:00Z"}`
	for _, tc := range cases {
		h := newTestHandler(&stubScheduler{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
		rw := httptest.NewRecorder()
		h.Create(rw, req)
		if rw.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rw.Code)
		}
	}
}

func TestCancelHandler(t *testing.T) {
	stub := &stubScheduler{appt: testAppointment()}
	h := newTestHandler(stub)

	body := `{"appointment_id":"appt-1","reason":"sick","cancelled_by_client":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(body))
	rw := httptest.NewRecorder()
	h.Cancel(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if stub.gotCancel.id != "appt-1" || stub.gotCancel.reason != "sick" || !stub.gotCancel.byClient {
		t.Fatalf("engine got %+v", stub.gotCancel)
	}
}

func TestTransitionHandlersConflictMapping(t *testing.T) {
	h := newTestHandler(&stubScheduler{err: scheduler.ErrInvalidTransition})

	for _, op := range []http.HandlerFunc{h.Confirm, h.Complete, h.NoShow} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/x", strings.NewReader(`{"appointment_id":"appt-1"}`))
		rw := httptest.NewRecorder()
		op(rw, req)
		if rw.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rw.Code)
		}
	}
}

func TestSlotsHandler(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	h := newTestHandler(&stubScheduler{slots: []slots.Slot{
		{Start: start, End: start.Add(30 * time.Minute), IsPeak: true},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?professional_id=pro-1&service_id=svc-1&date=2026-09-01", nil)
	rw := httptest.NewRecorder()
	h.Slots(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp struct {
		Date  string     `json:"date"`
		Slots []slotItem `json:"slots"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != "2026-09-01" || len(resp.Slots) != 1 || !resp.Slots[0].IsPeak {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSlotsHandlerValidation(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?professional_id=pro-1&service_id=svc-1&date=09/01/2026", nil)
	rw := httptest.NewRecorder()
	h.Slots(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-09-01", nil)
	rw = httptest.NewRecorder()
	h.Slots(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ids, got %d", rw.Code)
	}
}

func TestSuggestSlotsHandler(t *testing.T) {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	h := newTestHandler(&stubScheduler{alternatives: []scheduler.DayAlternative{
		{Date: day, Slots: []slots.Slot{{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)}}},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots/suggest?professional_id=pro-1&service_id=svc-1&date=2026-09-01", nil)
	rw := httptest.NewRecorder()
	h.SuggestSlots(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp struct {
		Alternatives []alternativeDay `json:"alternatives"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Alternatives) != 1 || resp.Alternatives[0].Date != "2026-09-02" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestListClientHandler(t *testing.T) {
	h := newTestHandler(&stubScheduler{list: []model.Appointment{testAppointment()}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/client?client_id=cli-1", nil)
	rw := httptest.NewRecorder()
	h.ListClient(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments/client", nil)
	rw = httptest.NewRecorder()
	h.ListClient(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without client_id, got %d", rw.Code)
	}
}

func TestListProfessionalHandlerBadDate(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/professional?professional_id=pro-1&date=nope", nil)
	rw := httptest.NewRecorder()
	h.ListProfessional(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}
