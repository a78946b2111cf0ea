package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/green-horizons/lawnbook/internal/booking"
	"github.com/green-horizons/lawnbook/internal/events"
	"github.com/green-horizons/lawnbook/internal/model"
	"github.com/green-horizons/lawnbook/internal/sms"
	"github.com/green-horizons/lawnbook/internal/storage"
)

func newTestMux(t *testing.T) (*http.ServeMux, *storage.FileStore) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	logger := slog.Default()
	svc := booking.NewService(store, sms.NewNoopSender(), events.NewPublisher(logger, ""), logger, 0)

	bookingHandler := NewBookingHandler(svc, store, logger)
	webhookHandler := NewSMSWebhookHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", bookingHandler.Health)
	mux.HandleFunc("/api/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			bookingHandler.List(w, r)
		case http.MethodPost:
			bookingHandler.Create(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/appointments/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/available-slots", bookingHandler.AvailableSlots)
	mux.HandleFunc("/api/sms-webhook", webhookHandler.Inbound)
	return mux, store
}

func postBooking(t *testing.T, mux *http.ServeMux, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func validBookingBody() map[string]string {
	return map[string]string{
		"name":        "A",
		"email":       "a@x.com",
		"phone":       "555-000-1111",
		"address":     "1 Main",
		"serviceType": "mowing",
		"lotSize":     "small",
		"date":        "2025-06-10",
		"timeSlot":    "8:00 AM",
		"notes":       "gate code 1234",
	}
}

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBookingFlow(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := postBooking(t, mux, validBookingBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Appointment      model.Appointment `json:"appointment"`
		Customer         model.Customer    `json:"customer"`
		NotificationSent bool              `json:"notificationSent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Appointment.Status != "scheduled" {
		t.Fatalf("expected scheduled, got %q", created.Appointment.Status)
	}
	if created.Customer.Phone != "5550001111" {
		t.Fatalf("expected normalized phone, got %q", created.Customer.Phone)
	}
	if !created.NotificationSent {
		t.Fatal("expected notificationSent true with noop sender")
	}

	// Identical booking for the same date/slot conflicts.
	rec = postBooking(t, mux, validBookingBody())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// The slot is gone from availability.
	req := httptest.NewRequest(http.MethodGet, "/api/available-slots?date=2025-06-10", nil)
	slotRec := httptest.NewRecorder()
	mux.ServeHTTP(slotRec, req)
	if slotRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", slotRec.Code)
	}
	var slotsResp struct {
		Date           string   `json:"date"`
		AvailableSlots []string `json:"availableSlots"`
	}
	if err := json.Unmarshal(slotRec.Body.Bytes(), &slotsResp); err != nil {
		t.Fatalf("decode slots response: %v", err)
	}
	if slotsResp.Date != "2025-06-10" || len(slotsResp.AvailableSlots) != 4 {
		t.Fatalf("unexpected slots response: %+v", slotsResp)
	}

	// Cancel, then rebooking the same slot succeeds.
	cancelReq := httptest.NewRequest(http.MethodPut, "/api/appointments/"+strconv.FormatInt(created.Appointment.ID, 10)+"/cancel", nil)
	cancelRec := httptest.NewRecorder()
	mux.ServeHTTP(cancelRec, cancelReq)
	if cancelRec.Code != http.StatusOK {
		t.Fatalf("expected 200 cancelling, got %d", cancelRec.Code)
	}

	rec = postBooking(t, mux, validBookingBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 after cancel, got %d", rec.Code)
	}
}

func TestBookingMissingFields(t *testing.T) {
	mux, store := newTestMux(t)

	body := validBookingBody()
	delete(body, "email")
	rec := postBooking(t, mux, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	appointments, err := store.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(appointments) != 0 {
		t.Fatal("rejected booking must not persist an appointment")
	}

	customers, err := store.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(customers) != 0 {
		t.Fatal("rejected booking must not persist a customer")
	}
}

func TestBookingInvalidJSON(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAvailableSlotsRequiresDate(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/available-slots", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCancelUnknownAppointment(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodPut, "/api/appointments/42/cancel", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListAppointments(t *testing.T) {
	mux, _ := newTestMux(t)
	postBooking(t, mux, validBookingBody())

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var appointments []model.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appointments); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(appointments) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(appointments))
	}
}

func postWebhook(t *testing.T, mux *http.ServeMux, body, from string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("Body", body)
	form.Set("From", from)
	req := httptest.NewRequest(http.MethodPost, "/api/sms-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSMSWebhookConfirm(t *testing.T) {
	mux, store := newTestMux(t)
	postBooking(t, mux, validBookingBody())

	rec := postWebhook(t, mux, " confirm ", "+15550001111")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("expected text/xml, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Thank you for confirming") {
		t.Fatalf("unexpected twiml: %s", rec.Body.String())
	}

	appointments, err := store.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(appointments) != 1 || appointments[0].Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed appointment, got %+v", appointments)
	}
}

func TestSMSWebhookCancel(t *testing.T) {
	mux, store := newTestMux(t)
	postBooking(t, mux, validBookingBody())

	rec := postWebhook(t, mux, "CANCEL", "5550001111")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cancellation request") {
		t.Fatalf("unexpected twiml: %s", rec.Body.String())
	}

	appointments, err := store.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(appointments) != 1 || appointments[0].Status != model.StatusCancelled {
		t.Fatalf("expected cancelled appointment, got %+v", appointments)
	}
}

func TestSMSWebhookUnknownKeyword(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := postWebhook(t, mux, "HELLO", "5550001111")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Please reply with CONFIRM") {
		t.Fatalf("unexpected twiml: %s", rec.Body.String())
	}
}

func TestSMSWebhookNoMatchStillReplies(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := postWebhook(t, mux, "CONFIRM", "+19990000000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even without a matching appointment, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Thank you for confirming") {
		t.Fatalf("unexpected twiml: %s", rec.Body.String())
	}
}
