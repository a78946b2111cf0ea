package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/green-horizons/lawnbook/internal/booking"
	"github.com/green-horizons/lawnbook/internal/storage"
)

type BookingHandler struct {
	svc    *booking.Service
	store  *storage.FileStore
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, store *storage.FileStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, store: store, logger: logger}
}

func (h *BookingHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Server is running"})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appointments, err := h.store.ListAppointments(r.Context())
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}
	writeJSON(w, http.StatusOK, appointments)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.svc.Book(r.Context(), req)
	if err != nil {
		switch {
		case storage.IsValidation(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case storage.IsConflict(err):
			writeError(w, http.StatusConflict, "This time slot is no longer available")
		default:
			h.logger.Error("create appointment failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to create appointment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":          "Appointment created successfully",
		"appointment":      result.Appointment,
		"customer":         result.Customer,
		"notificationSent": result.NotificationSent,
	})
}

func (h *BookingHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "Date parameter is required")
		return
	}

	slots, err := h.store.AvailableSlots(r.Context(), date)
	if err != nil {
		if storage.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("available slots lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to check available slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":           date,
		"availableSlots": slots,
	})
}

// Cancel handles PUT /api/appointments/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}

	if _, err := h.svc.Cancel(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("cancel appointment failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to cancel appointment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Appointment cancelled successfully"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
