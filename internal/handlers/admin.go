package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/green-horizons/lawnbook/internal/model"
	"github.com/green-horizons/lawnbook/internal/storage"
	"github.com/green-horizons/lawnbook/libs/auth"
)

// AdminHandler serves the admin dashboard API. The credential is an injected
// bcrypt hash, never a password in source; a successful login yields a
// short-lived HS256 bearer token.
type AdminHandler struct {
	store        *storage.FileStore
	logger       *slog.Logger
	passwordHash string
	tokenSecret  string
	tokenTTL     time.Duration
}

func NewAdminHandler(store *storage.FileStore, logger *slog.Logger, passwordHash, tokenSecret string, tokenTTL time.Duration) *AdminHandler {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AdminHandler{
		store:        store,
		logger:       logger,
		passwordHash: strings.TrimSpace(passwordHash),
		tokenSecret:  tokenSecret,
		tokenTTL:     tokenTTL,
	}
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

type adminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type adminAppointmentItem struct {
	model.Appointment
	Customer *model.Customer `json:"customer,omitempty"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.passwordHash == "" {
		writeError(w, http.StatusServiceUnavailable, "Admin login is not configured")
		return
	}

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "admin",
		Role: "admin",
		Iat:  now.Unix(),
		Exp:  now.Add(h.tokenTTL).Unix(),
	}, h.tokenSecret)
	if err != nil {
		h.logger.Error("admin token signing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, adminLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
	})
}

// Appointments returns the full appointment list with each owning customer's
// contact details attached, for the admin dashboard.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorize(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	appointments, err := h.store.ListAppointments(r.Context())
	if err != nil {
		h.logger.Error("admin list appointments failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}
	customers, err := h.store.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("admin list customers failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}

	byID := make(map[int64]model.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	items := make([]adminAppointmentItem, 0, len(appointments))
	for _, a := range appointments {
		item := adminAppointmentItem{Appointment: a}
		if c, ok := byID[a.CustomerID]; ok {
			item.Customer = &c
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) authorize(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), h.tokenSecret)
	if err != nil {
		return false
	}
	return claims.Role == "admin"
}
