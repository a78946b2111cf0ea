package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/green-horizons/lawnbook/internal/events"
	"github.com/green-horizons/lawnbook/internal/model"
	"github.com/green-horizons/lawnbook/internal/sms"
	"github.com/green-horizons/lawnbook/internal/storage"
)

// Request carries one booking submission from the web form.
type Request struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	LotSize     string `json:"lotSize"`
	ServiceType string `json:"serviceType"`
	Date        string `json:"date"`
	TimeSlot    string `json:"timeSlot"`
	Notes       string `json:"notes"`
}

// Result is the outward-facing outcome of a booking. NotificationSent is
// informational only; a failed SMS never fails the booking.
type Result struct {
	Appointment      model.Appointment
	Customer         model.Customer
	NotificationSent bool
}

type Service struct {
	store      *storage.FileStore
	sender     sms.Sender
	events     *events.Publisher
	logger     *slog.Logger
	smsTimeout time.Duration
}

func NewService(store *storage.FileStore, sender sms.Sender, publisher *events.Publisher, logger *slog.Logger, smsTimeout time.Duration) *Service {
	if smsTimeout <= 0 {
		smsTimeout = 5 * time.Second
	}
	return &Service{
		store:      store,
		sender:     sender,
		events:     publisher,
		logger:     logger,
		smsTimeout: smsTimeout,
	}
}

// Book runs one booking end to end: validate, create the customer, create
// the appointment (conflict-checked by the store), then send the confirmation
// SMS with a bounded timeout.
func (s *Service) Book(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	customer, err := s.store.CreateCustomer(ctx, model.Customer{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   req.Phone,
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return Result{}, err
	}

	appointment, err := s.store.CreateAppointment(ctx, model.Appointment{
		CustomerID:  customer.ID,
		ServiceType: req.ServiceType,
		LotSize:     req.LotSize,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return Result{}, err
	}

	sent := s.sendConfirmation(ctx, customer, appointment)

	s.events.Emit(ctx, events.TypeAppointmentBooked, strconv.FormatInt(appointment.ID, 10), map[string]any{
		"appointmentId": appointment.ID,
		"customerId":    customer.ID,
		"serviceType":   appointment.ServiceType,
		"date":          appointment.Date,
		"timeSlot":      appointment.TimeSlot,
		"smsSent":       sent,
	})

	return Result{
		Appointment:      appointment,
		Customer:         customer,
		NotificationSent: sent,
	}, nil
}

// Cancel cancels an appointment by id.
func (s *Service) Cancel(ctx context.Context, id int64) (model.Appointment, error) {
	appointment, err := s.store.CancelAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	s.events.Emit(ctx, events.TypeAppointmentCancelled, strconv.FormatInt(appointment.ID, 10), map[string]any{
		"appointmentId": appointment.ID,
		"date":          appointment.Date,
		"timeSlot":      appointment.TimeSlot,
		"source":        "api",
	})
	return appointment, nil
}

// ConfirmFromSMS marks the texting customer's most recent scheduled
// appointment confirmed. ok is false when no appointment matched the phone.
func (s *Service) ConfirmFromSMS(ctx context.Context, phone string) (model.Appointment, bool, error) {
	appointment, ok, err := s.store.ConfirmLatestScheduledByPhone(ctx, phone)
	if err != nil || !ok {
		return model.Appointment{}, ok, err
	}
	s.events.Emit(ctx, events.TypeAppointmentConfirmed, strconv.FormatInt(appointment.ID, 10), map[string]any{
		"appointmentId": appointment.ID,
		"date":          appointment.Date,
		"timeSlot":      appointment.TimeSlot,
		"source":        "sms",
	})
	return appointment, true, nil
}

// CancelFromSMS cancels the texting customer's most recent active appointment.
func (s *Service) CancelFromSMS(ctx context.Context, phone string) (model.Appointment, bool, error) {
	appointment, ok, err := s.store.CancelLatestActiveByPhone(ctx, phone)
	if err != nil || !ok {
		return model.Appointment{}, ok, err
	}
	s.events.Emit(ctx, events.TypeAppointmentCancelled, strconv.FormatInt(appointment.ID, 10), map[string]any{
		"appointmentId": appointment.ID,
		"date":          appointment.Date,
		"timeSlot":      appointment.TimeSlot,
		"source":        "sms",
	})
	return appointment, true, nil
}

func (s *Service) sendConfirmation(ctx context.Context, customer model.Customer, appointment model.Appointment) bool {
	body := ConfirmationMessage(customer.Name, appointment)

	smsCtx, cancel := context.WithTimeout(ctx, s.smsTimeout)
	defer cancel()

	if err := s.sender.Send(smsCtx, customer.Phone, body); err != nil {
		s.logger.Warn("confirmation sms failed",
			"provider", s.sender.ProviderID(),
			"appointment_id", appointment.ID,
			"err", err,
		)
		return false
	}
	return true
}

// ConfirmationMessage builds the SMS body sent after a successful booking.
func ConfirmationMessage(customerName string, appointment model.Appointment) string {
	dateText := appointment.Date
	if d, err := time.Parse(model.DateLayout, appointment.Date); err == nil {
		dateText = d.Format("January 2, 2006")
	}
	return fmt.Sprintf(
		"Hi %s, your lawn care service is scheduled for %s at %s. Reply CONFIRM to confirm. - Green Horizons Lawn Care",
		customerName, dateText, appointment.TimeSlot,
	)
}

func validateRequest(req Request) error {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if model.NormalizePhone(req.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(req.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		missing = append(missing, "serviceType")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.TimeSlot) == "" {
		missing = append(missing, "timeSlot")
	}
	if len(missing) > 0 {
		return &storage.ValidationError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}

	// Reject malformed values before the customer record is persisted, so a
	// bad appointment field cannot leave an orphan customer behind.
	if !model.ValidServiceType(req.ServiceType) {
		return &storage.ValidationError{Reason: fmt.Sprintf("unknown service type %q", req.ServiceType)}
	}
	if req.LotSize != "" && !model.ValidLotSize(req.LotSize) {
		return &storage.ValidationError{Reason: fmt.Sprintf("unknown lot size %q", req.LotSize)}
	}
	if !model.ValidDate(req.Date) {
		return &storage.ValidationError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date)}
	}
	if !model.ValidTimeSlot(req.TimeSlot) {
		return &storage.ValidationError{Reason: fmt.Sprintf("unknown time slot %q", req.TimeSlot)}
	}
	return nil
}
