package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/green-horizons/lawnbook/internal/model"
)

const (
	customersFile    = "customers.json"
	appointmentsFile = "appointments.json"
)

// FileStore owns the customers and appointments collections, each persisted
// as a single JSON array. Every mutation reads the whole collection, applies
// the change in memory, and rewrites the file via a temp-file rename. One
// mutex per collection serializes the read-modify-write cycle; the conflict
// check runs inside the appointments critical section so two concurrent
// bookings for the same slot cannot both pass it.
//
// Lock order when both collections are involved: customers before appointments.
type FileStore struct {
	customersPath    string
	appointmentsPath string

	customersMu    sync.Mutex
	appointmentsMu sync.Mutex

	ids idGenerator
}

// Open prepares dir, seeds empty collection files when absent, and fast-forwards
// the id generator past any ids already on disk.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{
		customersPath:    filepath.Join(dir, customersFile),
		appointmentsPath: filepath.Join(dir, appointmentsFile),
	}
	for _, path := range []string{s.customersPath, s.appointmentsPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := writeJSONFile(path, []struct{}{}); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
		}
	}

	customers, err := s.readCustomers()
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		s.ids.Reserve(c.ID)
	}
	appointments, err := s.readAppointments()
	if err != nil {
		return nil, err
	}
	for _, a := range appointments {
		s.ids.Reserve(a.ID)
	}
	return s, nil
}

// ReadyCheck reports whether the backing files are readable and well formed.
func (s *FileStore) ReadyCheck() func(context.Context) error {
	return func(context.Context) error {
		if _, err := s.readAppointments(); err != nil {
			return err
		}
		_, err := s.readCustomers()
		return err
	}
}

// ListAppointments returns every persisted appointment in file order.
func (s *FileStore) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readAppointments()
}

// ListCustomers returns every persisted customer in file order.
func (s *FileStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readCustomers()
}

// AvailableSlots returns the fixed slot set minus slots held by non-cancelled
// appointments on the given date. A date with no bookings yields the full set.
func (s *FileStore) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !model.ValidDate(date) {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)}
	}

	appointments, err := s.readAppointments()
	if err != nil {
		return nil, err
	}

	booked := make(map[string]bool)
	for _, a := range appointments {
		if a.Date == date && a.Status != model.StatusCancelled {
			booked[a.TimeSlot] = true
		}
	}

	available := make([]string, 0, len(model.TimeSlots))
	for _, slot := range model.TimeSlots {
		if !booked[slot] {
			available = append(available, slot)
		}
	}
	return available, nil
}

// CreateCustomer validates, normalizes the phone to digits, assigns a fresh
// id, and appends the record. The input's ID, Phone, and CreatedAt are
// overwritten.
func (s *FileStore) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return model.Customer{}, err
	}
	if err := validateCustomer(c); err != nil {
		return model.Customer{}, err
	}

	c.Phone = model.NormalizePhone(c.Phone)
	c.ID = s.ids.Next()
	c.CreatedAt = time.Now().UTC()

	s.customersMu.Lock()
	defer s.customersMu.Unlock()

	customers, err := s.readCustomers()
	if err != nil {
		return model.Customer{}, err
	}
	customers = append(customers, c)
	if err := writeJSONFile(s.customersPath, customers); err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// CreateAppointment checks the slot-uniqueness invariant and, if the slot is
// free, persists the appointment as scheduled. Returns ErrConflict without
// mutating anything when a non-cancelled appointment already holds the
// (date, timeSlot) pair.
func (s *FileStore) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if err := validateAppointment(a); err != nil {
		return model.Appointment{}, err
	}

	s.appointmentsMu.Lock()
	defer s.appointmentsMu.Unlock()

	appointments, err := s.readAppointments()
	if err != nil {
		return model.Appointment{}, err
	}
	for _, existing := range appointments {
		if existing.Date == a.Date && existing.TimeSlot == a.TimeSlot && existing.Status != model.StatusCancelled {
			return model.Appointment{}, ErrConflict
		}
	}

	a.ID = s.ids.Next()
	a.Status = model.StatusScheduled
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = nil

	appointments = append(appointments, a)
	if err := writeJSONFile(s.appointmentsPath, appointments); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// CancelAppointment marks the appointment cancelled and stamps the update
// time. Cancelling an already-cancelled appointment is a no-op success.
func (s *FileStore) CancelAppointment(ctx context.Context, id int64) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}

	s.appointmentsMu.Lock()
	defer s.appointmentsMu.Unlock()

	appointments, err := s.readAppointments()
	if err != nil {
		return model.Appointment{}, err
	}
	for i := range appointments {
		if appointments[i].ID != id {
			continue
		}
		if appointments[i].Status == model.StatusCancelled {
			return appointments[i], nil
		}
		now := time.Now().UTC()
		appointments[i].Status = model.StatusCancelled
		appointments[i].UpdatedAt = &now
		if err := writeJSONFile(s.appointmentsPath, appointments); err != nil {
			return model.Appointment{}, err
		}
		return appointments[i], nil
	}
	return model.Appointment{}, ErrNotFound
}

// ConfirmLatestScheduledByPhone moves the most recently created scheduled
// appointment belonging to the customer with the given phone number to
// confirmed. Matching ignores phone formatting and a leading US country code
// since Twilio sends E.164 numbers. ok is false when no
// scheduled appointment matches; that is not an error, inbound SMS replies
// are best effort.
//
// A customer can hold several scheduled appointments; matching the most
// recent one mirrors the confirmation SMS they just received.
func (s *FileStore) ConfirmLatestScheduledByPhone(ctx context.Context, phone string) (model.Appointment, bool, error) {
	return s.updateLatestByPhone(ctx, phone, []string{model.StatusScheduled}, model.StatusConfirmed)
}

// CancelLatestActiveByPhone cancels the most recently created scheduled or
// confirmed appointment belonging to the customer with the given phone number.
func (s *FileStore) CancelLatestActiveByPhone(ctx context.Context, phone string) (model.Appointment, bool, error) {
	return s.updateLatestByPhone(ctx, phone, []string{model.StatusScheduled, model.StatusConfirmed}, model.StatusCancelled)
}

func (s *FileStore) updateLatestByPhone(ctx context.Context, phone string, fromStatuses []string, toStatus string) (model.Appointment, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, false, err
	}
	if model.NormalizePhone(phone) == "" {
		return model.Appointment{}, false, nil
	}

	s.customersMu.Lock()
	customers, err := s.readCustomers()
	s.customersMu.Unlock()
	if err != nil {
		return model.Appointment{}, false, err
	}

	matching := make(map[int64]bool)
	for _, c := range customers {
		if model.SamePhone(c.Phone, phone) {
			matching[c.ID] = true
		}
	}
	if len(matching) == 0 {
		return model.Appointment{}, false, nil
	}

	s.appointmentsMu.Lock()
	defer s.appointmentsMu.Unlock()

	appointments, err := s.readAppointments()
	if err != nil {
		return model.Appointment{}, false, err
	}

	latest := -1
	for i := range appointments {
		if !matching[appointments[i].CustomerID] {
			continue
		}
		if !contains(fromStatuses, appointments[i].Status) {
			continue
		}
		// Most recent by creation time, ids break ties (ids are monotonic).
		if latest < 0 ||
			appointments[i].CreatedAt.After(appointments[latest].CreatedAt) ||
			(appointments[i].CreatedAt.Equal(appointments[latest].CreatedAt) && appointments[i].ID > appointments[latest].ID) {
			latest = i
		}
	}
	if latest < 0 {
		return model.Appointment{}, false, nil
	}

	now := time.Now().UTC()
	appointments[latest].Status = toStatus
	appointments[latest].UpdatedAt = &now
	if err := writeJSONFile(s.appointmentsPath, appointments); err != nil {
		return model.Appointment{}, false, err
	}
	return appointments[latest], true, nil
}

func validateCustomer(c model.Customer) error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if model.NormalizePhone(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &ValidationError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

func validateAppointment(a model.Appointment) error {
	if a.CustomerID == 0 {
		return &ValidationError{Reason: "customerId is required"}
	}
	if !model.ValidServiceType(a.ServiceType) {
		return &ValidationError{Reason: fmt.Sprintf("unknown service type %q", a.ServiceType)}
	}
	if a.LotSize != "" && !model.ValidLotSize(a.LotSize) {
		return &ValidationError{Reason: fmt.Sprintf("unknown lot size %q", a.LotSize)}
	}
	if !model.ValidDate(a.Date) {
		return &ValidationError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", a.Date)}
	}
	if !model.ValidTimeSlot(a.TimeSlot) {
		return &ValidationError{Reason: fmt.Sprintf("unknown time slot %q", a.TimeSlot)}
	}
	return nil
}

func (s *FileStore) readCustomers() ([]model.Customer, error) {
	var customers []model.Customer
	if err := readJSONFile(s.customersPath, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *FileStore) readAppointments() ([]model.Appointment, error) {
	var appointments []model.Appointment
	if err := readJSONFile(s.appointmentsPath, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSONFile rewrites the whole collection through a temp file + rename so
// readers never observe a partially written array.
func writeJSONFile(path string, in any) error {
	raw, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
