package model

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date format used across the API and the data files.
const DateLayout = "2006-01-02"

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// TimeSlots is the fixed set of daily appointment windows, in day order.
var TimeSlots = []string{"8:00 AM", "10:00 AM", "12:00 PM", "2:00 PM", "4:00 PM"}

var ServiceTypes = []string{"mowing", "edging", "fertilization", "cleanup", "aeration"}

var LotSizes = []string{"small", "medium", "large"}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

type Appointment struct {
	ID          int64      `json:"id"`
	CustomerID  int64      `json:"customerId"`
	ServiceType string     `json:"serviceType"`
	LotSize     string     `json:"lotSize,omitempty"`
	Date        string     `json:"date"`
	TimeSlot    string     `json:"timeSlot"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func ValidTimeSlot(slot string) bool {
	return contains(TimeSlots, slot)
}

func ValidServiceType(serviceType string) bool {
	return contains(ServiceTypes, serviceType)
}

func ValidLotSize(lotSize string) bool {
	return contains(LotSizes, lotSize)
}

func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// NormalizePhone strips everything but digits, so "555-000-1111" and
// "(555) 000 1111" compare and dial the same.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SamePhone reports whether two phone numbers reach the same line. Both sides
// are reduced to digits and a leading US country code is ignored, so Twilio's
// E.164 "+15550001111" matches a customer stored as "5550001111".
func SamePhone(a, b string) bool {
	da := stripCountryCode(NormalizePhone(a))
	db := stripCountryCode(NormalizePhone(b))
	return da != "" && da == db
}

func stripCountryCode(digits string) string {
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
