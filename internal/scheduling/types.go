// Package scheduling holds the appointment domain types and the pure slot arithmetic shared by
// the conversation engine, calendar adapters and reminder sweep.
package scheduling

import "time"

// IntentType enumerates what a patient is asking for.
type IntentType string

const (
	IntentBook       IntentType = "book"
	IntentReschedule IntentType = "reschedule"
	IntentCancel     IntentType = "cancel"
	IntentInquiry    IntentType = "inquiry"
	IntentUnknown    IntentType = "unknown"
)

// ParseIntentType maps free text to a known intent, returning IntentUnknown otherwise.
func ParseIntentType(raw string) IntentType {
	switch IntentType(raw) {
	case IntentBook, IntentReschedule, IntentCancel, IntentInquiry:
		return IntentType(raw)
	default:
		return IntentUnknown
	}
}

// Intent is the structured interpretation of one inbound message.
// Empty fields mean the patient has not provided them yet.
type Intent struct {
	Type        IntentType `json:"intent_type"`
	Date        string     `json:"date,omitempty"` // YYYY-MM-DD
	Time        string     `json:"time,omitempty"` // HH:MM, 24h
	Service     string     `json:"service,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
}

// UnknownIntent is returned whenever extraction fails.
func UnknownIntent() Intent {
	return Intent{Type: IntentUnknown}
}

// MissingBookingFields lists the empty booking fields in the order date, time, service, name.
func (i Intent) MissingBookingFields() []string {
	var missing []string
	if i.Date == "" {
		missing = append(missing, "date")
	}
	if i.Time == "" {
		missing = append(missing, "time")
	}
	if i.Service == "" {
		missing = append(missing, "service")
	}
	if i.PatientName == "" {
		missing = append(missing, "name")
	}
	return missing
}

// Appointment is owned by the calendar; the engine only reads and writes it through that interface.
type Appointment struct {
	ID          string     `json:"id,omitempty"`
	Service     string     `json:"service"`
	PatientName string     `json:"patient_name"`
	PhoneNumber string     `json:"phone_number"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	EndTime     string     `json:"end_time"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TimeSlot is a candidate appointment start.
type TimeSlot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// BusyInterval is an existing calendar event span.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}
