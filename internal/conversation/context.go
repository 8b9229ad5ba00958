package conversation

import (
	"encoding/json"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

// State is the router's position in a multi-message exchange.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingSelection State = "awaiting_selection"
)

// Context is the short-lived per-phone conversation state.
type Context struct {
	State        State                 `json:"state"`
	LastIntent   *scheduling.Intent    `json:"last_intent,omitempty"`
	Alternatives []scheduling.TimeSlot `json:"alternatives,omitempty"`
	Service      string                `json:"service,omitempty"`
	PatientName  string                `json:"patient_name,omitempty"`
	// RescheduleID is set when the pending offer moves an existing appointment.
	RescheduleID string `json:"reschedule_id,omitempty"`
}

// AwaitingSelection reports whether the next message should be read as a slot number.
func (c *Context) AwaitingSelection() bool {
	return c != nil && c.State == StateAwaitingSelection && len(c.Alternatives) > 0
}

// OfferAlternatives moves the context into AwaitingSelection with at most MaxAlternatives slots.
func (c *Context) OfferAlternatives(slots []scheduling.TimeSlot, service, patientName, rescheduleID string) {
	if len(slots) > scheduling.MaxAlternatives {
		slots = slots[:scheduling.MaxAlternatives]
	}
	c.State = StateAwaitingSelection
	c.Alternatives = append([]scheduling.TimeSlot(nil), slots...)
	c.Service = service
	c.PatientName = patientName
	c.RescheduleID = rescheduleID
}

// ClearSelection returns the context to Idle and drops any pending offer.
func (c *Context) ClearSelection() {
	c.State = StateIdle
	c.Alternatives = nil
	c.RescheduleID = ""
}

// contextJSON mirrors Context and adds the boolean flag older readers of the raw value expect.
type contextJSON struct {
	State                        State                 `json:"state"`
	AwaitingAlternativeSelection bool                  `json:"awaiting_alternative_selection"`
	LastIntent                   *scheduling.Intent    `json:"last_intent,omitempty"`
	Alternatives                 []scheduling.TimeSlot `json:"alternatives,omitempty"`
	Service                      string                `json:"service,omitempty"`
	PatientName                  string                `json:"patient_name,omitempty"`
	RescheduleID                 string                `json:"reschedule_id,omitempty"`
}

func (c Context) MarshalJSON() ([]byte, error) {
	state := c.State
	if state == "" {
		state = StateIdle
	}
	return json.Marshal(contextJSON{
		State:                        state,
		AwaitingAlternativeSelection: state == StateAwaitingSelection,
		LastIntent:                   c.LastIntent,
		Alternatives:                 c.Alternatives,
		Service:                      c.Service,
		PatientName:                  c.PatientName,
		RescheduleID:                 c.RescheduleID,
	})
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var raw contextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state := raw.State
	if state == "" {
		state = StateIdle
		if raw.AwaitingAlternativeSelection {
			state = StateAwaitingSelection
		}
	}
	*c = Context{
		State:        state,
		LastIntent:   raw.LastIntent,
		Alternatives: raw.Alternatives,
		Service:      raw.Service,
		PatientName:  raw.PatientName,
		RescheduleID: raw.RescheduleID,
	}
	return nil
}
