// Package templates holds the outbound SMS wording.
package templates

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

// Template names.
const (
	Confirmation   = "confirmation"
	Alternatives   = "alternatives"
	NoAlternatives = "no_alternatives"
	Cancellation   = "cancellation"
	Reminder       = "reminder"
)

var texts = map[string]string{
	Confirmation: "Hi {{.PatientName}}, your {{.Service}} appointment is booked for " +
		"{{displayDate .Date}} at {{displayTime .Time}}. Reply CANCEL to reschedule.",
	Alternatives: "Sorry, that time is booked. We have the following slots available for your {{.Service}}:\n" +
		"{{range $i, $s := .Slots}}{{inc $i}}. {{displayDate $s.Date}} at {{displayTime $s.Time}}\n{{end}}" +
		"Reply with the number of your preferred time (e.g., '1' or '2').",
	NoAlternatives: "Sorry, we don't have any available slots for {{.Service}} in the next few days. " +
		"Please call our office{{if .ClinicPhone}} at {{.ClinicPhone}}{{end}} to schedule.",
	Cancellation: "Your {{.Service}} appointment on {{displayDate .Date}} at {{displayTime .Time}} has been canceled. " +
		"Reply REBOOK to schedule a new appointment.",
	Reminder: "Reminder: Hi {{.PatientName}}, your {{.Service}} appointment is {{when .HoursAhead}} on " +
		"{{displayDate .Date}} at {{displayTime .Time}}. Reply CANCEL to reschedule.",
}

var funcs = template.FuncMap{
	"displayDate": scheduling.FormatDisplayDate,
	"displayTime": scheduling.FormatDisplayTime,
	"inc":         func(i int) int { return i + 1 },
	"when": func(hours int) string {
		if hours == 24 {
			return "tomorrow"
		}
		return fmt.Sprintf("in %d hours", hours)
	},
}

// Renderer executes the named SMS templates with strict missing-key semantics.
type Renderer struct {
	set *template.Template
}

func NewRenderer() *Renderer {
	set := template.New("sms").Option("missingkey=error").Funcs(funcs)
	for name, text := range texts {
		template.Must(set.New(name).Parse(text))
	}
	return &Renderer{set: set}
}

func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.set.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("templates: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}
