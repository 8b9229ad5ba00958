package conversation

import (
	"fmt"
	"strings"
)

const (
	replyApology = "Sorry, we're having trouble processing your request. Please try again later or call our office directly."

	replyRebook      = "To book a new appointment, please let us know what service you need and your preferred date and time."
	replyUnsubscribe = "You have been unsubscribed from all messages. Reply START to re-enable messages."

	replyHelp = "Dental Appointment Scheduler Help:\n" +
		"- Book: 'I need a cleaning on Monday at 2pm'\n" +
		"- Cancel: 'Cancel my appointment' or reply CANCEL\n" +
		"- Reschedule: 'Reschedule my appointment to Tuesday at 3pm'\n" +
		"- Stop all messages: reply STOP\n" +
		"- For assistance, call our office directly."

	replyUnknown = "I'm not sure what you're asking for. You can:\n" +
		"- Book an appointment: 'I need a cleaning on Monday at 2pm'\n" +
		"- Cancel an appointment: 'Cancel my appointment'\n" +
		"- Reschedule: 'Reschedule my appointment to Tuesday at 3pm'\n" +
		"- Get help: reply HELP\n" +
		"- For other inquiries, please call our office directly."

	replySelectionNotNumber = "Please reply with just the number of your preferred time slot (e.g., '1' or '2')."

	replyNoAppointment = "We couldn't find an existing appointment for you. Would you like to book a new appointment instead?"

	replyAlternativesSent = "Sorry, that time is not available. We've sent you some alternative options via SMS."
)

// ClinicInfo feeds the static inquiry reply.
type ClinicInfo struct {
	Name      string
	Phone     string
	Address   string
	Hours     string
	Services  []string
	Insurance string
}

// DefaultClinicInfo matches the practice the scheduler was first deployed for.
func DefaultClinicInfo() ClinicInfo {
	return ClinicInfo{
		Hours:     "Monday-Friday 9am-5pm",
		Services:  []string{"Cleanings", "Fillings", "Crowns", "Root Canals"},
		Insurance: "We accept most major dental insurance plans",
		Address:   "123 Main St, Salt Lake City, UT 84101",
	}
}

func (c ClinicInfo) inquiryReply() string {
	defaults := DefaultClinicInfo()
	if c.Hours == "" {
		c.Hours = defaults.Hours
	}
	if len(c.Services) == 0 {
		c.Services = defaults.Services
	}
	if c.Insurance == "" {
		c.Insurance = defaults.Insurance
	}
	if c.Address == "" {
		c.Address = defaults.Address
	}
	var b strings.Builder
	b.WriteString("Thank you for your inquiry. Here's some information about our practice:\n")
	fmt.Fprintf(&b, "- Hours: %s\n", c.Hours)
	fmt.Fprintf(&b, "- Services: %s\n", strings.Join(c.Services, ", "))
	fmt.Fprintf(&b, "- Insurance: %s\n", c.Insurance)
	fmt.Fprintf(&b, "- Address: %s\n", c.Address)
	if c.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", c.Phone)
	}
	b.WriteString("To book an appointment, simply text us with your preferred date, time, and service.")
	return b.String()
}

func (c ClinicInfo) noAlternativesReply(service string) string {
	if c.Phone != "" {
		return fmt.Sprintf("Sorry, that time is not available and we don't have other openings for %s that day. Please call our office at %s to schedule.", service, c.Phone)
	}
	return fmt.Sprintf("Sorry, that time is not available and we don't have other openings for %s that day. Please call our office to schedule.", service)
}

func missingFieldsReply(missing []string) string {
	return fmt.Sprintf("To book your appointment, I need your %s. Could you please provide that information?", strings.Join(missing, ", "))
}

func selectionRangeReply(n int) string {
	return fmt.Sprintf("Please select a number between 1 and %d.", n)
}

func bookedReply(service, date, clock string) string {
	return fmt.Sprintf("Great! Your %s appointment is confirmed for %s at %s. We'll send you a reminder before your appointment. Reply CANCEL to cancel.", service, date, clock)
}

func rescheduledReply(date, clock string) string {
	return fmt.Sprintf("Your appointment has been rescheduled to %s at %s. We'll send you a reminder before your appointment. Reply CANCEL to cancel.", date, clock)
}

func rescheduleAskReply(service, date, clock string) string {
	return fmt.Sprintf("We found your %s appointment on %s at %s. What date and time would you like to reschedule to?", service, date, clock)
}

func canceledReply(service, date, clock string) string {
	return fmt.Sprintf("Your %s appointment on %s at %s has been canceled. Reply REBOOK to schedule a new appointment.", service, date, clock)
}
