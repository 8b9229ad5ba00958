package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var timeLayouts = []string{
	TimeLayout,
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04 pm",
	"3:04pm",
	"3 PM",
	"3PM",
	"3 pm",
	"3pm",
}

var looseTimePattern = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ParseDate canonicalizes a date the language model produced into YYYY-MM-DD.
// Relative words ("today", "tomorrow", weekday names) resolve against now.
// It returns "" when nothing recognizable is found.
func ParseDate(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(DateLayout)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout)
		}
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "today"):
		return now.Format(DateLayout)
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(DateLayout)
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if !strings.Contains(lower, strings.ToLower(wd.String())) {
			continue
		}
		ahead := (int(wd) - int(now.Weekday()) + 7) % 7
		if ahead == 0 && strings.Contains(lower, "next") {
			ahead = 7
		}
		return now.AddDate(0, 0, ahead).Format(DateLayout)
	}
	return ""
}

// ParseTime canonicalizes a time of day into 24h HH:MM, or "" when unparseable.
func ParseTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(TimeLayout)
		}
	}

	m := looseTimePattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// FormatDisplayDate renders YYYY-MM-DD as "Tuesday, June 10, 2025"; unparseable input is returned as is.
func FormatDisplayDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 02, 2006")
}

// FormatDisplayTime renders HH:MM as "02:00 PM"; unparseable input is returned as is.
func FormatDisplayTime(clock string) string {
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return clock
	}
	return t.Format("03:04 PM")
}
