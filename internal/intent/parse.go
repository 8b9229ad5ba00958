package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

type rawIntent struct {
	Intent      string `json:"intent"`
	IntentType  string `json:"intent_type"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Service     string `json:"service"`
	PatientName string `json:"patient_name"`
}

// parseResponse turns model output into an Intent. Date and time are canonicalized;
// an unrecognized intent label becomes unknown.
func parseResponse(raw string, now time.Time) (scheduling.Intent, error) {
	text := extractJSONObject(stripCodeFence(stripThinking(raw)))
	if text == "" {
		return scheduling.Intent{}, errors.New("intent: empty model response")
	}
	var parsed rawIntent
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return scheduling.Intent{}, fmt.Errorf("intent: decode model json: %w", err)
	}

	label := parsed.Intent
	if label == "" {
		label = parsed.IntentType
	}
	out := scheduling.Intent{
		Type:        scheduling.ParseIntentType(strings.ToLower(strings.TrimSpace(label))),
		Service:     strings.TrimSpace(parsed.Service),
		PatientName: strings.TrimSpace(parsed.PatientName),
	}
	if d := strings.TrimSpace(parsed.Date); d != "" {
		out.Date = scheduling.ParseDate(d, now)
	}
	if t := strings.TrimSpace(parsed.Time); t != "" {
		out.Time = scheduling.ParseTime(t)
	}
	return out, nil
}

// stripThinking drops the <think> preamble reasoning models emit before the answer.
func stripThinking(text string) string {
	if idx := strings.LastIndex(text, "</think>"); idx >= 0 {
		return text[idx+len("</think>"):]
	}
	return text
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first balanced {...} object, ignoring prose on either side.
// Unbalanced input falls back to the span from the first '{' to the last '}'.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	if end := strings.LastIndex(text, "}"); end > start {
		return text[start : end+1]
	}
	return text[start:]
}
