package intent

import (
	"fmt"
	"time"
)

const systemPromptTemplate = `You are a professional dental practice assistant. Given a patient's raw SMS message, extract exactly these five fields as JSON:

{
  "intent": "<book, reschedule, cancel, inquiry>",
  "date": "YYYY-MM-DD",
  "time": "HH:MM",
  "service": "<string, e.g., Cleaning, Filling, Crown>",
  "patient_name": "<string>"
}

Today is %s (%s). Resolve relative dates such as "tomorrow" or "next Tuesday" against today.
Use 24-hour time. If a field is missing, use an empty string. Do not include any extra keys.
Do not wrap the JSON in markdown or quotes; output only the raw JSON object.`

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02"), now.Weekday())
}

func userPrompt(message string) string {
	return fmt.Sprintf("Message: %q", message)
}
