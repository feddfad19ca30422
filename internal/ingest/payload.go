package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// hoursPayload is the JSON sample shape. PLC gateways commonly publish bare
// numbers instead; ParseHoursPayload accepts both.
type hoursPayload struct {
	Hours *float64 `json:"hours"`
}

// ParseHoursPayload extracts a running-hours value from an MQTT payload.
// Accepted forms: a bare decimal number ("1250.5") or a JSON object with an
// "hours" field ({"hours": 1250.5}). Negative and non-finite values are
// rejected.
func ParseHoursPayload(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, fmt.Errorf("empty payload")
	}

	var hours float64
	if strings.HasPrefix(text, "{") {
		var body hoursPayload
		if err := json.Unmarshal([]byte(text), &body); err != nil {
			return 0, fmt.Errorf("invalid JSON payload: %w", err)
		}
		if body.Hours == nil {
			return 0, fmt.Errorf("JSON payload missing hours field")
		}
		hours = *body.Hours
	} else {
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric payload %q: %w", text, err)
		}
		hours = parsed
	}

	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, fmt.Errorf("non-finite hours value")
	}
	if hours < 0 {
		return 0, fmt.Errorf("negative hours value %v", hours)
	}
	return hours, nil
}
