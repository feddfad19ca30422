package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHoursPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    float64
		wantErr bool
	}{
		{"bare integer", "1250", 1250, false},
		{"bare decimal", "1250.5", 1250.5, false},
		{"bare with whitespace", "  42.0\n", 42, false},
		{"json object", `{"hours": 1250.5}`, 1250.5, false},
		{"json with extra fields", `{"hours": 99, "quality": "good"}`, 99, false},
		{"json zero", `{"hours": 0}`, 0, false},
		{"empty", "", 0, true},
		{"garbage", "running", 0, true},
		{"json missing hours", `{"value": 12}`, 0, true},
		{"json malformed", `{"hours": `, 0, true},
		{"negative bare", "-5", 0, true},
		{"negative json", `{"hours": -5}`, 0, true},
		{"nan", "NaN", 0, true},
		{"infinity", "Inf", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseHoursPayload([]byte(tc.payload))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 0.0001)
		})
	}
}
