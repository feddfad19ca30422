package maintenance

import "github.com/plantops/sitewatch/internal/datastore/entities"

// Schema describes the engine's vocabulary for the dashboard UI: urgency
// states in escalation order, email frequencies, hours data sources, and
// maintenance type presets for schedule creation forms.
type Schema struct {
	States           []StateSchema       `json:"states"`
	EmailFrequencies []OptionSchema      `json:"email_frequencies"`
	HoursSources     []OptionSchema      `json:"hours_sources"`
	Presets          []MaintenancePreset `json:"presets"`
}

// StateSchema describes one urgency state for rendering.
type StateSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	// Severity is the escalation rank, 0 = good.
	Severity int `json:"severity"`
}

// OptionSchema is a generic name/label pair for select inputs.
type OptionSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// GetSchema returns the maintenance schema for the UI.
func GetSchema() Schema {
	return Schema{
		States: []StateSchema{
			{Name: StateGood.String(), Label: "Good", Severity: int(StateGood)},
			{Name: StateWarning.String(), Label: "Warning", Severity: int(StateWarning)},
			{Name: StateCritical.String(), Label: "Critical", Severity: int(StateCritical)},
			{Name: StateOverdue.String(), Label: "Overdue", Severity: int(StateOverdue)},
		},
		EmailFrequencies: []OptionSchema{
			{Name: entities.EmailFrequencyDaily, Label: "Daily until completed"},
			{Name: entities.EmailFrequencyOnce, Label: "Once per cycle"},
		},
		HoursSources: []OptionSchema{
			{Name: entities.HoursSourceManual, Label: "Manual entry"},
			{Name: entities.HoursSourceSensor, Label: "Sensor-fed (MQTT)"},
		},
		Presets: DefaultPresets(),
	}
}
