package maintenance

// MaintenancePreset is a built-in interval/threshold starting point the UI
// offers when enrolling equipment for a maintenance type. Values follow
// common industrial practice; operators adjust per machine.
type MaintenancePreset struct {
	Type                   string  `json:"type"`
	Label                  string  `json:"label"`
	IntervalHours          float64 `json:"interval_hours"`
	WarningThresholdHours  float64 `json:"warning_threshold_hours"`
	CriticalThresholdHours float64 `json:"critical_threshold_hours"`
}

// DefaultPresets returns the built-in maintenance type presets.
func DefaultPresets() []MaintenancePreset {
	return []MaintenancePreset{
		{
			Type:                   "oil_change",
			Label:                  "Oil Change",
			IntervalHours:          3000,
			WarningThresholdHours:  150,
			CriticalThresholdHours: 50,
		},
		{
			Type:                   "filter_replacement",
			Label:                  "Filter Replacement",
			IntervalHours:          1000,
			WarningThresholdHours:  100,
			CriticalThresholdHours: 25,
		},
		{
			Type:                   "lubrication",
			Label:                  "Lubrication",
			IntervalHours:          250,
			WarningThresholdHours:  50,
			CriticalThresholdHours: 10,
		},
		{
			Type:                   "inspection",
			Label:                  "General Inspection",
			IntervalHours:          500,
			WarningThresholdHours:  50,
			CriticalThresholdHours: 10,
		},
		{
			Type:                   "overhaul",
			Label:                  "Major Overhaul",
			IntervalHours:          20000,
			WarningThresholdHours:  1000,
			CriticalThresholdHours: 250,
		},
	}
}
