package maintenance

import (
	"sort"

	"github.com/plantops/sitewatch/internal/datastore/entities"
)

// DueItem is one schedule needing attention, shaped for the dashboard.
type DueItem struct {
	EquipmentID     uint         `json:"equipment_id"`
	EquipmentName   string       `json:"equipment_name"`
	SiteID          uint         `json:"site_id"`
	ScheduleID      uint         `json:"schedule_id"`
	MaintenanceType string       `json:"maintenance_type"`
	State           UrgencyState `json:"state"`
	DistanceHours   float64      `json:"distance_hours"`
	CurrentHours    float64      `json:"current_hours"`
	NextDueHours    float64      `json:"next_due_hours"`
}

// Summary counts schedules per urgency state. Good items are excluded from
// the due list but still counted here.
type Summary struct {
	Total    int `json:"total"`
	Good     int `json:"good"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Overdue  int `json:"overdue"`
}

// BuildDueList classifies the given active (equipment, schedule) pairs and
// returns the items in Warning, Critical, or Overdue state, most urgent
// first: Overdue sorted by descending distance (most overdue on top), then
// Critical and Warning each sorted by ascending distance (soonest due first).
func BuildDueList(pairs []entities.MaintenanceSchedule) []DueItem {
	items := make([]DueItem, 0, len(pairs))
	for i := range pairs {
		schedule := &pairs[i]
		status := ClassifySchedule(&schedule.Equipment, schedule)
		if status.State == StateGood {
			continue
		}
		items = append(items, DueItem{
			EquipmentID:     schedule.EquipmentID,
			EquipmentName:   schedule.Equipment.Name,
			SiteID:          schedule.Equipment.SiteID,
			ScheduleID:      schedule.ID,
			MaintenanceType: schedule.MaintenanceType,
			State:           status.State,
			DistanceHours:   status.DistanceHours,
			CurrentHours:    schedule.Equipment.CurrentRunningHours,
			NextDueHours:    schedule.NextMaintenanceHours,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].State != items[j].State {
			return items[i].State > items[j].State
		}
		if items[i].State == StateOverdue {
			// Most overdue first
			return items[i].DistanceHours > items[j].DistanceHours
		}
		// Soonest due first
		return items[i].DistanceHours < items[j].DistanceHours
	})
	return items
}

// Summarize counts all pairs by urgency state, including Good.
func Summarize(pairs []entities.MaintenanceSchedule) Summary {
	summary := Summary{Total: len(pairs)}
	for i := range pairs {
		schedule := &pairs[i]
		switch ClassifySchedule(&schedule.Equipment, schedule).State {
		case StateGood:
			summary.Good++
		case StateWarning:
			summary.Warning++
		case StateCritical:
			summary.Critical++
		case StateOverdue:
			summary.Overdue++
		}
	}
	return summary
}
