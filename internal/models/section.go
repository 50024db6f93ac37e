package models

import "time"

// MaxLampSlots is the number of UV lamp positions a hood section can carry.
const MaxLampSlots = 4

// Section is one monitored hood zone. Address is the Modbus TCP endpoint of
// the section controller; an empty address means the section is configured
// but never polled.
type Section struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Address              string     `json:"address,omitempty"`
	CleaningIntervalDays int        `json:"cleaning_interval_days"`
	LastCleanedAt        *time.Time `json:"last_cleaned_at,omitempty"`
}

// Polled reports whether the section has a network endpoint to poll.
func (s Section) Polled() bool {
	return s.Address != ""
}

// WorkingHours is the derived lamp-life fact for one lamp slot. Nil pointers
// mean the reading is unknown (never a defaulted zero).
type WorkingHours struct {
	Slot         int      `json:"slot"`
	CurrentHours *float64 `json:"current_hours,omitempty"`
	MaxHours     *float64 `json:"max_hours,omitempty"`
}

// Remaining returns max(0, MaxHours-CurrentHours) and true when both inputs
// are known, (0, false) otherwise.
func (w WorkingHours) Remaining() (float64, bool) {
	if w.CurrentHours == nil || w.MaxHours == nil {
		return 0, false
	}
	rem := *w.MaxHours - *w.CurrentHours
	if rem < 0 {
		rem = 0
	}
	return rem, true
}
