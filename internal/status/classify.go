package status

import (
	"fmt"
	"time"

	"hoodwatch/internal/models"
)

// Thresholds are the domain limits classification runs against. Values come
// from configuration; DefaultThresholds documents the shipped defaults.
type Thresholds struct {
	// LampWarnFraction: warning when a lamp's remaining life fraction drops
	// below this value.
	LampWarnFraction float64
	// PressureMaxPa: filter pressure at or above this is an error.
	PressureMaxPa float64
	// PressureWarnFraction: warning at this fraction of PressureMaxPa.
	PressureWarnFraction float64
	// CleaningWarnFraction: warning once this fraction of the cleaning
	// interval has elapsed.
	CleaningWarnFraction float64
	// TimeoutSuspendAfter: consecutive all-timeout cycles before the section
	// is suspended.
	TimeoutSuspendAfter int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LampWarnFraction:     0.5,
		PressureMaxPa:        250,
		PressureWarnFraction: 0.8,
		CleaningWarnFraction: 0.8,
		TimeoutSuspendAfter:  3,
	}
}

// classifyLamps derives the lamp category level from the slots that produced
// a usable (current, max) pair. Slots with unknown readings contribute
// nothing: unknown is never treated as zero.
func (t Thresholds) classifyLamps(hours map[int]models.WorkingHours) (models.Level, string) {
	var (
		known    int
		worst    = models.LevelGood
		worstMsg = "all lamps within service life"
	)
	for slot := 1; slot <= models.MaxLampSlots; slot++ {
		wh, ok := hours[slot]
		if !ok {
			continue
		}
		rem, ok := wh.Remaining()
		if !ok {
			continue
		}
		known++
		if rem <= 0 {
			return models.LevelError, fmt.Sprintf("lamp %d exceeded its life-hours setpoint", slot)
		}
		if worst == models.LevelGood && *wh.MaxHours > 0 && rem / *wh.MaxHours < t.LampWarnFraction {
			worst = models.LevelWarning
			worstMsg = fmt.Sprintf("lamp %d below %d%% remaining life", slot, int(t.LampWarnFraction*100))
		}
	}
	if known == 0 {
		return models.LevelWarning, "no lamp readings available"
	}
	return worst, worstMsg
}

// classifyPressure maps a pascals reading against the configured maximum.
func (t Thresholds) classifyPressure(pa float64) (models.Level, string) {
	switch {
	case pa >= t.PressureMaxPa:
		return models.LevelError, fmt.Sprintf("filter pressure %.0f Pa at or above limit %.0f Pa", pa, t.PressureMaxPa)
	case pa >= t.PressureWarnFraction*t.PressureMaxPa:
		return models.LevelWarning, fmt.Sprintf("filter pressure %.0f Pa approaching limit %.0f Pa", pa, t.PressureMaxPa)
	default:
		return models.LevelGood, fmt.Sprintf("filter pressure %.0f Pa", pa)
	}
}

// classifyDPS maps the switch state; a tripped switch is always an error.
func (t Thresholds) classifyDPS(ok bool) (models.Level, string) {
	if !ok {
		return models.LevelError, "differential pressure switch tripped"
	}
	return models.LevelGood, "differential pressure switch closed"
}

// classifyCleaning derives the cleaning category from the section's schedule.
func (t Thresholds) classifyCleaning(s models.Section, now time.Time) (models.Level, string, bool) {
	if s.CleaningIntervalDays <= 0 {
		return models.LevelGood, "", false
	}
	if s.LastCleanedAt == nil {
		return models.LevelWarning, "no cleaning on record", true
	}
	elapsed := now.Sub(*s.LastCleanedAt).Hours() / 24
	interval := float64(s.CleaningIntervalDays)
	switch {
	case elapsed > interval:
		return models.LevelError, fmt.Sprintf("cleaning overdue by %.0f days", elapsed-interval), true
	case elapsed >= t.CleaningWarnFraction*interval:
		return models.LevelWarning, fmt.Sprintf("cleaning due in %.0f days", interval-elapsed), true
	default:
		return models.LevelGood, fmt.Sprintf("next cleaning in %.0f days", interval-elapsed), true
	}
}
