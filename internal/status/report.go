package status

import "time"

// SlotReading is the outcome of one lamp slot read. A failed slot leaves
// Hours nil and Err set; one slot's failure never hides the others.
type SlotReading struct {
	Slot  int
	Hours *float64
	Err   error
}

// SectionReport is the complete result of one poll cycle. The poller hands
// it to the aggregator as a single unit so consumers never observe a
// half-updated section.
type SectionReport struct {
	SectionID string
	At        time.Time

	Setpoint    *float64
	SetpointErr error

	Slots []SlotReading

	DPSOK  *bool
	DPSErr error

	Pressure    *float64
	PressureErr error

	// ConnErr marks a section-level connection fault (dial refused or host
	// unreachable). When set, no register data was collected this cycle.
	ConnErr error

	// AllTimedOut is set when every attempted read ran out its budget; the
	// registry suspends the section after a configured streak of such cycles.
	AllTimedOut bool
}

// Update notifies subscribers that a section's facts changed. Payload is the
// section id only; listeners re-query for a consistent snapshot.
type Update struct {
	SectionID string
}

// Verdict tells the poller what the ingest decided about the section's
// connection lifecycle.
type Verdict struct {
	Suspended bool
	// Lost is set on the ingest that transitioned the section into Suspended.
	Lost bool
	// Recovered is set on the ingest that cleared a standing connection fault.
	Recovered bool
}
