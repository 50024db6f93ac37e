package models

import "time"

// FleetEvent is a single log entry.
type FleetEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTION_LOST | RECONNECT | RECONNECT_FAILED | THRESHOLD | SECTION_RESYNC | SECTION_CLEANED
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// User is an operator account for the kiosk surface.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never exposed
}
