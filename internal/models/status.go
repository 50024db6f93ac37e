package models

import "time"

// Category is one independent health dimension tracked per section.
type Category string

const (
	CategoryDPS      Category = "dps"
	CategoryPressure Category = "pressure"
	CategoryLamp     Category = "lamp"
	CategoryCleaning Category = "cleaning"
)

// Valid reports whether the category is one of the tracked dimensions.
func (c Category) Valid() bool {
	switch c {
	case CategoryDPS, CategoryPressure, CategoryLamp, CategoryCleaning:
		return true
	default:
		return false
	}
}

// Categories lists all tracked dimensions in a stable order.
func Categories() []Category {
	return []Category{CategoryDPS, CategoryPressure, CategoryLamp, CategoryCleaning}
}

// Level is the classified health of one (section, category) pair.
type Level string

const (
	LevelGood    Level = "good"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ConnState is the connection lifecycle of a section.
type ConnState string

const (
	// ConnDisconnected: no address configured, the section is never polled.
	ConnDisconnected ConnState = "disconnected"
	// ConnActive: the section is on the normal polling schedule.
	ConnActive ConnState = "active"
	// ConnSuspended: polling halted after a persistent connection failure,
	// pending an explicit reconnect.
	ConnSuspended ConnState = "suspended"
)

// StatusEntry is a classified health fact for one (section, category) pair.
// Entries are overwritten in place; ObservedAt carries the time of the
// reading the entry was derived from.
type StatusEntry struct {
	SectionID  string    `json:"section_id"`
	Category   Category  `json:"category"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	ObservedAt time.Time `json:"observed_at"`
}

// ErrorKind classifies a standing fault.
type ErrorKind string

const (
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindThreshold  ErrorKind = "threshold"
)

// ErrorRecord is a standing fault for a section. At most one connection-kind
// record exists per section at a time.
type ErrorRecord struct {
	SectionID string    `json:"section_id"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
