package service

import (
	"fmt"
	"time"

	"hoodwatch/internal/models"
	"hoodwatch/internal/status"
)

// StatusService is the read-only query facade over the aggregator.
type StatusService struct {
	agg *status.Aggregator
}

func NewStatusService(agg *status.Aggregator) *StatusService {
	return &StatusService{agg: agg}
}

// Summary returns every section reporting a non-good level in the category.
func (s *StatusService) Summary(cat models.Category) ([]models.StatusEntry, error) {
	if !cat.Valid() {
		return nil, fmt.Errorf("unknown category %q", cat)
	}
	return s.agg.SectionStatusSummary(cat), nil
}

// Overview returns the global health summary.
func (s *StatusService) Overview() status.Overview {
	return s.agg.Overview()
}

// ErrorsForSection returns a section's standing faults.
func (s *StatusService) ErrorsForSection(sectionID string) []models.ErrorRecord {
	return s.agg.ErrorsForSection(sectionID)
}

// WorkingHours returns the latest lamp-life snapshot for a section and the
// time it was observed.
func (s *StatusService) WorkingHours(sectionID string) (map[int]models.WorkingHours, time.Time) {
	return s.agg.WorkingHoursFor(sectionID)
}

// ConnState returns the section's connection lifecycle state.
func (s *StatusService) ConnState(sectionID string) models.ConnState {
	return s.agg.ConnStateOf(sectionID)
}

// Subscribe registers a listener for status changes.
func (s *StatusService) Subscribe(fn func(status.Update)) func() {
	return s.agg.Subscribe(fn)
}
