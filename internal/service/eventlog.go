package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hoodwatch/internal/logger"
	"hoodwatch/internal/models"
	"hoodwatch/internal/repository"
)

// EventLogService records fleet lifecycle events and serves filtered reads.
// It also implements poller.Events so connection transitions land in the log.
type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, log: log}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

const appendTimeout = 5 * time.Second

// Record appends an event best-effort; a log write must never stall or fail
// a poll cycle.
func (s *EventLogService) Record(typ, description string, meta map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	err := s.eventRepo.Append(ctx, models.FleetEvent{
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil && s.log != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

// ConnectionLost implements poller.Events.
func (s *EventLogService) ConnectionLost(sectionID, msg string) {
	s.Record("CONNECTION_LOST", "section "+sectionID+" lost connection", map[string]any{
		"section": sectionID,
		"cause":   msg,
	})
}

// Reconnected implements poller.Events.
func (s *EventLogService) Reconnected(sectionID string) {
	s.Record("RECONNECT", "section "+sectionID+" reconnected", map[string]any{
		"section": sectionID,
	})
}

// ReconnectFailed implements poller.Events.
func (s *EventLogService) ReconnectFailed(sectionID, msg string) {
	s.Record("RECONNECT_FAILED", "section "+sectionID+" reconnect attempt failed", map[string]any{
		"section": sectionID,
		"cause":   msg,
	})
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.FleetEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
