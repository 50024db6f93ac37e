package service

import (
	"context"
	"time"

	"hoodwatch/internal/logger"
	"hoodwatch/internal/models"
	"hoodwatch/internal/poller"
	"hoodwatch/internal/repository"
	"hoodwatch/internal/status"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Fleet owns the poller lifecycles: startup, resync against configuration,
// manual reconnects and teardown.
type Fleet interface {
	Start(ctx context.Context) error
	Resync(ctx context.Context) error
	ReconnectSection(sectionID, address string) error
	MarkCleaned(ctx context.Context, sectionID string) error
	Sections(ctx context.Context) ([]models.Section, error)
	Stop()
}

// Status exposes read-only health queries over the aggregator.
type Status interface {
	Summary(cat models.Category) ([]models.StatusEntry, error)
	Overview() status.Overview
	ErrorsForSection(sectionID string) []models.ErrorRecord
	WorkingHours(sectionID string) (map[int]models.WorkingHours, time.Time)
	ConnState(sectionID string) models.ConnState
	Subscribe(fn func(status.Update)) func()
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.FleetEvent, error)
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CONNECTION_LOST", "RECONNECT", ...
}

// Service aggregates all sub-services.
type Service struct {
	Fleet
	Status
	EventLog
	Authorization
}

// Deps carries everything the services are wired from.
type Deps struct {
	Repos      *repository.Repository
	Aggregator *status.Aggregator
	Reader     poller.TelemetryReader
	Log        *logger.Logger
	PollerCfg  poller.Config
	AuthCfg    AuthConfig
}

func NewService(d Deps) *Service {
	events := NewEventLogService(d.Repos.Events, d.Log)
	return &Service{
		Fleet:         NewFleetService(d.Repos.Sections, d.Reader, d.Aggregator, events, d.Log, d.PollerCfg),
		Status:        NewStatusService(d.Aggregator),
		EventLog:      events,
		Authorization: NewAuthService(d.Repos.Auth, d.AuthCfg),
	}
}
