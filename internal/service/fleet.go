package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hoodwatch/internal/logger"
	"hoodwatch/internal/models"
	"hoodwatch/internal/poller"
	"hoodwatch/internal/repository"
	"hoodwatch/internal/status"
)

// FleetService keeps one SectionPoller per configured section and reconciles
// the running set against the configuration store.
type FleetService struct {
	sections repository.SectionRepo
	reader   poller.TelemetryReader
	agg      *status.Aggregator
	events   *EventLogService
	log      *logger.Logger
	cfg      poller.Config

	mu      sync.Mutex
	pollers map[string]*poller.SectionPoller
	known   map[string]models.Section
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewFleetService(sections repository.SectionRepo, reader poller.TelemetryReader, agg *status.Aggregator, events *EventLogService, log *logger.Logger, cfg poller.Config) *FleetService {
	return &FleetService{
		sections: sections,
		reader:   reader,
		agg:      agg,
		events:   events,
		log:      log,
		cfg:      cfg,
		pollers:  make(map[string]*poller.SectionPoller),
		known:    make(map[string]models.Section),
	}
}

var errFleetNotStarted = errors.New("fleet is not started")

// Start loads the configured fleet and launches one poller per section.
func (f *FleetService) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return errors.New("fleet already started")
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	return f.syncLocked()
}

// Resync reconciles running pollers against the configuration store:
// added sections start polling, removed ones stop, changed ones restart.
func (f *FleetService) Resync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return errFleetNotStarted
	}
	if err := f.syncLocked(); err != nil {
		return err
	}
	f.events.Record("SECTION_RESYNC", "fleet resynced from configuration", nil)
	return nil
}

func (f *FleetService) syncLocked() error {
	listCtx, cancel := context.WithTimeout(f.ctx, 10*time.Second)
	defer cancel()
	sections, err := f.sections.List(listCtx)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}

	want := make(map[string]models.Section, len(sections))
	for _, s := range sections {
		want[s.ID] = s
	}

	for id := range f.pollers {
		prev := f.known[id]
		next, keep := want[id]
		if keep && prev.Address == next.Address && prev.CleaningIntervalDays == next.CleaningIntervalDays {
			continue
		}
		f.pollers[id].Stop()
		delete(f.pollers, id)
		delete(f.known, id)
		if !keep {
			f.agg.DropSection(id)
		}
	}

	for id, s := range want {
		f.known[id] = s
		if _, running := f.pollers[id]; running {
			continue
		}
		f.agg.RegisterSection(s)
		p := poller.NewSectionPoller(s, f.reader, f.agg, f.events, f.log, f.cfg)
		p.Start(f.ctx)
		f.pollers[id] = p
	}
	return nil
}

// ReconnectSection requests one immediate poll attempt for a suspended
// section, optionally with a corrected address. Fire-and-forget: the result
// is observable through the status queries.
func (f *FleetService) ReconnectSection(sectionID, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return errFleetNotStarted
	}
	p, ok := f.pollers[sectionID]
	if !ok {
		s, known := f.known[sectionID]
		if !known {
			return fmt.Errorf("reconnect %q: %w", sectionID, repository.ErrSectionNotFound)
		}
		// Section existed without an address; a reconnect with one makes it
		// pollable.
		if address == "" {
			return fmt.Errorf("reconnect %q: section has no address", sectionID)
		}
		s.Address = address
		f.known[sectionID] = s
		f.agg.RegisterSection(s)
		p = poller.NewSectionPoller(s, f.reader, f.agg, f.events, f.log, f.cfg)
		p.Start(f.ctx)
		f.pollers[sectionID] = p
	}

	if address != "" {
		persistCtx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
		defer cancel()
		if err := f.sections.UpdateAddress(persistCtx, sectionID, address); err != nil {
			f.log.Warnw("reconnect_address_persist_failed", "section", sectionID, "err", err)
		}
	}

	p.Reconnect(address)
	return nil
}

// MarkCleaned records a completed hood cleaning and refreshes the cleaning
// category immediately, without waiting for the next cycle.
func (f *FleetService) MarkCleaned(ctx context.Context, sectionID string) error {
	now := time.Now().UTC()
	if err := f.sections.MarkCleaned(ctx, sectionID, now); err != nil {
		return err
	}
	s, err := f.sections.Get(ctx, sectionID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.known[sectionID] = s
	f.mu.Unlock()

	f.agg.IngestCleaning(s, now)
	f.events.Record("SECTION_CLEANED", "section "+sectionID+" marked cleaned", map[string]any{"section": sectionID})
	return nil
}

// Sections lists the configured fleet.
func (f *FleetService) Sections(ctx context.Context) ([]models.Section, error) {
	return f.sections.List(ctx)
}

// Stop cancels every poller and waits for their loops to exit.
func (f *FleetService) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return
	}
	f.cancel()
	for id, p := range f.pollers {
		p.Stop()
		delete(f.pollers, id)
	}
	f.cancel = nil
}
