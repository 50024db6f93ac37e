package poller

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"hoodwatch/internal/logger"
	"hoodwatch/internal/modbus"
	"hoodwatch/internal/models"
	"hoodwatch/internal/status"
)

// TelemetryReader is the per-device read surface the poller drives.
type TelemetryReader interface {
	ReadLifeSetpoint(ctx context.Context, addr string) (float64, error)
	ReadLampHours(ctx context.Context, addr string, slot int) (float64, error)
	ReadDPS(ctx context.Context, addr string) (bool, error)
	ReadFilterPressure(ctx context.Context, addr string) (float64, error)
}

// Sink receives whole-cycle results. Implemented by the status aggregator.
type Sink interface {
	IngestReport(rep status.SectionReport) status.Verdict
	IngestCleaning(s models.Section, now time.Time)
}

// Events receives connection lifecycle transitions for the fleet log.
type Events interface {
	ConnectionLost(sectionID, msg string)
	Reconnected(sectionID string)
	ReconnectFailed(sectionID, msg string)
}

// Config tunes the per-section schedule.
type Config struct {
	// Interval between cycles. Defaults to a minute.
	Interval time.Duration
	// Jitter bounds the random initial delay that keeps a fleet of sections
	// from all dialing out at process start.
	Jitter time.Duration
}

const (
	DefaultInterval = 60 * time.Second
	DefaultJitter   = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Jitter <= 0 {
		c.Jitter = DefaultJitter
	}
	return c
}

// SectionPoller owns the polling loop of exactly one section. Cycles for
// different sections run concurrently; a section's next cycle never starts
// while its previous one is outstanding.
type SectionPoller struct {
	reader TelemetryReader
	sink   Sink
	events Events
	log    *logger.Logger
	cfg    Config

	mu      sync.Mutex // guards section (address can change on reconnect)
	section models.Section

	inFlight  atomic.Bool
	suspended atomic.Bool

	reconnectCh chan string
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewSectionPoller(s models.Section, reader TelemetryReader, sink Sink, events Events, log *logger.Logger, cfg Config) *SectionPoller {
	return &SectionPoller{
		reader:      reader,
		sink:        sink,
		events:      events,
		log:         log,
		cfg:         cfg.withDefaults(),
		section:     s,
		reconnectCh: make(chan string, 1),
		done:        make(chan struct{}),
	}
}

// Start launches the loop. The returned poller is stopped with Stop; an
// in-flight network call is never aborted, but its result is discarded once
// the context is gone.
func (p *SectionPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Stop prevents any further ticks and waits for the loop to exit.
func (p *SectionPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

// Reconnect queues a manual reconnect probe with a (possibly new) address.
// Fire-and-forget: the outcome lands in the aggregator. If a cycle is in
// flight the probe runs after it completes; duplicate requests coalesce.
func (p *SectionPoller) Reconnect(addr string) {
	select {
	case p.reconnectCh <- addr:
	default:
	}
}

// Suspended reports the poller's view of its own suspension.
func (p *SectionPoller) Suspended() bool { return p.suspended.Load() }

func (p *SectionPoller) run(ctx context.Context) {
	defer close(p.done)

	if p.snapshot().Polled() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(rand.Int63n(int64(p.cfg.Jitter)))):
		}
		p.cycle(ctx, false)
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case addr := <-p.reconnectCh:
			if p.log != nil {
				p.log.Infow("section_reconnect_probe", "section", p.snapshot().ID, "addr", addr)
			}
			p.setAddress(addr)
			p.cycle(ctx, true)
		case <-ticker.C:
			if !p.snapshot().Polled() || p.suspended.Load() {
				continue
			}
			p.cycle(ctx, false)
		}
	}
}

// cycle performs one poll and pushes the result atomically. probe marks a
// manual reconnect attempt, which runs even while suspended.
func (p *SectionPoller) cycle(ctx context.Context, probe bool) {
	if !p.inFlight.CompareAndSwap(false, true) {
		// Previous cycle still outstanding; skip this tick to bound the
		// number of in-flight connections per section to one.
		if p.log != nil {
			p.log.Debugw("section_cycle_skipped", "section", p.snapshot().ID)
		}
		return
	}
	defer p.inFlight.Store(false)

	s := p.snapshot()
	if !s.Polled() {
		return
	}

	rep := p.collect(ctx, s)

	// A result that lands after cancellation is dropped without touching
	// shared state.
	select {
	case <-ctx.Done():
		return
	default:
	}

	v := p.sink.IngestReport(rep)
	p.suspended.Store(v.Suspended)

	switch {
	case v.Lost:
		if p.events != nil {
			p.events.ConnectionLost(s.ID, faultMessage(rep))
		}
	case v.Recovered:
		if p.events != nil {
			p.events.Reconnected(s.ID)
		}
	case probe && v.Suspended:
		if p.events != nil {
			p.events.ReconnectFailed(s.ID, faultMessage(rep))
		}
	}

	if !v.Suspended {
		p.sink.IngestCleaning(s, rep.At)
	}
}

// collect runs the cycle's reads: setpoint first (the lamp-life computation
// depends on it), then lamp slots and the dps/pressure signals concurrently.
func (p *SectionPoller) collect(ctx context.Context, s models.Section) status.SectionReport {
	rep := status.SectionReport{SectionID: s.ID, At: time.Now().UTC()}

	sp, err := p.reader.ReadLifeSetpoint(ctx, s.Address)
	if err != nil {
		if modbus.IsConnection(err) {
			rep.ConnErr = err
			return rep
		}
		rep.SetpointErr = err
	} else {
		rep.Setpoint = &sp
	}

	rep.Slots = make([]status.SlotReading, models.MaxLampSlots)
	var wg sync.WaitGroup
	for i := 0; i < models.MaxLampSlots; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot := i + 1
			h, err := p.reader.ReadLampHours(ctx, s.Address, slot)
			if err != nil {
				rep.Slots[i] = status.SlotReading{Slot: slot, Err: err}
				return
			}
			rep.Slots[i] = status.SlotReading{Slot: slot, Hours: &h}
		}(i)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		ok, err := p.reader.ReadDPS(ctx, s.Address)
		if err != nil {
			rep.DPSErr = err
			return
		}
		rep.DPSOK = &ok
	}()
	go func() {
		defer wg.Done()
		pa, err := p.reader.ReadFilterPressure(ctx, s.Address)
		if err != nil {
			rep.PressureErr = err
			return
		}
		rep.Pressure = &pa
	}()
	wg.Wait()

	// A connection-class failure on any read is a section-level fault.
	for _, err := range cycleErrors(rep) {
		if modbus.IsConnection(err) {
			rep.ConnErr = err
			return rep
		}
	}
	rep.AllTimedOut = allTimedOut(rep)
	return rep
}

func (p *SectionPoller) snapshot() models.Section {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.section
}

func (p *SectionPoller) setAddress(addr string) {
	if addr == "" {
		return
	}
	p.mu.Lock()
	p.section.Address = addr
	p.mu.Unlock()
}

func cycleErrors(rep status.SectionReport) []error {
	errs := make([]error, 0, models.MaxLampSlots+3)
	if rep.SetpointErr != nil {
		errs = append(errs, rep.SetpointErr)
	}
	for _, sl := range rep.Slots {
		if sl.Err != nil {
			errs = append(errs, sl.Err)
		}
	}
	if rep.DPSErr != nil {
		errs = append(errs, rep.DPSErr)
	}
	if rep.PressureErr != nil {
		errs = append(errs, rep.PressureErr)
	}
	return errs
}

// allTimedOut reports whether every read of the cycle failed on timeout.
func allTimedOut(rep status.SectionReport) bool {
	errs := cycleErrors(rep)
	if rep.Setpoint != nil || rep.DPSOK != nil || rep.Pressure != nil {
		return false
	}
	for _, sl := range rep.Slots {
		if sl.Hours != nil {
			return false
		}
	}
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !modbus.IsTimeout(err) {
			return false
		}
	}
	return true
}

func faultMessage(rep status.SectionReport) string {
	if rep.ConnErr != nil {
		return rep.ConnErr.Error()
	}
	for _, err := range cycleErrors(rep) {
		return err.Error()
	}
	return "device not responding"
}
