package status

import (
	"sort"
	"sync"
	"time"

	"hoodwatch/internal/logger"
	"hoodwatch/internal/models"
)

// Aggregator is the single source of truth for fleet health. It owns every
// StatusEntry, ErrorRecord, working-hours snapshot and connection state for
// the process lifetime. All writes funnel through IngestReport /
// IngestCleaning / the registry methods; readers only copy.
type Aggregator struct {
	log *logger.Logger
	th  Thresholds

	mu       sync.RWMutex
	entries  map[string]map[models.Category]models.StatusEntry
	hours    map[string]map[int]models.WorkingHours
	hoursAt  map[string]time.Time
	conn     map[string]models.ConnState
	connRec  map[string]models.ErrorRecord // at most one per section
	protoRec map[string]models.ErrorRecord // at most one per section
	streak   map[string]int                // consecutive all-timeout cycles

	// notifyMu keeps subscriber delivery ordered across updates.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(Update)
	subOrder []int
	nextSub  int
}

func NewAggregator(log *logger.Logger, th Thresholds) *Aggregator {
	if th.TimeoutSuspendAfter <= 0 {
		th.TimeoutSuspendAfter = DefaultThresholds().TimeoutSuspendAfter
	}
	return &Aggregator{
		log:      log,
		th:       th,
		entries:  make(map[string]map[models.Category]models.StatusEntry),
		hours:    make(map[string]map[int]models.WorkingHours),
		hoursAt:  make(map[string]time.Time),
		conn:     make(map[string]models.ConnState),
		connRec:  make(map[string]models.ErrorRecord),
		protoRec: make(map[string]models.ErrorRecord),
		streak:   make(map[string]int),
		subs:     make(map[int]func(Update)),
	}
}

// RegisterSection makes a section known. Sections without an address stay in
// the distinct disconnected state and never acquire status entries.
func (a *Aggregator) RegisterSection(s models.Section) {
	a.mu.Lock()
	if s.Polled() {
		a.conn[s.ID] = models.ConnActive
	} else {
		a.conn[s.ID] = models.ConnDisconnected
	}
	if _, ok := a.entries[s.ID]; !ok {
		a.entries[s.ID] = make(map[models.Category]models.StatusEntry)
	}
	a.mu.Unlock()
}

// DropSection forgets everything about a section removed from configuration.
func (a *Aggregator) DropSection(id string) {
	a.mu.Lock()
	delete(a.entries, id)
	delete(a.hours, id)
	delete(a.hoursAt, id)
	delete(a.conn, id)
	delete(a.connRec, id)
	delete(a.protoRec, id)
	delete(a.streak, id)
	a.mu.Unlock()
	a.notify(Update{SectionID: id})
}

// IngestReport applies one poll cycle's results as a single atomic update and
// returns the connection verdict the poller acts on.
func (a *Aggregator) IngestReport(rep SectionReport) Verdict {
	a.mu.Lock()
	v := a.ingestLocked(rep)
	a.mu.Unlock()

	a.notify(Update{SectionID: rep.SectionID})
	return v
}

func (a *Aggregator) ingestLocked(rep SectionReport) Verdict {
	id := rep.SectionID

	if rep.ConnErr != nil {
		return a.connectionFaultLocked(id, rep.ConnErr.Error(), rep.At)
	}
	if rep.AllTimedOut {
		// A failed probe on an already-suspended section refreshes the
		// standing record rather than restarting the streak.
		if a.conn[id] == models.ConnSuspended {
			return a.connectionFaultLocked(id, "device not responding: "+timeoutMessage(rep), rep.At)
		}
		a.streak[id]++
		if a.streak[id] >= a.th.TimeoutSuspendAfter {
			return a.connectionFaultLocked(id, "device not responding: "+timeoutMessage(rep), rep.At)
		}
		// Transient so far: keep stale entries, stay on schedule.
		return Verdict{}
	}

	v := a.clearConnectionFaultLocked(id, rep.At)
	a.applyReadingsLocked(rep)
	return v
}

// applyReadingsLocked overwrites the section's entries, hours and protocol
// record from a cycle that reached the device.
func (a *Aggregator) applyReadingsLocked(rep SectionReport) {
	id := rep.SectionID
	if _, ok := a.entries[id]; !ok {
		a.entries[id] = make(map[models.Category]models.StatusEntry)
	}

	hours := make(map[int]models.WorkingHours, models.MaxLampSlots)
	for _, sl := range rep.Slots {
		wh := models.WorkingHours{Slot: sl.Slot, CurrentHours: sl.Hours}
		if rep.Setpoint != nil {
			wh.MaxHours = rep.Setpoint
		}
		hours[sl.Slot] = wh
	}
	a.hours[id] = hours
	a.hoursAt[id] = rep.At

	lampLevel, lampMsg := a.th.classifyLamps(hours)
	a.setEntryLocked(id, models.CategoryLamp, lampLevel, lampMsg, rep.At)

	if rep.DPSOK != nil {
		lvl, msg := a.th.classifyDPS(*rep.DPSOK)
		a.setEntryLocked(id, models.CategoryDPS, lvl, msg, rep.At)
	}
	if rep.Pressure != nil {
		lvl, msg := a.th.classifyPressure(*rep.Pressure)
		a.setEntryLocked(id, models.CategoryPressure, lvl, msg, rep.At)
	}

	if msg, degraded := protocolFaults(rep); degraded {
		rec, seen := a.protoRec[id]
		if !seen {
			rec = models.ErrorRecord{SectionID: id, Kind: models.ErrorKindProtocol, FirstSeen: rep.At}
		}
		rec.Message = msg
		rec.LastSeen = rep.At
		a.protoRec[id] = rec
		if a.log != nil {
			a.log.Warnw("section_protocol_degraded", "section", id, "msg", msg)
		}
	} else {
		delete(a.protoRec, id)
	}
}

// IngestCleaning refreshes the cleaning category from the section's schedule.
func (a *Aggregator) IngestCleaning(s models.Section, now time.Time) {
	lvl, msg, tracked := a.th.classifyCleaning(s, now)
	if !tracked {
		return
	}
	a.mu.Lock()
	if _, ok := a.entries[s.ID]; !ok {
		a.entries[s.ID] = make(map[models.Category]models.StatusEntry)
	}
	a.setEntryLocked(s.ID, models.CategoryCleaning, lvl, msg, now)
	a.mu.Unlock()
	a.notify(Update{SectionID: s.ID})
}

func (a *Aggregator) setEntryLocked(id string, cat models.Category, lvl models.Level, msg string, at time.Time) {
	a.entries[id][cat] = models.StatusEntry{
		SectionID:  id,
		Category:   cat,
		Level:      lvl,
		Message:    msg,
		ObservedAt: at,
	}
}

// SectionStatusSummary returns every section currently reporting a non-good
// level in the category, ordered by section id. Empty means fully healthy.
func (a *Aggregator) SectionStatusSummary(cat models.Category) []models.StatusEntry {
	a.mu.RLock()
	out := make([]models.StatusEntry, 0)
	for _, cats := range a.entries {
		if e, ok := cats[cat]; ok && e.Level != models.LevelGood {
			out = append(out, e)
		}
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out
}

// Counts recomputes global error/warning totals from the entries themselves;
// nothing is incrementally tracked, so overwrites can never double-count.
func (a *Aggregator) Counts() (errs, warns int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, cats := range a.entries {
		for _, e := range cats {
			switch e.Level {
			case models.LevelError:
				errs++
			case models.LevelWarning:
				warns++
			}
		}
	}
	return errs, warns
}

// Overview is the global summary consumers render at the top of the screen.
type Overview struct {
	Errors    int                     `json:"errors"`
	Warnings  int                     `json:"warnings"`
	ByCat     map[models.Category]int `json:"non_good_by_category"`
	Suspended []string                `json:"suspended_sections,omitempty"`
}

func (a *Aggregator) Overview() Overview {
	ov := Overview{ByCat: make(map[models.Category]int)}
	a.mu.RLock()
	for _, cats := range a.entries {
		for _, e := range cats {
			switch e.Level {
			case models.LevelError:
				ov.Errors++
			case models.LevelWarning:
				ov.Warnings++
			default:
				continue
			}
			ov.ByCat[e.Category]++
		}
	}
	for id, st := range a.conn {
		if st == models.ConnSuspended {
			ov.Suspended = append(ov.Suspended, id)
		}
	}
	a.mu.RUnlock()
	sort.Strings(ov.Suspended)
	return ov
}

// ErrorsForSection returns the section's standing faults: the stored
// connection/protocol records plus threshold records derived from entries at
// error level. Deriving keeps threshold faults from ever drifting out of
// sync with the entries they restate.
func (a *Aggregator) ErrorsForSection(id string) []models.ErrorRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.ErrorRecord, 0, 2)
	if rec, ok := a.connRec[id]; ok {
		out = append(out, rec)
	}
	if rec, ok := a.protoRec[id]; ok {
		out = append(out, rec)
	}
	cats := a.entries[id]
	for _, cat := range models.Categories() {
		if e, ok := cats[cat]; ok && e.Level == models.LevelError {
			out = append(out, models.ErrorRecord{
				SectionID: id,
				Kind:      models.ErrorKindThreshold,
				Message:   e.Message,
				FirstSeen: e.ObservedAt,
				LastSeen:  e.ObservedAt,
			})
		}
	}
	return out
}

// WorkingHoursFor returns the latest lamp-life snapshot per slot, plus the
// time it was observed. Unknown readings stay nil.
func (a *Aggregator) WorkingHoursFor(id string) (map[int]models.WorkingHours, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	src, ok := a.hours[id]
	if !ok {
		return map[int]models.WorkingHours{}, time.Time{}
	}
	out := make(map[int]models.WorkingHours, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, a.hoursAt[id]
}

// ConnStateOf returns the section's connection lifecycle state.
func (a *Aggregator) ConnStateOf(id string) models.ConnState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.conn[id]
	if !ok {
		return models.ConnDisconnected
	}
	return st
}

// Subscribe registers a listener called synchronously, in registration
// order, after every mutation. The returned function unsubscribes.
func (a *Aggregator) Subscribe(fn func(Update)) func() {
	a.subsMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.subOrder = append(a.subOrder, id)
	a.subsMu.Unlock()

	return func() {
		a.subsMu.Lock()
		delete(a.subs, id)
		for i, sid := range a.subOrder {
			if sid == id {
				a.subOrder = append(a.subOrder[:i], a.subOrder[i+1:]...)
				break
			}
		}
		a.subsMu.Unlock()
	}
}

func (a *Aggregator) notify(u Update) {
	a.subsMu.Lock()
	fns := make([]func(Update), 0, len(a.subOrder))
	for _, id := range a.subOrder {
		if fn, ok := a.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	a.subsMu.Unlock()

	// Delivery happens outside the state lock so listeners can query, and
	// under notifyMu so updates arrive in order.
	a.notifyMu.Lock()
	for _, fn := range fns {
		fn(u)
	}
	a.notifyMu.Unlock()
}

func protocolFaults(rep SectionReport) (string, bool) {
	if rep.SetpointErr != nil {
		return "setpoint read failed: " + rep.SetpointErr.Error(), true
	}
	for _, sl := range rep.Slots {
		if sl.Err != nil {
			return "lamp slot read failed: " + sl.Err.Error(), true
		}
	}
	if rep.DPSErr != nil {
		return "dps read failed: " + rep.DPSErr.Error(), true
	}
	if rep.PressureErr != nil {
		return "pressure read failed: " + rep.PressureErr.Error(), true
	}
	return "", false
}

func timeoutMessage(rep SectionReport) string {
	if rep.SetpointErr != nil {
		return rep.SetpointErr.Error()
	}
	for _, sl := range rep.Slots {
		if sl.Err != nil {
			return sl.Err.Error()
		}
	}
	return "all reads timed out"
}
