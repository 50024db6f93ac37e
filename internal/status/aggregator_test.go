package status

import (
	"errors"
	"testing"
	"time"

	"hoodwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

func newTestAggregator() *Aggregator {
	return NewAggregator(nil, DefaultThresholds())
}

// goodReport builds a healthy cycle result: 4 lamps well within life,
// closed DPS, low pressure.
func goodReport(id string, at time.Time) SectionReport {
	rep := SectionReport{
		SectionID: id,
		At:        at,
		Setpoint:  fptr(8000),
		DPSOK:     bptr(true),
		Pressure:  fptr(100),
	}
	for slot := 1; slot <= models.MaxLampSlots; slot++ {
		rep.Slots = append(rep.Slots, SlotReading{Slot: slot, Hours: fptr(1000)})
	}
	return rep
}

func TestAggregator_HealthySectionAbsentFromSummaries(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S1", Address: "10.0.0.1:502"})

	v := a.IngestReport(goodReport("S1", time.Now().UTC()))
	assert.False(t, v.Suspended)

	for _, cat := range models.Categories() {
		assert.Empty(t, a.SectionStatusSummary(cat), "category %s", cat)
	}
	errs, warns := a.Counts()
	assert.Zero(t, errs)
	assert.Zero(t, warns)
	assert.Equal(t, models.ConnActive, a.ConnStateOf("S1"))
}

func TestAggregator_ExpiredLampIsError(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	rep := goodReport("S2", at)
	rep.Slots[1] = SlotReading{Slot: 2, Hours: fptr(9000)} // over the 8000 setpoint
	a.IngestReport(rep)

	summary := a.SectionStatusSummary(models.CategoryLamp)
	require.Len(t, summary, 1)
	assert.Equal(t, "S2", summary[0].SectionID)
	assert.Equal(t, models.LevelError, summary[0].Level)
	assert.Equal(t, at, summary[0].ObservedAt)

	// remainingHours clamps at zero, never negative.
	hours, asOf := a.WorkingHoursFor("S2")
	rem, known := hours[2].Remaining()
	require.True(t, known)
	assert.Equal(t, 0.0, rem)
	assert.Equal(t, at, asOf)

	// The fault surfaces through getErrorsForSection as a threshold record.
	recs := a.ErrorsForSection("S2")
	require.NotEmpty(t, recs)
	assert.Equal(t, models.ErrorKindThreshold, recs[0].Kind)
}

func TestAggregator_LowRemainingLifeIsWarning(t *testing.T) {
	a := newTestAggregator()

	rep := goodReport("S1", time.Now().UTC())
	rep.Slots[0] = SlotReading{Slot: 1, Hours: fptr(4100)} // 48.75% remaining of 8000
	a.IngestReport(rep)

	summary := a.SectionStatusSummary(models.CategoryLamp)
	require.Len(t, summary, 1)
	assert.Equal(t, models.LevelWarning, summary[0].Level)
}

func TestAggregator_UnknownReadingsNeverDefaultToZero(t *testing.T) {
	a := newTestAggregator()

	rep := SectionReport{
		SectionID: "S1",
		At:        time.Now().UTC(),
		Setpoint:  fptr(8000),
		Slots: []SlotReading{
			{Slot: 1, Err: errors.New("register read failed")},
			{Slot: 2},
			{Slot: 3},
			{Slot: 4},
		},
	}
	a.IngestReport(rep)

	hours, _ := a.WorkingHoursFor("S1")
	for slot := 1; slot <= models.MaxLampSlots; slot++ {
		_, known := hours[slot].Remaining()
		assert.False(t, known, "slot %d must stay unknown", slot)
		assert.Nil(t, hours[slot].CurrentHours, "slot %d", slot)
	}

	// With nothing measurable the lamp category degrades to warning, not
	// to a fake good-with-zeros.
	summary := a.SectionStatusSummary(models.CategoryLamp)
	require.Len(t, summary, 1)
	assert.Equal(t, models.LevelWarning, summary[0].Level)
}

func TestAggregator_SummaryCountsMatchEntries(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	bad := goodReport("S1", at)
	bad.Pressure = fptr(300) // over the 250 limit
	a.IngestReport(bad)

	warn := goodReport("S2", at)
	warn.Pressure = fptr(210) // above the 0.8 warning fraction
	a.IngestReport(warn)

	a.IngestReport(goodReport("S3", at))

	summary := a.SectionStatusSummary(models.CategoryPressure)
	require.Len(t, summary, 2)
	assert.Equal(t, "S1", summary[0].SectionID) // ordered by section id
	assert.Equal(t, "S2", summary[1].SectionID)

	errs, warns := a.Counts()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, warns)

	ov := a.Overview()
	assert.Equal(t, 1, ov.Errors)
	assert.Equal(t, 1, ov.Warnings)
	assert.Equal(t, 2, ov.ByCat[models.CategoryPressure])
}

func TestAggregator_IngestIsIdempotent(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	var notifications int
	unsubscribe := a.Subscribe(func(Update) { notifications++ })
	defer unsubscribe()

	rep := goodReport("S1", at)
	rep.DPSOK = bptr(false)
	a.IngestReport(rep)
	first := a.SectionStatusSummary(models.CategoryDPS)

	a.IngestReport(rep)
	second := a.SectionStatusSummary(models.CategoryDPS)

	assert.Equal(t, first, second, "identical reading must produce an unchanged entry")
	require.Len(t, second, 1)
	errs, _ := a.Counts()
	assert.Equal(t, 1, errs, "overwrite must not double-count")
	assert.LessOrEqual(t, notifications, 2)
}

func TestAggregator_DPSTrippedIsError(t *testing.T) {
	a := newTestAggregator()
	rep := goodReport("S1", time.Now().UTC())
	rep.DPSOK = bptr(false)
	a.IngestReport(rep)

	summary := a.SectionStatusSummary(models.CategoryDPS)
	require.Len(t, summary, 1)
	assert.Equal(t, models.LevelError, summary[0].Level)
}

func TestAggregator_ConnectionFaultSuspends(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S3", Address: "10.0.0.3:502"})
	at := time.Now().UTC()

	v := a.IngestReport(SectionReport{SectionID: "S3", At: at, ConnErr: errors.New("connection refused")})
	assert.True(t, v.Suspended)
	assert.True(t, v.Lost)
	assert.True(t, a.Suspended("S3"))
	assert.Equal(t, models.ConnSuspended, a.ConnStateOf("S3"))

	recs := a.ErrorsForSection("S3")
	require.Len(t, recs, 1)
	assert.Equal(t, models.ErrorKindConnection, recs[0].Kind)
	firstSeen := recs[0].FirstSeen

	// A later fault refreshes the single record instead of appending.
	later := at.Add(time.Minute)
	v = a.IngestReport(SectionReport{SectionID: "S3", At: later, ConnErr: errors.New("still refused")})
	assert.True(t, v.Suspended)
	assert.False(t, v.Lost, "already suspended")

	recs = a.ErrorsForSection("S3")
	require.Len(t, recs, 1)
	assert.Equal(t, firstSeen, recs[0].FirstSeen)
	assert.Equal(t, later, recs[0].LastSeen)
}

func TestAggregator_TimeoutStreakSuspendsAtThreshold(t *testing.T) {
	a := newTestAggregator() // TimeoutSuspendAfter = 3
	a.RegisterSection(models.Section{ID: "S3", Address: "10.0.0.3:502"})

	timeoutRep := func() SectionReport {
		return SectionReport{SectionID: "S3", At: time.Now().UTC(), AllTimedOut: true}
	}

	v := a.IngestReport(timeoutRep())
	assert.False(t, v.Suspended, "first timeout is transient")
	v = a.IngestReport(timeoutRep())
	assert.False(t, v.Suspended, "second timeout is transient")
	v = a.IngestReport(timeoutRep())
	assert.True(t, v.Suspended, "third consecutive timeout suspends")
	assert.True(t, v.Lost)

	recs := a.ErrorsForSection("S3")
	require.Len(t, recs, 1)
	assert.Equal(t, models.ErrorKindConnection, recs[0].Kind)
}

func TestAggregator_SuccessfulCycleResetsTimeoutStreak(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S1", Address: "10.0.0.1:502"})

	timeoutRep := SectionReport{SectionID: "S1", At: time.Now().UTC(), AllTimedOut: true}
	a.IngestReport(timeoutRep)
	a.IngestReport(timeoutRep)
	a.IngestReport(goodReport("S1", time.Now().UTC()))

	v := a.IngestReport(timeoutRep)
	assert.False(t, v.Suspended, "streak must restart after a successful cycle")
}

func TestAggregator_ReconnectClearsRecordAndResumes(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S3", Address: "10.0.0.3:502"})

	a.IngestReport(SectionReport{SectionID: "S3", At: time.Now().UTC(), ConnErr: errors.New("refused")})
	require.True(t, a.Suspended("S3"))

	// The successful probe clears the record and resumes the section.
	v := a.IngestReport(goodReport("S3", time.Now().UTC()))
	assert.False(t, v.Suspended)
	assert.True(t, v.Recovered)
	assert.Equal(t, models.ConnActive, a.ConnStateOf("S3"))

	for _, rec := range a.ErrorsForSection("S3") {
		assert.NotEqual(t, models.ErrorKindConnection, rec.Kind)
	}
}

func TestAggregator_FailedProbeRefreshesRecordWhileSuspended(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S3", Address: "10.0.0.3:502"})

	a.IngestReport(SectionReport{SectionID: "S3", At: time.Now().UTC(), ConnErr: errors.New("refused")})
	require.True(t, a.Suspended("S3"))

	// A timed-out probe must not sneak the section back onto the schedule.
	v := a.IngestReport(SectionReport{SectionID: "S3", At: time.Now().UTC(), AllTimedOut: true})
	assert.True(t, v.Suspended)
	assert.True(t, a.Suspended("S3"))
}

func TestAggregator_StaleEntriesSurviveConnectionLoss(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	rep := goodReport("S1", at)
	rep.Pressure = fptr(300)
	a.IngestReport(rep)

	a.IngestReport(SectionReport{SectionID: "S1", At: at.Add(time.Minute), ConnErr: errors.New("refused")})

	// Callers still see the latest known facts, stale as they are.
	summary := a.SectionStatusSummary(models.CategoryPressure)
	require.Len(t, summary, 1)
	assert.Equal(t, at, summary[0].ObservedAt)
}

func TestAggregator_UnaddressedSectionStaysDisconnected(t *testing.T) {
	a := newTestAggregator()
	a.RegisterSection(models.Section{ID: "S9", Name: "spare hood"})

	assert.Equal(t, models.ConnDisconnected, a.ConnStateOf("S9"))
	for _, cat := range models.Categories() {
		assert.Empty(t, a.SectionStatusSummary(cat))
	}
	assert.Empty(t, a.ErrorsForSection("S9"))
}

func TestAggregator_CleaningClassification(t *testing.T) {
	a := newTestAggregator()
	now := time.Now().UTC()

	daysAgo := func(d int) *time.Time {
		t := now.AddDate(0, 0, -d)
		return &t
	}

	cases := []struct {
		name      string
		section   models.Section
		wantLevel models.Level
		tracked   bool
	}{
		{
			name:      "fresh cleaning is good",
			section:   models.Section{ID: "C1", CleaningIntervalDays: 30, LastCleanedAt: daysAgo(5)},
			wantLevel: models.LevelGood,
			tracked:   true,
		},
		{
			name:      "due soon is warning",
			section:   models.Section{ID: "C2", CleaningIntervalDays: 30, LastCleanedAt: daysAgo(25)},
			wantLevel: models.LevelWarning,
			tracked:   true,
		},
		{
			name:      "overdue is error",
			section:   models.Section{ID: "C3", CleaningIntervalDays: 30, LastCleanedAt: daysAgo(40)},
			wantLevel: models.LevelError,
			tracked:   true,
		},
		{
			name:      "no record is warning",
			section:   models.Section{ID: "C4", CleaningIntervalDays: 30},
			wantLevel: models.LevelWarning,
			tracked:   true,
		},
		{
			name:    "no schedule is untracked",
			section: models.Section{ID: "C5"},
			tracked: false,
		},
	}

	for _, tc := range cases {
		a.IngestCleaning(tc.section, now)
		summary := a.SectionStatusSummary(models.CategoryCleaning)
		found := false
		for _, e := range summary {
			if e.SectionID == tc.section.ID {
				found = true
				assert.Equal(t, tc.wantLevel, e.Level, tc.name)
			}
		}
		if !tc.tracked || tc.wantLevel == models.LevelGood {
			assert.False(t, found, tc.name)
		} else {
			assert.True(t, found, tc.name)
		}
	}
}

func TestAggregator_SubscribeAndUnsubscribe(t *testing.T) {
	a := newTestAggregator()

	var first, second []string
	unsub1 := a.Subscribe(func(u Update) { first = append(first, u.SectionID) })
	unsub2 := a.Subscribe(func(u Update) { second = append(second, u.SectionID) })
	defer unsub2()

	a.IngestReport(goodReport("S1", time.Now().UTC()))
	require.Equal(t, []string{"S1"}, first)
	require.Equal(t, []string{"S1"}, second)

	unsub1()
	a.IngestReport(goodReport("S2", time.Now().UTC()))
	assert.Equal(t, []string{"S1"}, first, "unsubscribed listener must not fire")
	assert.Equal(t, []string{"S1", "S2"}, second)
}

func TestAggregator_SubscriberSeesConsistentSnapshot(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	// The listener queries back into the aggregator; entries from the same
	// ingest must all be visible together.
	var seen int
	unsub := a.Subscribe(func(u Update) {
		hours, _ := a.WorkingHoursFor(u.SectionID)
		seen = len(hours)
	})
	defer unsub()

	a.IngestReport(goodReport("S1", at))
	assert.Equal(t, models.MaxLampSlots, seen)
}

func TestAggregator_ProtocolFaultRecordsDegradation(t *testing.T) {
	a := newTestAggregator()
	at := time.Now().UTC()

	rep := goodReport("S1", at)
	rep.Slots[2] = SlotReading{Slot: 3, Err: errors.New("exception code 2")}
	v := a.IngestReport(rep)
	assert.False(t, v.Suspended, "protocol faults never suspend polling")

	recs := a.ErrorsForSection("S1")
	require.Len(t, recs, 1)
	assert.Equal(t, models.ErrorKindProtocol, recs[0].Kind)

	// A clean cycle clears the protocol record.
	a.IngestReport(goodReport("S1", at.Add(time.Minute)))
	assert.Empty(t, a.ErrorsForSection("S1"))
}

func TestAggregator_DropSectionForgetsEverything(t *testing.T) {
	a := newTestAggregator()
	rep := goodReport("S1", time.Now().UTC())
	rep.Pressure = fptr(300)
	a.IngestReport(rep)

	a.DropSection("S1")

	assert.Empty(t, a.SectionStatusSummary(models.CategoryPressure))
	assert.Empty(t, a.ErrorsForSection("S1"))
	hours, _ := a.WorkingHoursFor("S1")
	assert.Empty(t, hours)
}
