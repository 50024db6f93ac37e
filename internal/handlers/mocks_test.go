package handlers

import (
	"context"
	"sync"
	"time"

	"hoodwatch/internal/models"
	"hoodwatch/internal/service"
	"hoodwatch/internal/status"
)

// Hand-rolled service mocks; each call records its arguments and returns the
// canned result.

type mockFleet struct {
	sections    []models.Section
	sectionsErr error

	resyncErr error

	reconnectID   string
	reconnectAddr string
	reconnectErr  error

	cleanedID string
	cleanErr  error
}

func (m *mockFleet) Start(ctx context.Context) error  { return nil }
func (m *mockFleet) Resync(ctx context.Context) error { return m.resyncErr }
func (m *mockFleet) ReconnectSection(sectionID, address string) error {
	m.reconnectID, m.reconnectAddr = sectionID, address
	return m.reconnectErr
}
func (m *mockFleet) MarkCleaned(ctx context.Context, sectionID string) error {
	m.cleanedID = sectionID
	return m.cleanErr
}
func (m *mockFleet) Sections(ctx context.Context) ([]models.Section, error) {
	return m.sections, m.sectionsErr
}
func (m *mockFleet) Stop() {}

type mockStatus struct {
	gotCat     models.Category
	entries    []models.StatusEntry
	summaryErr error

	overview status.Overview
	records  []models.ErrorRecord
	hours    map[int]models.WorkingHours
	asOf     time.Time
	conn     models.ConnState

	subMu sync.Mutex
	subFn func(status.Update)
}

func (m *mockStatus) push(u status.Update) {
	m.subMu.Lock()
	fn := m.subFn
	m.subMu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func (m *mockStatus) Summary(cat models.Category) ([]models.StatusEntry, error) {
	m.gotCat = cat
	return m.entries, m.summaryErr
}
func (m *mockStatus) Overview() status.Overview { return m.overview }
func (m *mockStatus) ErrorsForSection(sectionID string) []models.ErrorRecord {
	return m.records
}
func (m *mockStatus) WorkingHours(sectionID string) (map[int]models.WorkingHours, time.Time) {
	return m.hours, m.asOf
}
func (m *mockStatus) ConnState(sectionID string) models.ConnState { return m.conn }
func (m *mockStatus) Subscribe(fn func(status.Update)) func() {
	m.subMu.Lock()
	m.subFn = fn
	m.subMu.Unlock()
	return func() {}
}

type mockEventLog struct {
	gotFilter service.LogFilter
	events    []models.FleetEvent
	err       error
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.FleetEvent, error) {
	m.gotFilter = f
	return m.events, m.err
}

type mockAuth struct {
	signUpID  int
	signUpErr error

	token    string
	tokenErr error

	parseID  int
	parseErr error
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.token, m.tokenErr
}
func (m *mockAuth) ParseToken(accessToken string) (int, error) {
	return m.parseID, m.parseErr
}
