package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"hoodwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEventRepo records appends and captures the filter passed to List.
type stubEventRepo struct {
	mu       sync.Mutex
	appended []models.FleetEvent
	from, to time.Time
	typ      string
	events   []models.FleetEvent
	err      error
}

func (s *stubEventRepo) Append(ctx context.Context, e models.FleetEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, e)
	return s.err
}

func (s *stubEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.FleetEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from, s.to, s.typ = from, to, typ
	return s.events, s.err
}

func TestEventLogService_LifecycleCallbacksRecordEvents(t *testing.T) {
	repo := &stubEventRepo{}
	svc := NewEventLogService(repo, nil)

	svc.ConnectionLost("S3", "connection refused")
	svc.Reconnected("S3")
	svc.ReconnectFailed("S3", "still down")

	require.Len(t, repo.appended, 3)
	assert.Equal(t, "CONNECTION_LOST", repo.appended[0].Type)
	assert.Equal(t, "RECONNECT", repo.appended[1].Type)
	assert.Equal(t, "RECONNECT_FAILED", repo.appended[2].Type)

	meta, ok := repo.appended[0].Metadata.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "S3", meta["section"])
	assert.Equal(t, "connection refused", meta["cause"])
}

func TestEventLogService_List_RejectsInvertedRange(t *testing.T) {
	svc := NewEventLogService(&stubEventRepo{}, nil)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, errInvalidTimeRange)
}

func TestEventLogService_List_NormalizesFilter(t *testing.T) {
	repo := &stubEventRepo{events: []models.FleetEvent{{EventID: "evt-1"}}}
	svc := NewEventLogService(repo, nil)

	loc := time.FixedZone("UTC+3", 3*60*60)
	from := time.Date(2026, 8, 1, 3, 0, 0, 0, loc)

	got, err := svc.List(context.Background(), LogFilter{From: from, Type: " connection_lost "})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, time.UTC, repo.from.Location())
	assert.Equal(t, from.UTC(), repo.from)
	assert.True(t, repo.to.IsZero(), "zero bound must stay zero")
	assert.Equal(t, "CONNECTION_LOST", repo.typ)
}

func TestEventLogService_RecordSurvivesRepoFailure(t *testing.T) {
	repo := &stubEventRepo{err: context.DeadlineExceeded}
	svc := NewEventLogService(repo, nil)

	// Must not panic or propagate; polling goes on regardless.
	svc.Record("CONNECTION_LOST", "section S1 lost connection", nil)
	require.Len(t, repo.appended, 1)
}
