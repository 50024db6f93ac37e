package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"hoodwatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventMock(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewEventSQLite(db), mock
}

func TestEventSQLite_Append_FillsDefaults(t *testing.T) {
	repo, mock := newEventMock(t)

	// EventID and OccurredAt are generated, so only the stable columns are
	// matched exactly.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fleet_events")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "CONNECTION_LOST", "section S1 unreachable", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), models.FleetEvent{
		Type:        "connection_lost",
		Description: "section S1 unreachable",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSQLite_Append_PreservesProvidedFields(t *testing.T) {
	repo, mock := newEventMock(t)
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fleet_events")).
		WithArgs("evt-1", "2026-08-25 10:00:00", "SECTION_CLEANED", "filters cleaned", `{"section":"S1"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), models.FleetEvent{
		EventID:     "evt-1",
		OccurredAt:  at,
		Type:        "section_cleaned",
		Description: "filters cleaned",
		Metadata:    map[string]string{"section": "S1"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSQLite_List_NoFilters(t *testing.T) {
	repo, mock := newEventMock(t)
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("evt-1", at, "RECONNECTED", "section S1 back online", nil).
		AddRow("evt-2", at.Add(time.Minute), "SECTION_RESYNC", "configuration resynced", `{"sections":3}`)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, occurred_at, type, message, meta FROM fleet_events ORDER BY occurred_at ASC")).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "RECONNECTED", got[0].Type)
	assert.Nil(t, got[0].Metadata)
	assert.Equal(t, map[string]any{"sections": float64(3)}, got[1].Metadata)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSQLite_List_AppliesFilters(t *testing.T) {
	repo, mock := newEventMock(t)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 25, 23, 59, 59, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("evt-1", from.Add(time.Hour), "CONNECTION_LOST", "section S3 unreachable", nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC")).
		WithArgs(from, to, "CONNECTION_LOST").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), from, to, "connection_lost")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0].EventID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
