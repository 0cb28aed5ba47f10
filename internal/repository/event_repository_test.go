package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/slotswapper/slotswapper-api/internal/models"
)

func newEventRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "title", "start_time", "end_time", "status", "last_action", "last_updated", "created_at",
	})
}

func TestEventRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &models.Event{
		OwnerID:   "user-1",
		Title:     "Focus block",
		StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEmpty(t, event.ID)
	require.Equal(t, models.EventStatusBusy, event.Status)
	require.False(t, event.LastUpdated.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, title")).
		WithArgs("event-1").
		WillReturnRows(eventRows().AddRow("event-1", "user-1", "Standup", now, now.Add(time.Hour), "SWAPPABLE", nil, now, now))

	event, err := repo.GetByID(context.Background(), "event-1")
	require.NoError(t, err)
	require.Equal(t, models.EventStatusSwappable, event.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListSwappableExcludesOwner(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "title", "start_time", "end_time", "status", "last_action", "last_updated", "created_at",
		"owner_name", "owner_email",
	}).AddRow("event-2", "user-2", "Design review", now, now.Add(time.Hour), "SWAPPABLE", nil, now, now, "Bob", "bob@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = e.owner_id")).
		WithArgs("SWAPPABLE", "user-1").
		WillReturnRows(rows)

	slots, err := repo.ListSwappable(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "Bob", slots[0].OwnerName)
	require.Equal(t, "bob@example.com", slots[0].OwnerEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateNotOwned(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET title")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Event{ID: "event-1", OwnerID: "intruder"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1 AND owner_id = $2")).
		WithArgs("event-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "event-1", "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
