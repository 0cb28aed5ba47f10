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

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notification := &models.Notification{
		UserID:  "user-2",
		Type:    models.NotificationSwapRequest,
		Title:   "New Swap Request!",
		Message: "Alice wants to swap",
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   "swap-1",
		},
		ActionRequired: true,
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	require.NotEmpty(t, notification.ID)
	require.False(t, notification.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUnreadOnly(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "title", "message", "related_kind", "related_id", "action_required", "read", "created_at",
	}).AddRow("n-1", "user-2", "SWAP_REQUEST", "New Swap Request!", "Alice wants to swap", "SWAP_REQUEST", "swap-1", true, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("AND read = FALSE")).
		WithArgs("user-2").
		WillReturnRows(rows)

	notifications, err := repo.ListByUser(context.Background(), "user-2", true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.RelatedSwapRequest, notifications[0].Kind)
	require.Equal(t, "swap-1", notifications[0].RelatedRef.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadScopedToOwner(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "n-1", "intruder")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications")).
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), "user-2")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
