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

func newSwapRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func swapRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "requester_slot_id", "requested_slot_id", "requester_user_id", "requested_user_id",
		"status", "request_message", "response_message", "original_times", "created_at",
		"responded_at", "completed_at", "cancelled_at",
	})
}

func TestSwapRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	rows := swapRows().
		AddRow("swap-1", "slot-a", "slot-b", "user-1", "user-2", "PENDING", "trade?", nil, nil, time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_slot_id, requested_slot_id")).
		WithArgs("swap-1").
		WillReturnRows(rows)

	swap, err := repo.GetByID(context.Background(), "swap-1")
	require.NoError(t, err)
	require.Equal(t, "swap-1", swap.ID)
	require.Equal(t, models.SwapStatusPending, swap.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_slot_id, requested_slot_id")).
		WithArgs("missing").
		WillReturnRows(swapRows())

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryCreatePendingLocksBothSlots(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	swap := &models.SwapRequest{
		RequesterSlotID: "slot-a",
		RequestedSlotID: "slot-b",
		RequesterUserID: "user-1",
		RequestedUserID: "user-2",
		RequestMessage:  "trade?",
		CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1, last_updated = $2 WHERE id = $3 AND status = $4")).
		WithArgs("SWAP_PENDING", swap.CreatedAt, "slot-a", "SWAPPABLE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1, last_updated = $2 WHERE id = $3 AND status = $4")).
		WithArgs("SWAP_PENDING", swap.CreatedAt, "slot-b", "SWAPPABLE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO swap_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreatePending(context.Background(), swap))
	require.NotEmpty(t, swap.ID)
	require.Equal(t, models.SwapStatusPending, swap.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryCreatePendingConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	swap := &models.SwapRequest{
		RequesterSlotID: "slot-a",
		RequestedSlotID: "slot-b",
		CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1, last_updated = $2 WHERE id = $3 AND status = $4")).
		WithArgs("SWAP_PENDING", swap.CreatedAt, "slot-a", "SWAPPABLE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreatePending(context.Background(), swap)
	require.ErrorIs(t, err, ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryAcceptSwapsSchedules(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	respondedAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	params := AcceptSwapParams{
		RequestID:       "swap-1",
		RequesterSlotID: "slot-a",
		RequestedSlotID: "slot-b",
		RequesterTimes: models.TimeWindow{
			Start: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		RequestedTimes: models.TimeWindow{
			Start: time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC),
		},
		ResponseMessage: "works for me",
		RespondedAt:     respondedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE swap_requests SET status = $1, response_message = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Requester slot takes the requested slot's window.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET start_time = $1, end_time = $2")).
		WithArgs(params.RequestedTimes.Start, params.RequestedTimes.End, "BUSY", "SWAP_ACCEPTED", respondedAt, "slot-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET start_time = $1, end_time = $2")).
		WithArgs(params.RequesterTimes.Start, params.RequesterTimes.End, "BUSY", "SWAP_ACCEPTED", respondedAt, "slot-b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Accept(context.Background(), params))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryAcceptAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE swap_requests SET status = $1, response_message = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), AcceptSwapParams{RequestID: "swap-1"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryRevertCancelled(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	resolvedAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE swap_requests SET status = $1, cancelled_at = $2")).
		WithArgs("CANCELLED", resolvedAt, "swap-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1, last_action = $2")).
		WithArgs("SWAPPABLE", "SWAP_CANCELLED", resolvedAt, "slot-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1, last_action = $2")).
		WithArgs("SWAPPABLE", "SWAP_CANCELLED", resolvedAt, "slot-b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Revert(context.Background(), RevertSwapParams{
		RequestID:       "swap-1",
		RequesterSlotID: "slot-a",
		RequestedSlotID: "slot-b",
		Status:          models.SwapStatusCancelled,
		SlotAction:      models.EventActionSwapCancelled,
		ResolvedAt:      resolvedAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryListHistory(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM swap_requests")).
		WithArgs("user-1", "ACCEPTED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := swapRows().
		AddRow("swap-1", "slot-a", "slot-b", "user-1", "user-2", "ACCEPTED", "", nil, nil, time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_slot_id, requested_slot_id")).
		WillReturnRows(rows)

	swaps, total, err := repo.ListHistory(context.Background(), models.SwapHistoryFilter{
		UserID: "user-1",
		Status: models.SwapStatusAccepted,
		Page:   1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, swaps, 1)
	require.Equal(t, models.SwapStatusAccepted, swaps[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapRepositoryStatusSummary(t *testing.T) {
	db, mock, cleanup := newSwapRepoMock(t)
	defer cleanup()

	repo := NewSwapRepository(db)
	mock.ExpectQuery("SELECT").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"pending", "accepted", "rejected"}).AddRow(2, 1, 0))

	summary, err := repo.StatusSummary(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, models.SwapSummary{Pending: 2, Accepted: 1, Rejected: 0}, summary)
	require.NoError(t, mock.ExpectationsWereMet())
}
