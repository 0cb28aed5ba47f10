package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotswapper/slotswapper-api/internal/models"
)

// ErrSlotConflict reports that a conditional event status update matched no
// row: a concurrent transition moved the slot away from SWAPPABLE first.
var ErrSlotConflict = errors.New("slot status conflict")

const swapColumns = `id, requester_slot_id, requested_slot_id, requester_user_id, requested_user_id,
	status, request_message, response_message, original_times, created_at, responded_at, completed_at, cancelled_at`

// SwapRepository is the swap ledger. Every lifecycle transition runs as a
// single transaction so the event pair and the ledger row always move
// together.
type SwapRepository struct {
	db *sqlx.DB
}

// NewSwapRepository constructs the repository.
func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// GetByID fetches a swap request by identifier.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1`
	var swap models.SwapRequest
	if err := r.db.GetContext(ctx, &swap, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get swap request: %w", err)
	}
	return &swap, nil
}

// FindPendingBetween looks for a PENDING request referencing the unordered
// slot pair in either direction.
func (r *SwapRepository) FindPendingBetween(ctx context.Context, slotA, slotB string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests
	WHERE status = $1 AND ((requester_slot_id = $2 AND requested_slot_id = $3) OR (requester_slot_id = $3 AND requested_slot_id = $2))
	LIMIT 1`
	var swap models.SwapRequest
	if err := r.db.GetContext(ctx, &swap, query, models.SwapStatusPending, slotA, slotB); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending swap between slots: %w", err)
	}
	return &swap, nil
}

// CreatePending inserts a PENDING request and locks both slots in one
// transaction. Each slot transition away from SWAPPABLE is conditional, so a
// losing concurrent caller observes ErrSlotConflict instead of silently
// overwriting.
func (r *SwapRepository) CreatePending(ctx context.Context, swap *models.SwapRequest) error {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	swap.Status = models.SwapStatusPending
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create swap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, slotID := range []string{swap.RequesterSlotID, swap.RequestedSlotID} {
		if err = lockSlot(ctx, tx, slotID, swap.CreatedAt); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO swap_requests
	(id, requester_slot_id, requested_slot_id, requester_user_id, requested_user_id, status, request_message, created_at)
	VALUES (:id, :requester_slot_id, :requested_slot_id, :requester_user_id, :requested_user_id, :status, :request_message, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, swap); err != nil {
		err = fmt.Errorf("insert swap request: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit create swap: %w", err)
		return err
	}
	return nil
}

func lockSlot(ctx context.Context, tx *sqlx.Tx, slotID string, ts time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE events SET status = $1, last_updated = $2 WHERE id = $3 AND status = $4`,
		models.EventStatusSwapPending, ts, slotID, models.EventStatusSwappable)
	if err != nil {
		return fmt.Errorf("lock slot %s: %w", slotID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check slot lock rows: %w", err)
	}
	if rows == 0 {
		return ErrSlotConflict
	}
	return nil
}

// AcceptSwapParams carries the full accept transition: ledger resolution plus
// the schedule exchange between the two slots.
type AcceptSwapParams struct {
	RequestID       string
	RequesterSlotID string
	RequestedSlotID string
	RequesterTimes  models.TimeWindow
	RequestedTimes  models.TimeWindow
	ResponseMessage string
	RespondedAt     time.Time
}

// Accept resolves a PENDING request as ACCEPTED and swaps the two slots'
// times, leaving ownership untouched. The ledger update is conditional on
// PENDING; zero rows means another resolution won and sql.ErrNoRows is
// returned.
func (r *SwapRepository) Accept(ctx context.Context, params AcceptSwapParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept swap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	original := models.OriginalTimes{
		Requester: params.RequesterTimes,
		Requested: params.RequestedTimes,
	}
	if err = resolveRequest(ctx, tx, params.RequestID, models.SwapStatusAccepted, params.ResponseMessage, &original, params.RespondedAt); err != nil {
		return err
	}

	// The requester's slot takes the requested slot's schedule and vice versa.
	if err = rescheduleSlot(ctx, tx, params.RequesterSlotID, params.RequestedTimes, params.RespondedAt); err != nil {
		return err
	}
	if err = rescheduleSlot(ctx, tx, params.RequestedSlotID, params.RequesterTimes, params.RespondedAt); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit accept swap: %w", err)
		return err
	}
	return nil
}

func rescheduleSlot(ctx context.Context, tx *sqlx.Tx, slotID string, times models.TimeWindow, ts time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET start_time = $1, end_time = $2, status = $3, last_action = $4, last_updated = $5 WHERE id = $6`,
		times.Start, times.End, models.EventStatusBusy, models.EventActionSwapAccepted, ts, slotID); err != nil {
		return fmt.Errorf("reschedule slot %s: %w", slotID, err)
	}
	return nil
}

// RevertSwapParams carries a reject or cancel transition.
type RevertSwapParams struct {
	RequestID       string
	RequesterSlotID string
	RequestedSlotID string
	Status          models.SwapStatus
	SlotAction      models.EventAction
	ResponseMessage string
	ResolvedAt      time.Time
}

// Revert resolves a PENDING request as REJECTED or CANCELLED and returns both
// slots to SWAPPABLE with their schedules unchanged.
func (r *SwapRepository) Revert(ctx context.Context, params RevertSwapParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revert swap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if params.Status == models.SwapStatusCancelled {
		err = cancelRequest(ctx, tx, params.RequestID, params.ResolvedAt)
	} else {
		err = resolveRequest(ctx, tx, params.RequestID, params.Status, params.ResponseMessage, nil, params.ResolvedAt)
	}
	if err != nil {
		return err
	}

	for _, slotID := range []string{params.RequesterSlotID, params.RequestedSlotID} {
		if _, err = tx.ExecContext(ctx,
			`UPDATE events SET status = $1, last_action = $2, last_updated = $3 WHERE id = $4`,
			models.EventStatusSwappable, params.SlotAction, params.ResolvedAt, slotID); err != nil {
			err = fmt.Errorf("release slot %s: %w", slotID, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit revert swap: %w", err)
		return err
	}
	return nil
}

func resolveRequest(ctx context.Context, tx *sqlx.Tx, id string, status models.SwapStatus, responseMessage string, original *models.OriginalTimes, ts time.Time) error {
	var originalArg interface{}
	if original != nil {
		originalArg = *original
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE swap_requests SET status = $1, response_message = $2, original_times = $3, responded_at = $4, completed_at = $4
		WHERE id = $5 AND status = $6`,
		status, responseMessage, originalArg, ts, id, models.SwapStatusPending)
	if err != nil {
		return fmt.Errorf("resolve swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check swap resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func cancelRequest(ctx context.Context, tx *sqlx.Tx, id string, ts time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE swap_requests SET status = $1, cancelled_at = $2 WHERE id = $3 AND status = $4`,
		models.SwapStatusCancelled, ts, id, models.SwapStatusPending)
	if err != nil {
		return fmt.Errorf("cancel swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check swap cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListHistory returns a page of the user's swap requests, newest first, with
// the total count for the filtered scope.
func (r *SwapRepository) ListHistory(ctx context.Context, filter models.SwapHistoryFilter) ([]models.SwapRequest, int, error) {
	conditions := `(requester_user_id = $1 OR requested_user_id = $1)`
	args := []interface{}{filter.UserID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM swap_requests WHERE `+conditions, args...); err != nil {
		return nil, 0, fmt.Errorf("count swap history: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE ` + conditions +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, offset)
	swaps := []models.SwapRequest{}
	if err := r.db.SelectContext(ctx, &swaps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list swap history: %w", err)
	}
	return swaps, total, nil
}

// StatusSummary counts a user's requests per status over the unfiltered
// history scope.
func (r *SwapRepository) StatusSummary(ctx context.Context, userID string) (models.SwapSummary, error) {
	const query = `SELECT
	COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
	COUNT(*) FILTER (WHERE status = 'ACCEPTED') AS accepted,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected
	FROM swap_requests WHERE requester_user_id = $1 OR requested_user_id = $1`
	var summary models.SwapSummary
	row := r.db.QueryRowxContext(ctx, query, userID)
	if err := row.Scan(&summary.Pending, &summary.Accepted, &summary.Rejected); err != nil {
		return models.SwapSummary{}, fmt.Errorf("swap status summary: %w", err)
	}
	return summary, nil
}

// ListIncoming returns requests where the user is the requested party.
func (r *SwapRepository) ListIncoming(ctx context.Context, userID string) ([]models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE requested_user_id = $1 ORDER BY created_at DESC`
	swaps := []models.SwapRequest{}
	if err := r.db.SelectContext(ctx, &swaps, query, userID); err != nil {
		return nil, fmt.Errorf("list incoming swaps: %w", err)
	}
	return swaps, nil
}

// ListOutgoing returns requests where the user is the requester.
func (r *SwapRepository) ListOutgoing(ctx context.Context, userID string) ([]models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE requester_user_id = $1 ORDER BY created_at DESC`
	swaps := []models.SwapRequest{}
	if err := r.db.SelectContext(ctx, &swaps, query, userID); err != nil {
		return nil, fmt.Errorf("list outgoing swaps: %w", err)
	}
	return swaps, nil
}
