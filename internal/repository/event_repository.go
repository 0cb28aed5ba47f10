package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotswapper/slotswapper-api/internal/models"
)

const eventColumns = `id, owner_id, title, start_time, end_time, status, last_action, last_updated, created_at`

// EventRepository persists calendar slots.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event row.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.LastUpdated = now
	if event.Status == "" {
		event.Status = models.EventStatusBusy
	}
	const query = `INSERT INTO events (id, owner_id, title, start_time, end_time, status, last_action, last_updated, created_at)
	VALUES (:id, :owner_id, :title, :start_time, :end_time, :status, :last_action, :last_updated, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// ListByOwner returns all events owned by a user, earliest first.
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE owner_id = $1 ORDER BY start_time ASC`
	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, query, ownerID); err != nil {
		return nil, fmt.Errorf("list events by owner: %w", err)
	}
	return events, nil
}

// ListSwappable returns SWAPPABLE events owned by anyone except the given
// user, joined with owner details for the marketplace listing.
func (r *EventRepository) ListSwappable(ctx context.Context, excludingUserID string) ([]models.SwappableSlot, error) {
	const query = `SELECT e.id, e.owner_id, e.title, e.start_time, e.end_time, e.status, e.last_action, e.last_updated, e.created_at,
	u.name AS owner_name, u.email AS owner_email
	FROM events e
	JOIN users u ON u.id = e.owner_id
	WHERE e.status = $1 AND e.owner_id <> $2
	ORDER BY e.start_time ASC`
	slots := []models.SwappableSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, models.EventStatusSwappable, excludingUserID); err != nil {
		return nil, fmt.Errorf("list swappable slots: %w", err)
	}
	return slots, nil
}

// Update rewrites the mutable slot fields.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.LastUpdated = time.Now().UTC()
	const query = `UPDATE events SET title = :title, start_time = :start_time, end_time = :end_time,
	status = :status, last_action = :last_action, last_updated = :last_updated
	WHERE id = :id AND owner_id = :owner_id`
	result, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an event owned by the given user.
func (r *EventRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
