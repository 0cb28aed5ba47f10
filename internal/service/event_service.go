package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/models"
	appErrors "github.com/slotswapper/slotswapper-api/pkg/errors"
)

const swappableSlotsPattern = "slots:swappable:*"

func swappableSlotsKey(excludingUserID string) string {
	return fmt.Sprintf("slots:swappable:%s", excludingUserID)
}

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	ListSwappable(ctx context.Context, excludingUserID string) ([]models.SwappableSlot, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id, ownerID string) error
}

// EventService manages calendar slots on behalf of their owners.
type EventService struct {
	repo      eventStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns the owner's events.
func (s *EventService) List(ctx context.Context, ownerID string) ([]models.Event, error) {
	events, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Create inserts a new slot for the owner. Clients may only choose BUSY or
// SWAPPABLE; SWAP_PENDING is reserved for the swap coordinator.
func (s *EventService) Create(ctx context.Context, ownerID string, req dto.CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	status := models.EventStatusBusy
	if req.Status != "" {
		status = models.EventStatus(req.Status)
	}

	event := &models.Event{
		OwnerID:   ownerID,
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    status,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.invalidateListings(ctx)
	return event, nil
}

// Update applies a partial update to a slot the caller owns. Slots locked by
// a pending swap cannot be edited; resolving the swap releases them.
func (s *EventService) Update(ctx context.Context, ownerID, eventID string, req dto.UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event, err := s.getOwned(ctx, ownerID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusSwapPending {
		return nil, appErrors.Clone(appErrors.ErrSlotNotSwappable, "slot is locked by a pending swap request")
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if req.Status != nil {
		event.Status = models.EventStatus(*req.Status)
	}
	if !event.EndTime.After(event.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}

	s.invalidateListings(ctx)
	return event, nil
}

// Delete removes a slot the caller owns, unless a pending swap references it.
func (s *EventService) Delete(ctx context.Context, ownerID, eventID string) error {
	event, err := s.getOwned(ctx, ownerID, eventID)
	if err != nil {
		return err
	}
	if event.Status == models.EventStatusSwapPending {
		return appErrors.Clone(appErrors.ErrSlotNotSwappable, "slot is locked by a pending swap request")
	}

	if err := s.repo.Delete(ctx, eventID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}

	s.invalidateListings(ctx)
	return nil
}

// ListSwappable returns other users' SWAPPABLE slots, served from cache when
// possible. The boolean reports whether the cache satisfied the request.
func (s *EventService) ListSwappable(ctx context.Context, excludingUserID string) ([]models.SwappableSlot, bool, error) {
	key := swappableSlotsKey(excludingUserID)
	var cached []models.SwappableSlot
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	slots, err := s.repo.ListSwappable(ctx, excludingUserID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swappable slots")
	}

	if err := s.cache.Set(ctx, key, slots, 0); err != nil {
		s.logger.Warn("failed to cache swappable slots", zap.Error(err))
	}
	return slots, false, nil
}

func (s *EventService) getOwned(ctx context.Context, ownerID, eventID string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}

func (s *EventService) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, swappableSlotsPattern); err != nil {
		s.logger.Warn("failed to invalidate slot listings", zap.Error(err))
	}
}
