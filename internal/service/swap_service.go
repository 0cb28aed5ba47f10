package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/models"
	"github.com/slotswapper/slotswapper-api/internal/repository"
	appErrors "github.com/slotswapper/slotswapper-api/pkg/errors"
)

const defaultRejectMessage = "No reason provided"

type swapStore interface {
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	FindPendingBetween(ctx context.Context, slotA, slotB string) (*models.SwapRequest, error)
	CreatePending(ctx context.Context, swap *models.SwapRequest) error
	Accept(ctx context.Context, params repository.AcceptSwapParams) error
	Revert(ctx context.Context, params repository.RevertSwapParams) error
	ListHistory(ctx context.Context, filter models.SwapHistoryFilter) ([]models.SwapRequest, int, error)
	StatusSummary(ctx context.Context, userID string) (models.SwapSummary, error)
	ListIncoming(ctx context.Context, userID string) ([]models.SwapRequest, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.SwapRequest, error)
}

type swapEventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SwapService coordinates the swap request lifecycle: creating requests,
// resolving them, and emitting the notifications each transition owes.
type SwapService struct {
	swaps     swapStore
	events    swapEventStore
	users     userDirectory
	sink      NotificationSink
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSwapService constructs the service.
func NewSwapService(swaps swapStore, events swapEventStore, users userDirectory, sink NotificationSink, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapService{
		swaps:     swaps,
		events:    events,
		users:     users,
		sink:      sink,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a PENDING swap request between the caller's slot and another
// user's slot, moving both slots to SWAP_PENDING.
func (s *SwapService) Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (*models.SwapRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap request payload")
	}

	mySlot, err := s.loadSlot(ctx, req.MySlotID, "your slot not found")
	if err != nil {
		return nil, err
	}
	if mySlot.OwnerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own the offered slot")
	}

	theirSlot, err := s.loadSlot(ctx, req.TheirSlotID, "requested slot not found")
	if err != nil {
		return nil, err
	}
	if theirSlot.Status != models.EventStatusSwappable {
		return nil, appErrors.Clone(appErrors.ErrSlotNotSwappable, "requested slot is not available for swapping")
	}
	if mySlot.Status != models.EventStatusSwappable {
		return nil, appErrors.Clone(appErrors.ErrSlotNotSwappable, "your slot must be marked swappable first")
	}
	if theirSlot.OwnerID == requesterID {
		return nil, appErrors.Clone(appErrors.ErrSelfSwap, "")
	}

	if _, err := s.swaps.FindPendingBetween(ctx, mySlot.ID, theirSlot.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSwap, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for duplicate swap")
	}

	swap := &models.SwapRequest{
		RequesterSlotID: mySlot.ID,
		RequestedSlotID: theirSlot.ID,
		RequesterUserID: requesterID,
		RequestedUserID: theirSlot.OwnerID,
		RequestMessage:  req.Message,
		CreatedAt:       s.now(),
	}
	if err := s.swaps.CreatePending(ctx, swap); err != nil {
		if errors.Is(err, repository.ErrSlotConflict) {
			s.recordTransition("create_conflict")
			return nil, appErrors.Clone(appErrors.ErrSlotNotSwappable, "slot is no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
	}

	s.recordTransition("created")
	s.invalidateListings(ctx)

	requesterName := s.lookupName(ctx, requesterID)
	s.notify(ctx, models.Notification{
		UserID:  theirSlot.OwnerID,
		Type:    models.NotificationSwapRequest,
		Title:   "New Swap Request!",
		Message: fmt.Sprintf("%s wants to swap their %q slot with your %q slot", requesterName, mySlot.Title, theirSlot.Title),
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   swap.ID,
		},
		ActionRequired: true,
	})

	return swap, nil
}

// Respond resolves a PENDING request. Accepting exchanges the two slots'
// times and records the pre-swap schedule; rejecting returns both slots to
// SWAPPABLE. Only the requested party may respond.
func (s *SwapService) Respond(ctx context.Context, responderID, requestID string, req dto.RespondSwapRequest) (*models.SwapRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	swap, err := s.loadSwap(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if swap.RequestedUserID != responderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requested user can respond to this swap")
	}
	if swap.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
	}

	if req.Accept {
		return s.accept(ctx, swap, req.ResponseMessage)
	}
	return s.reject(ctx, swap, req.ResponseMessage)
}

// Cancel withdraws a PENDING request. Only the requester may cancel.
func (s *SwapService) Cancel(ctx context.Context, callerID, requestID string) (*models.SwapRequest, error) {
	swap, err := s.loadSwap(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if swap.RequesterUserID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester can cancel this swap")
	}
	if swap.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
	}

	resolvedAt := s.now()
	err = s.swaps.Revert(ctx, repository.RevertSwapParams{
		RequestID:       swap.ID,
		RequesterSlotID: swap.RequesterSlotID,
		RequestedSlotID: swap.RequestedSlotID,
		Status:          models.SwapStatusCancelled,
		SlotAction:      models.EventActionSwapCancelled,
		ResolvedAt:      resolvedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel swap request")
	}

	swap.Status = models.SwapStatusCancelled
	swap.CancelledAt = &resolvedAt

	s.recordTransition("cancelled")
	s.invalidateListings(ctx)

	requesterName := s.lookupName(ctx, swap.RequesterUserID)
	s.notify(ctx, models.Notification{
		UserID:  swap.RequestedUserID,
		Type:    models.NotificationSwapCancelled,
		Title:   "Swap Request Cancelled",
		Message: fmt.Sprintf("%s cancelled their swap request", requesterName),
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   swap.ID,
		},
	})

	return swap, nil
}

func (s *SwapService) accept(ctx context.Context, swap *models.SwapRequest, responseMessage string) (*models.SwapRequest, error) {
	requesterSlot, err := s.loadSlot(ctx, swap.RequesterSlotID, "requester slot not found")
	if err != nil {
		return nil, err
	}
	requestedSlot, err := s.loadSlot(ctx, swap.RequestedSlotID, "requested slot not found")
	if err != nil {
		return nil, err
	}

	respondedAt := s.now()
	params := repository.AcceptSwapParams{
		RequestID:       swap.ID,
		RequesterSlotID: requesterSlot.ID,
		RequestedSlotID: requestedSlot.ID,
		RequesterTimes:  models.TimeWindow{Start: requesterSlot.StartTime, End: requesterSlot.EndTime},
		RequestedTimes:  models.TimeWindow{Start: requestedSlot.StartTime, End: requestedSlot.EndTime},
		ResponseMessage: responseMessage,
		RespondedAt:     respondedAt,
	}
	if err := s.swaps.Accept(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept swap request")
	}

	swap.Status = models.SwapStatusAccepted
	swap.ResponseMessage = &responseMessage
	swap.RespondedAt = &respondedAt
	swap.CompletedAt = &respondedAt
	swap.OriginalTimes = &models.OriginalTimes{
		Requester: params.RequesterTimes,
		Requested: params.RequestedTimes,
	}

	s.recordTransition("accepted")
	s.invalidateListings(ctx)

	responderName := s.lookupName(ctx, swap.RequestedUserID)
	s.notify(ctx, models.Notification{
		UserID:  swap.RequesterUserID,
		Type:    models.NotificationSwapAccepted,
		Title:   "Swap Request Accepted!",
		Message: fmt.Sprintf("%s accepted your swap request. Your schedules have been updated.", responderName),
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   swap.ID,
		},
	})
	s.notify(ctx, models.Notification{
		UserID:  swap.RequestedUserID,
		Type:    models.NotificationSwapCompleted,
		Title:   "Swap Completed!",
		Message: fmt.Sprintf("You swapped %q with %q", requestedSlot.Title, requesterSlot.Title),
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   swap.ID,
		},
	})

	return swap, nil
}

func (s *SwapService) reject(ctx context.Context, swap *models.SwapRequest, responseMessage string) (*models.SwapRequest, error) {
	if responseMessage == "" {
		responseMessage = defaultRejectMessage
	}

	respondedAt := s.now()
	err := s.swaps.Revert(ctx, repository.RevertSwapParams{
		RequestID:       swap.ID,
		RequesterSlotID: swap.RequesterSlotID,
		RequestedSlotID: swap.RequestedSlotID,
		Status:          models.SwapStatusRejected,
		SlotAction:      models.EventActionSwapRejected,
		ResponseMessage: responseMessage,
		ResolvedAt:      respondedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject swap request")
	}

	swap.Status = models.SwapStatusRejected
	swap.ResponseMessage = &responseMessage
	swap.RespondedAt = &respondedAt
	swap.CompletedAt = &respondedAt

	s.recordTransition("rejected")
	s.invalidateListings(ctx)

	responderName := s.lookupName(ctx, swap.RequestedUserID)
	s.notify(ctx, models.Notification{
		UserID:  swap.RequesterUserID,
		Type:    models.NotificationSwapRejected,
		Title:   "Swap Request Declined",
		Message: fmt.Sprintf("%s declined your swap request: %s", responderName, responseMessage),
		RelatedRef: models.RelatedRef{
			Kind: models.RelatedSwapRequest,
			ID:   swap.ID,
		},
	})

	return swap, nil
}

// History returns the caller's swap requests, newest first, with a status
// summary over the caller's full ledger regardless of the filter.
func (s *SwapService) History(ctx context.Context, userID string, query dto.SwapHistoryQuery) ([]models.SwapRequest, models.SwapSummary, models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, models.SwapSummary{}, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history query")
	}

	filter := models.SwapHistoryFilter{
		UserID:   userID,
		Status:   models.SwapStatus(query.Status),
		Page:     query.Page,
		PageSize: query.Limit,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}

	swaps, total, err := s.swaps.ListHistory(ctx, filter)
	if err != nil {
		return nil, models.SwapSummary{}, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap history")
	}
	summary, err := s.swaps.StatusSummary(ctx, userID)
	if err != nil {
		return nil, models.SwapSummary{}, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise swap history")
	}

	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return swaps, summary, pagination, nil
}

// Inbox returns the caller's pending traffic split by direction.
func (s *SwapService) Inbox(ctx context.Context, userID string) (models.SwapInbox, error) {
	incoming, err := s.swaps.ListIncoming(ctx, userID)
	if err != nil {
		return models.SwapInbox{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incoming swaps")
	}
	outgoing, err := s.swaps.ListOutgoing(ctx, userID)
	if err != nil {
		return models.SwapInbox{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outgoing swaps")
	}
	return models.SwapInbox{Incoming: incoming, Outgoing: outgoing}, nil
}

func (s *SwapService) loadSlot(ctx context.Context, id, notFoundMessage string) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFoundMessage)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return event, nil
}

func (s *SwapService) loadSwap(ctx context.Context, id string) (*models.SwapRequest, error) {
	swap, err := s.swaps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	return swap, nil
}

func (s *SwapService) lookupName(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve user name for notification", zap.String("user_id", userID), zap.Error(err))
		return "Someone"
	}
	return user.Name
}

func (s *SwapService) notify(ctx context.Context, n models.Notification) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}

func (s *SwapService) recordTransition(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSwapTransition(outcome)
	}
}

func (s *SwapService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, swappableSlotsPattern); err != nil {
		s.logger.Warn("failed to invalidate slot listings", zap.Error(err))
	}
}
