package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/middleware"
	"github.com/slotswapper/slotswapper-api/internal/models"
	"github.com/slotswapper/slotswapper-api/internal/repository"
	"github.com/slotswapper/slotswapper-api/internal/service"
)

const (
	testAliceID = "a1111111-1111-4111-8111-111111111111"
	testBobID   = "b2222222-2222-4222-8222-222222222222"

	testAliceSlotID = "11111111-1111-4111-8111-111111111111"
	testBobSlotID   = "22222222-2222-4222-8222-222222222222"
)

type swapLedgerStub struct {
	swaps map[string]*models.SwapRequest
}

func newSwapLedgerStub() *swapLedgerStub {
	return &swapLedgerStub{swaps: make(map[string]*models.SwapRequest)}
}

func (s *swapLedgerStub) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	if swap, ok := s.swaps[id]; ok {
		copy := *swap
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *swapLedgerStub) FindPendingBetween(ctx context.Context, slotA, slotB string) (*models.SwapRequest, error) {
	for _, swap := range s.swaps {
		if swap.Status != models.SwapStatusPending {
			continue
		}
		if (swap.RequesterSlotID == slotA && swap.RequestedSlotID == slotB) ||
			(swap.RequesterSlotID == slotB && swap.RequestedSlotID == slotA) {
			copy := *swap
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *swapLedgerStub) CreatePending(ctx context.Context, swap *models.SwapRequest) error {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	swap.Status = models.SwapStatusPending
	stored := *swap
	s.swaps[swap.ID] = &stored
	return nil
}

func (s *swapLedgerStub) Accept(ctx context.Context, params repository.AcceptSwapParams) error {
	swap, ok := s.swaps[params.RequestID]
	if !ok || swap.Status != models.SwapStatusPending {
		return sql.ErrNoRows
	}
	swap.Status = models.SwapStatusAccepted
	return nil
}

func (s *swapLedgerStub) Revert(ctx context.Context, params repository.RevertSwapParams) error {
	swap, ok := s.swaps[params.RequestID]
	if !ok || swap.Status != models.SwapStatusPending {
		return sql.ErrNoRows
	}
	swap.Status = params.Status
	return nil
}

func (s *swapLedgerStub) ListHistory(ctx context.Context, filter models.SwapHistoryFilter) ([]models.SwapRequest, int, error) {
	result := []models.SwapRequest{}
	for _, swap := range s.swaps {
		if swap.RequesterUserID == filter.UserID || swap.RequestedUserID == filter.UserID {
			result = append(result, *swap)
		}
	}
	return result, len(result), nil
}

func (s *swapLedgerStub) StatusSummary(ctx context.Context, userID string) (models.SwapSummary, error) {
	return models.SwapSummary{}, nil
}

func (s *swapLedgerStub) ListIncoming(ctx context.Context, userID string) ([]models.SwapRequest, error) {
	return nil, nil
}

func (s *swapLedgerStub) ListOutgoing(ctx context.Context, userID string) ([]models.SwapRequest, error) {
	return nil, nil
}

type slotLookupStub struct {
	slots map[string]*models.Event
}

func (s *slotLookupStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if slot, ok := s.slots[id]; ok {
		copy := *slot
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type nameLookupStub struct{}

func (nameLookupStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Name: "Someone"}, nil
}

type dropSinkStub struct{}

func (dropSinkStub) Notify(ctx context.Context, n models.Notification) error { return nil }

func marketplaceSlots() *slotLookupStub {
	return &slotLookupStub{slots: map[string]*models.Event{
		testAliceSlotID: {
			ID:        testAliceSlotID,
			OwnerID:   testAliceID,
			Title:     "Morning standup",
			StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Status:    models.EventStatusSwappable,
		},
		testBobSlotID: {
			ID:        testBobSlotID,
			OwnerID:   testBobID,
			Title:     "Design review",
			StartTime: time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC),
			Status:    models.EventStatusSwappable,
		},
	}}
}

func newTestSwapHandler(ledger *swapLedgerStub) *SwapHandler {
	swapSvc := service.NewSwapService(ledger, marketplaceSlots(), nameLookupStub{}, dropSinkStub{}, nil, nil, nil, nil)
	return NewSwapHandler(swapSvc, nil, nil)
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder, userID string, method, target string, body []byte) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID})
	return c
}

func TestSwapHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSwapLedgerStub()
	handler := newTestSwapHandler(ledger)

	payload, _ := json.Marshal(dto.CreateSwapRequest{
		MySlotID:    testAliceSlotID,
		TheirSlotID: testBobSlotID,
		Message:     "trade?",
	})
	w := httptest.NewRecorder()
	c := authedContext(t, w, testAliceID, http.MethodPost, "/swaps/requests", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, ledger.swaps, 1)
}

func TestSwapHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestSwapHandler(newSwapLedgerStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/swaps/requests", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSwapHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestSwapHandler(newSwapLedgerStub())

	w := httptest.NewRecorder()
	c := authedContext(t, w, testAliceID, http.MethodPost, "/swaps/requests", []byte(`{"my_slot_id":`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwapHandlerRespondForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSwapLedgerStub()
	ledger.swaps["swap-1"] = &models.SwapRequest{
		ID:              "swap-1",
		RequesterSlotID: testAliceSlotID,
		RequestedSlotID: testBobSlotID,
		RequesterUserID: testAliceID,
		RequestedUserID: testBobID,
		Status:          models.SwapStatusPending,
	}
	handler := newTestSwapHandler(ledger)

	payload, _ := json.Marshal(dto.RespondSwapRequest{Accept: true})
	w := httptest.NewRecorder()
	c := authedContext(t, w, testAliceID, http.MethodPost, "/swaps/requests/swap-1/response", payload)
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}

	handler.Respond(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSwapHandlerCancelAlreadyProcessed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSwapLedgerStub()
	ledger.swaps["swap-1"] = &models.SwapRequest{
		ID:              "swap-1",
		RequesterUserID: testAliceID,
		RequestedUserID: testBobID,
		Status:          models.SwapStatusAccepted,
	}
	handler := newTestSwapHandler(ledger)

	w := httptest.NewRecorder()
	c := authedContext(t, w, testAliceID, http.MethodDelete, "/swaps/requests/swap-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSwapHandlerHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newSwapLedgerStub()
	ledger.swaps["swap-1"] = &models.SwapRequest{
		ID:              "swap-1",
		RequesterUserID: testAliceID,
		RequestedUserID: testBobID,
		Status:          models.SwapStatusAccepted,
	}
	handler := newTestSwapHandler(ledger)

	w := httptest.NewRecorder()
	c := authedContext(t, w, testAliceID, http.MethodGet, "/swaps/history", nil)

	handler.History(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Requests []models.SwapRequest `json:"requests"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Requests, 1)
}
