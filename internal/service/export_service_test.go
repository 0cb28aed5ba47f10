package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/models"
)

type historyListerStub struct {
	swaps []models.SwapRequest
}

func (h *historyListerStub) History(ctx context.Context, userID string, query dto.SwapHistoryQuery) ([]models.SwapRequest, models.SwapSummary, models.Pagination, error) {
	return h.swaps, models.SwapSummary{}, models.Pagination{}, nil
}

func exportFixture() *historyListerStub {
	message := "works for me"
	completed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return &historyListerStub{swaps: []models.SwapRequest{
		{
			ID:              "swap-1",
			RequesterUserID: aliceID,
			RequestedUserID: bobID,
			Status:          models.SwapStatusAccepted,
			RequestMessage:  "trade?",
			ResponseMessage: &message,
			CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			CompletedAt:     &completed,
		},
	}}
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(exportFixture(), true)

	result, err := svc.ExportHistory(context.Background(), aliceID, ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", result.ContentType)
	require.True(t, strings.HasSuffix(result.Filename, ".csv"))

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Request ID,Direction,Status,Message,Response,Created At,Resolved At", lines[0])
	require.Equal(t, "swap-1,outgoing,ACCEPTED,trade?,works for me,2026-03-01T08:00:00Z,2026-03-04T10:00:00Z", lines[1])
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(exportFixture(), true)

	result, err := svc.ExportHistory(context.Background(), bobID, ExportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", result.ContentType)
	require.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	require.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc := NewExportService(exportFixture(), true)

	_, err := svc.ExportHistory(context.Background(), aliceID, ExportFormat("xml"))
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestExportServiceDisabled(t *testing.T) {
	svc := NewExportService(exportFixture(), false)

	_, err := svc.ExportHistory(context.Background(), aliceID, ExportFormatCSV)
	requireCode(t, err, "NOT_FOUND")
}
