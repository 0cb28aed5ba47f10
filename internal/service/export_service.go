package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/models"
	appErrors "github.com/slotswapper/slotswapper-api/pkg/errors"
	"github.com/slotswapper/slotswapper-api/pkg/export"
)

// ExportFormat identifies a supported export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries the rendered document and its HTTP metadata.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

type historyLister interface {
	History(ctx context.Context, userID string, query dto.SwapHistoryQuery) ([]models.SwapRequest, models.SwapSummary, models.Pagination, error)
}

// ExportService renders a user's swap history as a downloadable document.
type ExportService struct {
	swaps   historyLister
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	enabled bool
}

// NewExportService constructs the service.
func NewExportService(swaps historyLister, enabled bool) *ExportService {
	return &ExportService{
		swaps:   swaps,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		enabled: enabled,
	}
}

// Enabled reports whether history exports are switched on.
func (s *ExportService) Enabled() bool {
	return s != nil && s.enabled
}

// ExportHistory renders the caller's full swap history in the requested
// format.
func (s *ExportService) ExportHistory(ctx context.Context, userID string, format ExportFormat) (*ExportResult, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "history export is disabled")
	}

	// A single oversized page keeps the export a one-shot render.
	swaps, _, _, err := s.swaps.History(ctx, userID, dto.SwapHistoryQuery{Page: 1, Limit: 100})
	if err != nil {
		return nil, err
	}

	dataset := historyDataset(userID, swaps)
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("swap-history-%s.csv", stamp),
			Data:        data,
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Swap History")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("swap-history-%s.pdf", stamp),
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func historyDataset(userID string, swaps []models.SwapRequest) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Request ID", "Direction", "Status", "Message", "Response", "Created At", "Resolved At"},
	}
	for _, swap := range swaps {
		direction := "incoming"
		if swap.RequesterUserID == userID {
			direction = "outgoing"
		}
		response := ""
		if swap.ResponseMessage != nil {
			response = *swap.ResponseMessage
		}
		resolved := ""
		switch {
		case swap.CancelledAt != nil:
			resolved = swap.CancelledAt.Format(time.RFC3339)
		case swap.CompletedAt != nil:
			resolved = swap.CompletedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Request ID":  swap.ID,
			"Direction":   direction,
			"Status":      string(swap.Status),
			"Message":     strings.TrimSpace(swap.RequestMessage),
			"Response":    response,
			"Created At":  swap.CreatedAt.Format(time.RFC3339),
			"Resolved At": resolved,
		})
	}
	return dataset
}
