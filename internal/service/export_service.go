package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/export"
)

// ExportFormat enumerates supported history formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type renderer interface {
	ContentType() string
	Render(data export.Dataset) ([]byte, error)
}

type historySource interface {
	GetDocument(ctx context.Context, id string, viewer models.Viewer) (*dto.DocumentDetail, error)
	ListVersions(ctx context.Context, documentID string, viewer models.Viewer) ([]models.Version, error)
}

var historyHeaders = []string{"Version", "Status", "Author role", "Author", "Comment", "Created at"}

// ExportService renders the version history of a document.
type ExportService struct {
	history historySource
	csv     renderer
	pdf     renderer
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(history historySource, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{history: history, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ExportHistory renders the history of documentID in the requested format.
func (s *ExportService) ExportHistory(ctx context.Context, documentID string, format ExportFormat, viewer models.Viewer) (*dto.HistoryExport, error) {
	var r renderer
	switch ExportFormat(strings.ToLower(string(format))) {
	case ExportFormatCSV:
		r, format = s.csv, ExportFormatCSV
	case ExportFormatPDF:
		r, format = s.pdf, ExportFormatPDF
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	detail, err := s.history.GetDocument(ctx, documentID, viewer)
	if err != nil {
		return nil, err
	}
	versions, err := s.history.ListVersions(ctx, documentID, viewer)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	data := buildHistoryDataset(detail.Document, versions, generatedAt)
	content, err := r.Render(data)
	if err != nil {
		s.logger.Error("render history export", zap.String("document_id", documentID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render history")
	}

	return &dto.HistoryExport{
		Filename:    fmt.Sprintf("%s-%s-history.%s", detail.Kind, sanitizeFilename(detail.StudentRecordID), format),
		ContentType: r.ContentType(),
		Content:     content,
		GeneratedAt: generatedAt,
	}, nil
}

func buildHistoryDataset(doc models.Document, versions []models.Version, generatedAt time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, map[string]string{
			"Version":     strconv.Itoa(v.VersionNumber),
			"Status":      string(v.Status),
			"Author role": string(v.AuthorRole),
			"Author":      v.AuthorEmail,
			"Comment":     v.Comment,
			"Created at":  v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{
		Title: fmt.Sprintf("%s history", strings.ReplaceAll(string(doc.Kind), "_", " ")),
		Subtitle: []string{
			fmt.Sprintf("Student record: %s", doc.StudentRecordID),
			fmt.Sprintf("Department: %s", doc.Department),
			fmt.Sprintf("Current status: %s (version %d)", doc.Status, doc.CurrentVersion),
			fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)),
		},
		Headers: historyHeaders,
		Rows:    rows,
	}
}

func sanitizeFilename(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(raw))
	if cleaned == "" {
		return "document"
	}
	return cleaned
}
