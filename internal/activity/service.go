package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/nightingale/internal/models"
)

// Repository is the document store the service reads and writes through.
type Repository interface {
	Read(ctx context.Context) (*models.NormalizedFileData, error)
	Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error)
}

// Service answers activity log queries over the document.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates an activity service. A nil logger uses slog.Default.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Log returns the whole activity log, newest first.
func (s *Service) Log(ctx context.Context) ([]models.ActivityLogEntry, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	Sort(doc.ActivityLog)
	return doc.ActivityLog, nil
}

// ForCase returns the activity of one case, newest first.
func (s *Service) ForCase(ctx context.Context, caseID string) ([]models.ActivityLogEntry, error) {
	log, err := s.Log(ctx)
	if err != nil {
		return nil, err
	}
	out := ForCase(log, caseID)
	if out == nil {
		out = []models.ActivityLogEntry{}
	}
	return out, nil
}

// DailyReport builds the report for the UTC day of date.
func (s *Service) DailyReport(ctx context.Context, date time.Time) (DailyReport, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return DailyReport{}, err
	}
	return BuildDailyReport(doc.ActivityLog, date), nil
}

// ExportDailyReport builds and serializes the report for the UTC day of date.
func (s *Service) ExportDailyReport(ctx context.Context, date time.Time, format Format) (string, error) {
	report, err := s.DailyReport(ctx, date)
	if err != nil {
		return "", err
	}
	return Serialize(report, format)
}

// ClearReportForDate deletes the entries of the UTC day of date and returns
// how many were removed. Entries with unparsable timestamps are never deleted.
func (s *Service) ClearReportForDate(ctx context.Context, date time.Time) (int, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return 0, err
	}

	kept, removed, skipped := ClearDay(doc.ActivityLog, date)
	for _, e := range skipped {
		s.logger.Warn("activity entry has unparsable timestamp; kept",
			slog.String("entry_id", e.ID),
			slog.String("timestamp", e.Timestamp))
	}
	if removed == 0 {
		return 0, nil
	}

	doc.ActivityLog = kept
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return 0, err
	}
	s.logger.Info("activity cleared",
		slog.String("date", DayKey(date)),
		slog.Int("removed", removed))
	return removed, nil
}
