package alerts

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/caseservice"
	"github.com/starford/nightingale/internal/models"
)

// SkeletonDescription marks cases created to anchor unmatched alerts.
const SkeletonDescription = "Auto-created from alert import"

// Repository is the document store the service reads and writes through.
type Repository interface {
	Read(ctx context.Context) (*models.NormalizedFileData, error)
	Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error)
}

// CaseCreator creates cases through the normal case path.
type CaseCreator interface {
	CreateCases(ctx context.Context, inputs []caseservice.CaseInput) ([]models.Case, error)
}

// Metrics records import outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	AlertsImported(added, updated, casesCreated int)
}

// ImportResult summarises one import.
type ImportResult struct {
	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Total        int `json:"total"`
	CasesCreated int `json:"casesCreated"`
}

// StatusUpdate changes the workflow state of one alert. A nil ResolvedAt on
// a resolve is stamped with the current time.
type StatusUpdate struct {
	Status          string     `json:"status"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNotes *string    `json:"resolutionNotes,omitempty"`
}

// Service imports and updates alerts.
type Service struct {
	repo    Repository
	cases   CaseCreator
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records import outcomes.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an alert service.
func NewService(repo Repository, cases CaseCreator, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cases:  cases,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportAlertsCSV merges the alerts in text into the document.
//
// The first pass matches rows against the roster and collects unmatched MCNs.
// A skeleton case is created for every such MCN that carries a person name,
// then the rows are merged again against the enlarged roster and written.
func (s *Service) ImportAlertsCSV(ctx context.Context, text string) (ImportResult, error) {
	rows, err := ParseCSV(text)
	if err != nil {
		return ImportResult{}, err
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	now := s.now().UTC()
	plan := Merge(doc.Alerts, rows, NewRoster(doc.Cases), now, s.newID)

	skeletons := s.skeletons(plan.Orphans)
	created := 0
	if len(skeletons) > 0 {
		cs, err := s.cases.CreateCases(ctx, skeletons)
		if err != nil {
			return ImportResult{}, err
		}
		created = len(cs)

		doc, err = s.repo.Read(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		plan = Merge(doc.Alerts, rows, NewRoster(doc.Cases), now, s.newID)
	}

	doc.Alerts = plan.Alerts
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{
		Added:        plan.Added,
		Updated:      plan.Updated,
		Total:        len(plan.Alerts),
		CasesCreated: created,
	}
	if s.metrics != nil {
		s.metrics.AlertsImported(res.Added, res.Updated, res.CasesCreated)
	}
	s.logger.Info("alerts imported",
		slog.Int("rows", len(rows)),
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("cases_created", res.CasesCreated))
	return res, nil
}

func (s *Service) skeletons(groups []OrphanGroup) []caseservice.CaseInput {
	var inputs []caseservice.CaseInput
	for _, g := range groups {
		name := g.Name()
		if name == "" {
			s.logger.Warn("unmatched alerts have no person name; no case created",
				slog.String("mcn", g.MCN),
				slog.Int("rows", len(g.Rows)))
			continue
		}
		first, last := SplitName(name)
		display := strings.TrimSpace(first + " " + last)
		inputs = append(inputs, caseservice.CaseInput{
			Name: display,
			MCN:  strings.TrimSpace(g.MCN),
			Person: models.Person{
				FirstName: first,
				LastName:  last,
				Name:      display,
			},
			CaseRecord: models.CaseRecord{Description: SkeletonDescription},
		})
	}
	return inputs
}

// ListAlerts returns every alert with its derived match fields.
func (s *Service) ListAlerts(ctx context.Context) ([]models.AlertWithMatch, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	return NewRoster(doc.Cases).WithMatch(doc.Alerts), nil
}

// AlertsForCase returns the alerts linked to a case, either by foreign key
// or by a matching MCN.
func (s *Service) AlertsForCase(ctx context.Context, caseID string) ([]models.AlertWithMatch, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	if doc.FindCase(caseID) < 0 {
		return nil, apperr.NotFoundf("case %s", caseID)
	}
	out := []models.AlertWithMatch{}
	for _, a := range NewRoster(doc.Cases).WithMatch(doc.Alerts) {
		if a.CaseID == caseID || a.MatchedCaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetAlert returns one alert with its match fields.
func (s *Service) GetAlert(ctx context.Context, id string) (models.AlertWithMatch, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.AlertWithMatch{}, err
	}
	i := slices.IndexFunc(doc.Alerts, func(a models.AlertRecord) bool { return a.ID == id })
	if i < 0 {
		return models.AlertWithMatch{}, apperr.NotFoundf("alert %s", id)
	}
	return NewRoster(doc.Cases).WithMatch(doc.Alerts[i : i+1])[0], nil
}

// UpdateAlertStatus changes one alert's workflow state and writes the
// document. It does not add a case note.
func (s *Service) UpdateAlertStatus(ctx context.Context, id string, upd StatusUpdate) (models.AlertRecord, error) {
	status := strings.ToLower(strings.TrimSpace(upd.Status))
	if status != models.AlertStatusOpen && status != models.AlertStatusResolved {
		return models.AlertRecord{}, apperr.Invalidf("alert %s: unknown status %q", id, upd.Status)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.AlertRecord{}, err
	}
	i := slices.IndexFunc(doc.Alerts, func(a models.AlertRecord) bool { return a.ID == id })
	if i < 0 {
		return models.AlertRecord{}, apperr.NotFoundf("alert %s", id)
	}

	now := s.now().UTC()
	a := doc.Alerts[i]
	a.Status = status
	switch {
	case status == models.AlertStatusOpen:
		a.ResolvedAt = nil
	case upd.ResolvedAt != nil:
		t := upd.ResolvedAt.UTC()
		a.ResolvedAt = &t
	case a.ResolvedAt == nil:
		a.ResolvedAt = &now
	}
	if upd.ResolutionNotes != nil {
		a.ResolutionNotes = *upd.ResolutionNotes
	}
	a.UpdatedAt = now
	doc.Alerts[i] = a

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.AlertRecord{}, err
	}
	return a, nil
}
