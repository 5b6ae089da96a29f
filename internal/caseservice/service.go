// Package caseservice implements case CRUD and bulk operations over the case
// document. Every mutation is one read and at most one write.
package caseservice

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/taxonomy"
)

// Repository is the document store the service reads and writes through.
type Repository interface {
	Read(ctx context.Context) (*models.NormalizedFileData, error)
	Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error)
}

// CaseInput carries the editable fields of a case.
type CaseInput struct {
	Name       string            `json:"name"`
	MCN        string            `json:"mcn"`
	Status     string            `json:"status"`
	Priority   bool              `json:"priority"`
	Person     models.Person     `json:"person"`
	CaseRecord models.CaseRecord `json:"caseRecord"`
}

// Validate checks the input after names have been derived.
func (in CaseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.MCN, validation.Length(0, 64)),
		validation.Field(&in.Status, validation.Length(0, 64)),
	)
}

// BulkResult reports the outcome of a bulk operation.
type BulkResult struct {
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	NotFound []string `json:"notFound"`
}

// Service manages cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
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

// NewService creates a case service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCases returns all cases in document order.
func (s *Service) ListCases(ctx context.Context) ([]models.Case, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Cases, nil
}

// GetCase returns one case.
func (s *Service) GetCase(ctx context.Context, id string) (models.Case, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Case{}, err
	}
	i := doc.FindCase(id)
	if i < 0 {
		return models.Case{}, apperr.NotFoundf("case %s", id)
	}
	return doc.Cases[i], nil
}

// CreateCase adds a case. An empty status takes the taxonomy default.
func (s *Service) CreateCase(ctx context.Context, in CaseInput) (models.Case, error) {
	created, err := s.CreateCases(ctx, []CaseInput{in})
	if err != nil {
		return models.Case{}, err
	}
	return created[0], nil
}

// CreateCases adds several cases in one write. Nothing is written if any
// input is invalid.
func (s *Service) CreateCases(ctx context.Context, inputs []CaseInput) ([]models.Case, error) {
	if len(inputs) == 0 {
		return []models.Case{}, nil
	}
	prepared := make([]CaseInput, len(inputs))
	for i, in := range inputs {
		prepared[i] = prepare(in)
		if err := prepared[i].Validate(); err != nil {
			return nil, apperr.Invalidf("case %d: %v", i, err)
		}
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	defaultStatus := taxonomy.DefaultStatus(doc.CategoryConfig)
	created := make([]models.Case, 0, len(inputs))
	for _, in := range prepared {
		c := models.Case{
			ID:         s.newID(),
			Name:       in.Name,
			MCN:        in.MCN,
			Status:     in.Status,
			Priority:   in.Priority,
			CreatedAt:  now,
			UpdatedAt:  now,
			Person:     in.Person,
			CaseRecord: in.CaseRecord,
		}
		if c.Status == "" {
			c.Status = defaultStatus
		}
		if c.Person.ID == "" {
			c.Person.ID = s.newID()
		}
		created = append(created, c)
	}
	doc.Cases = append(doc.Cases, created...)

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateCase replaces the editable fields of a case. Status and priority
// changes are logged.
func (s *Service) UpdateCase(ctx context.Context, id string, in CaseInput) (models.Case, error) {
	in = prepare(in)
	if err := in.Validate(); err != nil {
		return models.Case{}, apperr.Invalidf("case %s: %v", id, err)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Case{}, err
	}
	i := doc.FindCase(id)
	if i < 0 {
		return models.Case{}, apperr.NotFoundf("case %s", id)
	}

	now := s.now().UTC()
	prev := doc.Cases[i]
	next := prev
	next.Name = in.Name
	next.MCN = in.MCN
	next.Priority = in.Priority
	next.Person = in.Person
	next.CaseRecord = in.CaseRecord
	if next.Person.ID == "" {
		next.Person.ID = prev.Person.ID
	}
	if in.Status != "" {
		next.Status = in.Status
	}
	next.UpdatedAt = now

	var entries []models.ActivityLogEntry
	if next.Status != prev.Status {
		entries = append(entries, s.entry(now, next, models.StatusChange{FromStatus: prev.Status, ToStatus: next.Status}))
	}
	if next.Priority != prev.Priority {
		entries = append(entries, s.entry(now, next, models.PriorityChange{FromPriority: prev.Priority, ToPriority: next.Priority}))
	}

	doc.Cases[i] = next
	doc.ActivityLog = activity.Merge(doc.ActivityLog, entries)
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.Case{}, err
	}
	return next, nil
}

// UpdateCaseStatus sets one case's status. Setting the current status again
// is a no-op and writes nothing.
func (s *Service) UpdateCaseStatus(ctx context.Context, id, status string) (models.Case, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return models.Case{}, apperr.Invalidf("case %s: status is required", id)
	}
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Case{}, err
	}
	i := doc.FindCase(id)
	if i < 0 {
		return models.Case{}, apperr.NotFoundf("case %s", id)
	}
	if doc.Cases[i].Status == status {
		return doc.Cases[i], nil
	}

	now := s.now().UTC()
	next, entry := s.withStatus(doc.Cases[i], status, now)
	doc.Cases[i] = next
	doc.ActivityLog = activity.Merge(doc.ActivityLog, []models.ActivityLogEntry{entry})
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.Case{}, err
	}
	return next, nil
}

// UpdateCasePriority sets one case's priority flag. Unchanged values write nothing.
func (s *Service) UpdateCasePriority(ctx context.Context, id string, priority bool) (models.Case, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Case{}, err
	}
	i := doc.FindCase(id)
	if i < 0 {
		return models.Case{}, apperr.NotFoundf("case %s", id)
	}
	if doc.Cases[i].Priority == priority {
		return doc.Cases[i], nil
	}

	now := s.now().UTC()
	next, entry := s.withPriority(doc.Cases[i], priority, now)
	doc.Cases[i] = next
	doc.ActivityLog = activity.Merge(doc.ActivityLog, []models.ActivityLogEntry{entry})
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.Case{}, err
	}
	return next, nil
}

// DeleteCase removes a case together with its financials, notes and alerts.
func (s *Service) DeleteCase(ctx context.Context, id string) error {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return err
	}
	if doc.FindCase(id) < 0 {
		return apperr.NotFoundf("case %s", id)
	}
	cascade(doc, map[string]struct{}{id: {}})
	_, err = s.repo.Write(ctx, doc)
	return err
}

// DeleteCases removes several cases and everything referencing them in one write.
func (s *Service) DeleteCases(ctx context.Context, ids []string) (BulkResult, error) {
	ids = distinct(ids)
	result := BulkResult{NotFound: []string{}}
	if len(ids) == 0 {
		return result, nil
	}
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return BulkResult{}, err
	}

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if doc.FindCase(id) < 0 {
			result.NotFound = append(result.NotFound, id)
			continue
		}
		doomed[id] = struct{}{}
	}
	if len(doomed) == 0 {
		return result, nil
	}
	cascade(doc, doomed)
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return BulkResult{}, err
	}
	result.Deleted = len(doomed)
	return result, nil
}

// UpdateCasesStatus sets the status of several cases in one write. Cases
// already in the target status count as updated but are not logged.
func (s *Service) UpdateCasesStatus(ctx context.Context, ids []string, status string) (BulkResult, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return BulkResult{}, apperr.Invalidf("status is required")
	}
	return s.bulkUpdate(ctx, ids, func(c models.Case, now time.Time) (models.Case, *models.ActivityLogEntry) {
		if c.Status == status {
			return c, nil
		}
		next, entry := s.withStatus(c, status, now)
		return next, &entry
	})
}

// UpdateCasesPriority sets the priority flag of several cases in one write.
func (s *Service) UpdateCasesPriority(ctx context.Context, ids []string, priority bool) (BulkResult, error) {
	return s.bulkUpdate(ctx, ids, func(c models.Case, now time.Time) (models.Case, *models.ActivityLogEntry) {
		if c.Priority == priority {
			return c, nil
		}
		next, entry := s.withPriority(c, priority, now)
		return next, &entry
	})
}

// RecordCaseView logs that a case was opened.
func (s *Service) RecordCaseView(ctx context.Context, id string) error {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return err
	}
	i := doc.FindCase(id)
	if i < 0 {
		return apperr.NotFoundf("case %s", id)
	}
	entry := s.entry(s.now().UTC(), doc.Cases[i], models.CaseViewed{})
	doc.ActivityLog = activity.Merge(doc.ActivityLog, []models.ActivityLogEntry{entry})
	_, err = s.repo.Write(ctx, doc)
	return err
}

func (s *Service) bulkUpdate(ctx context.Context, ids []string, apply func(models.Case, time.Time) (models.Case, *models.ActivityLogEntry)) (BulkResult, error) {
	ids = distinct(ids)
	result := BulkResult{NotFound: []string{}}
	if len(ids) == 0 {
		return result, nil
	}
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return BulkResult{}, err
	}

	now := s.now().UTC()
	var entries []models.ActivityLogEntry
	for _, id := range ids {
		i := doc.FindCase(id)
		if i < 0 {
			result.NotFound = append(result.NotFound, id)
			continue
		}
		result.Updated++
		next, entry := apply(doc.Cases[i], now)
		if entry == nil {
			continue
		}
		doc.Cases[i] = next
		entries = append(entries, *entry)
	}
	if len(entries) == 0 {
		return result, nil
	}

	doc.ActivityLog = activity.Merge(doc.ActivityLog, entries)
	if _, err := s.repo.Write(ctx, doc); err != nil {
		return BulkResult{}, err
	}
	s.logger.Info("bulk case update",
		slog.Int("updated", result.Updated),
		slog.Int("changed", len(entries)),
		slog.Int("not_found", len(result.NotFound)))
	return result, nil
}

func (s *Service) withStatus(c models.Case, status string, now time.Time) (models.Case, models.ActivityLogEntry) {
	from := c.Status
	c.Status = status
	c.UpdatedAt = now
	return c, s.entry(now, c, models.StatusChange{FromStatus: from, ToStatus: status})
}

func (s *Service) withPriority(c models.Case, priority bool, now time.Time) (models.Case, models.ActivityLogEntry) {
	from := c.Priority
	c.Priority = priority
	c.UpdatedAt = now
	return c, s.entry(now, c, models.PriorityChange{FromPriority: from, ToPriority: priority})
}

func (s *Service) entry(now time.Time, c models.Case, p models.ActivityPayload) models.ActivityLogEntry {
	return activity.NewEntry(s.newID(), now, c, p)
}

// cascade drops the given cases and every financial, note and alert that
// references one of them. Activity entries are history and stay.
func cascade(doc *models.NormalizedFileData, ids map[string]struct{}) {
	doc.Cases = slices.DeleteFunc(doc.Cases, func(c models.Case) bool { return has(ids, c.ID) })
	doc.Financials = slices.DeleteFunc(doc.Financials, func(f models.FinancialItem) bool { return has(ids, f.CaseID) })
	doc.Notes = slices.DeleteFunc(doc.Notes, func(n models.Note) bool { return has(ids, n.CaseID) })
	doc.Alerts = slices.DeleteFunc(doc.Alerts, func(a models.AlertRecord) bool { return a.CaseID != "" && has(ids, a.CaseID) })
}

func has(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

// prepare trims the input and derives the case and person names from each other.
func prepare(in CaseInput) CaseInput {
	in.Name = strings.TrimSpace(in.Name)
	in.MCN = strings.TrimSpace(in.MCN)
	in.Status = strings.TrimSpace(in.Status)
	if in.Person.Name == "" {
		in.Person.Name = strings.TrimSpace(in.Person.FirstName + " " + in.Person.LastName)
	}
	if in.Name == "" {
		in.Name = in.Person.Name
	}
	if in.Person.Name == "" {
		in.Person.Name = in.Name
	}
	return in
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
