// Package financialservice manages the resource, income and expense items of a case.
package financialservice

import (
	"context"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
)

// Repository is the document store the service reads and writes through.
type Repository interface {
	Read(ctx context.Context) (*models.NormalizedFileData, error)
	Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error)
}

// ItemInput carries the editable fields of a financial item.
type ItemInput struct {
	Category           string  `json:"category"`
	Description        string  `json:"description"`
	Location           string  `json:"location"`
	AccountNumber      string  `json:"accountNumber"`
	Amount             float64 `json:"amount"`
	Frequency          string  `json:"frequency"`
	Owner              string  `json:"owner"`
	VerificationStatus string  `json:"verificationStatus"`
	VerificationSource string  `json:"verificationSource"`
	Notes              string  `json:"notes"`
}

// Validate checks the input.
func (in ItemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Category, validation.Required,
			validation.In(models.CategoryResources, models.CategoryIncome, models.CategoryExpenses)),
		validation.Field(&in.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Amount, validation.Min(0.0)),
	)
}

// Service manages financial items.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// NewService creates a financial service. Nil now/newID use the wall clock and UUIDs.
func NewService(repo Repository, now func() time.Time, newID func() string) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{repo: repo, now: now, newID: newID}
}

// ListItems returns a case's items, optionally restricted to one category.
func (s *Service) ListItems(ctx context.Context, caseID, category string) ([]models.FinancialItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	if doc.FindCase(caseID) < 0 {
		return nil, apperr.NotFoundf("case %s", caseID)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	items := []models.FinancialItem{}
	for _, f := range doc.Financials {
		if f.CaseID != caseID || (category != "" && f.Category != category) {
			continue
		}
		items = append(items, f)
	}
	return items, nil
}

// Totals sums a case's items per category.
func (s *Service) Totals(ctx context.Context, caseID string) (map[string]float64, error) {
	items, err := s.ListItems(ctx, caseID, "")
	if err != nil {
		return nil, err
	}
	totals := map[string]float64{
		models.CategoryResources: 0,
		models.CategoryIncome:    0,
		models.CategoryExpenses:  0,
	}
	for _, f := range items {
		totals[f.Category] += f.Amount
	}
	return totals, nil
}

// AddItem attaches an item to a case.
func (s *Service) AddItem(ctx context.Context, caseID string, in ItemInput) (models.FinancialItem, error) {
	in = prepare(in)
	if err := in.Validate(); err != nil {
		return models.FinancialItem{}, apperr.Invalidf("financial item: %v", err)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.FinancialItem{}, err
	}
	ci := doc.FindCase(caseID)
	if ci < 0 {
		return models.FinancialItem{}, apperr.NotFoundf("case %s", caseID)
	}

	now := s.now().UTC()
	item := apply(models.FinancialItem{ID: s.newID(), CaseID: caseID, CreatedAt: now}, in)
	item.UpdatedAt = now
	doc.Financials = append(doc.Financials, item)
	doc.Cases[ci].UpdatedAt = now

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.FinancialItem{}, err
	}
	return item, nil
}

// UpdateItem replaces the editable fields of an item.
func (s *Service) UpdateItem(ctx context.Context, caseID, itemID string, in ItemInput) (models.FinancialItem, error) {
	in = prepare(in)
	if err := in.Validate(); err != nil {
		return models.FinancialItem{}, apperr.Invalidf("financial item: %v", err)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.FinancialItem{}, err
	}
	ci, fi, err := locate(doc, caseID, itemID)
	if err != nil {
		return models.FinancialItem{}, err
	}

	now := s.now().UTC()
	item := apply(doc.Financials[fi], in)
	item.UpdatedAt = now
	doc.Financials[fi] = item
	doc.Cases[ci].UpdatedAt = now

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.FinancialItem{}, err
	}
	return item, nil
}

// DeleteItem removes an item from a case.
func (s *Service) DeleteItem(ctx context.Context, caseID, itemID string) error {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return err
	}
	ci, fi, err := locate(doc, caseID, itemID)
	if err != nil {
		return err
	}
	doc.Financials = slices.Delete(doc.Financials, fi, fi+1)
	doc.Cases[ci].UpdatedAt = s.now().UTC()
	_, err = s.repo.Write(ctx, doc)
	return err
}

func locate(doc *models.NormalizedFileData, caseID, itemID string) (caseIdx, itemIdx int, err error) {
	caseIdx = doc.FindCase(caseID)
	if caseIdx < 0 {
		return 0, 0, apperr.NotFoundf("case %s", caseID)
	}
	itemIdx = slices.IndexFunc(doc.Financials, func(f models.FinancialItem) bool {
		return f.ID == itemID && f.CaseID == caseID
	})
	if itemIdx < 0 {
		return 0, 0, apperr.NotFoundf("financial item %s", itemID)
	}
	return caseIdx, itemIdx, nil
}

func apply(item models.FinancialItem, in ItemInput) models.FinancialItem {
	item.Category = in.Category
	item.Description = in.Description
	item.Location = in.Location
	item.AccountNumber = in.AccountNumber
	item.Amount = in.Amount
	item.Frequency = in.Frequency
	item.Owner = in.Owner
	item.VerificationStatus = in.VerificationStatus
	item.VerificationSource = in.VerificationSource
	item.Notes = in.Notes
	return item
}

func prepare(in ItemInput) ItemInput {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Description = strings.TrimSpace(in.Description)
	if in.VerificationStatus == "" {
		in.VerificationStatus = "Needs VR"
	}
	return in
}
