// Package migrate converts documents written by older releases to the
// current normalized format. It only runs when asked to; the store never
// upgrades a document on its own.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
	"github.com/starford/nightingale/internal/taxonomy"
)

// Result describes one conversion.
type Result struct {
	Shape      store.Shape                `json:"shape"`
	Version    string                     `json:"version,omitempty"`
	Changed    bool                       `json:"changed"`
	Cases      int                        `json:"cases"`
	Financials int                        `json:"financials"`
	Notes      int                        `json:"notes"`
	Skipped    int                        `json:"skipped"`
	Doc        *models.NormalizedFileData `json:"-"`
}

// Converter turns legacy bytes into a current document.
type Converter struct {
	now   time.Time
	newID func() string
}

// NewConverter returns a converter stamping missing dates with now.
// A nil newID uses UUIDs.
func NewConverter(now time.Time, newID func() string) *Converter {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Converter{now: now.UTC(), newID: newID}
}

// Convert detects the layout of data and converts it.
func (c *Converter) Convert(data []byte) (*Result, error) {
	shape, version, err := store.DetectShape(data)
	if err != nil {
		return nil, err
	}
	res := &Result{Shape: shape, Version: version, Changed: true}

	switch shape {
	case store.ShapeEmpty:
		res.Doc = store.Empty()
	case store.ShapeCurrent:
		doc, err := store.Decode(data)
		if err != nil {
			return nil, err
		}
		res.Doc = doc
		res.Changed = false
	case store.ShapeCaseArray:
		var cases []legacyCase
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("migrate: decode case array: %w", err)
		}
		res.Doc = store.Empty()
		for _, lc := range cases {
			c.addCase(res, lc)
		}
	case store.ShapeNestedCaseRecords:
		var wrapper struct {
			Cases []legacyCase `json:"cases"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("migrate: decode nested cases: %w", err)
		}
		doc, err := decodeFlat(data, "cases")
		if err != nil {
			return nil, err
		}
		res.Doc = doc
		for _, lc := range wrapper.Cases {
			c.addCase(res, lc)
		}
	case store.ShapeNightingaleRaw:
		var raw rawNightingale
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("migrate: decode raw export: %w", err)
		}
		res.Doc = store.Empty()
		c.addRaw(res, raw)
	case store.ShapeVersionMismatch, store.ShapeUnversioned:
		doc, err := decodeFlat(data)
		if err != nil {
			return nil, err
		}
		res.Doc = doc
	default:
		return nil, fmt.Errorf("migrate: unsupported shape %q", shape)
	}

	res.Doc.Version = models.CurrentVersion
	res.Doc.EnsureCollections()
	res.Doc.CategoryConfig = taxonomy.Normalize(res.Doc.CategoryConfig)
	res.Cases = len(res.Doc.Cases)
	res.Financials = len(res.Doc.Financials)
	res.Notes = len(res.Doc.Notes)
	return res, nil
}

// decodeFlat decodes a document whose collections already have the current
// layout, ignoring the named keys.
func decodeFlat(data []byte, skip ...string) (*models.NormalizedFileData, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("migrate: decode document: %w", err)
	}
	for _, k := range append(skip, "version") {
		delete(top, k)
	}
	if _, ok := top["categoryConfig"]; !ok {
		top["categoryConfig"], _ = json.Marshal(taxonomy.DefaultConfig())
	}
	clean, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("migrate: re-encode document: %w", err)
	}
	var doc models.NormalizedFileData
	if err := json.Unmarshal(clean, &doc); err != nil {
		return nil, fmt.Errorf("migrate: decode document: %w", err)
	}
	return &doc, nil
}

func (c *Converter) addRaw(res *Result, raw rawNightingale) {
	people := make(map[string]legacyPerson, len(raw.People))
	for _, p := range raw.People {
		people[p.ID] = p
	}
	records := raw.CaseRecords
	if len(records) == 0 {
		records = raw.Cases
	}
	for _, rec := range records {
		p, ok := people[rec.PersonID]
		if !ok || rec.PersonID == "" {
			res.Skipped++
			continue
		}
		created := parseTime(firstNonEmpty(rec.CreatedDate, rec.CreatedAt, rec.ApplicationDate, rec.DateOpened), c.now)
		c.addCase(res, legacyCase{
			ID:         rec.ID,
			MCN:        rec.MCN,
			Status:     NormalizeStatus(rec.Status),
			Priority:   rec.Priority,
			CreatedAt:  created.Format(time.RFC3339Nano),
			UpdatedAt:  firstNonEmpty(rec.UpdatedDate, rec.LastUpdated),
			Person:     p,
			CaseRecord: rec,
		})
	}
}

// addCase flattens one nested case into the document's collections.
func (c *Converter) addCase(res *Result, lc legacyCase) {
	doc := res.Doc
	created := parseTime(lc.CreatedAt, c.now)
	updated := parseTime(lc.UpdatedAt, created)

	person := models.Person{
		ID:                firstNonEmpty(lc.Person.ID, c.newID()),
		FirstName:         lc.Person.FirstName,
		LastName:          lc.Person.LastName,
		Name:              firstNonEmpty(lc.Person.Name, strings.TrimSpace(lc.Person.FirstName+" "+lc.Person.LastName)),
		Email:             lc.Person.Email,
		Phone:             lc.Person.Phone,
		DateOfBirth:       dateOnly(lc.Person.DateOfBirth),
		LivingArrangement: lc.Person.LivingArrangement,
		Address: models.Address{
			Street: lc.Person.Address.Street,
			City:   lc.Person.Address.City,
			State:  lc.Person.Address.State,
			Zip:    firstNonEmpty(lc.Person.Address.Zip, lc.Person.Address.ZipCode),
		},
	}
	rec := lc.CaseRecord
	cs := models.Case{
		ID:        firstNonEmpty(lc.ID, rec.ID, c.newID()),
		Name:      firstNonEmpty(lc.Name, person.Name),
		MCN:       firstNonEmpty(lc.MCN, rec.MCN),
		Status:    firstNonEmpty(lc.Status, rec.Status, "In Progress"),
		Priority:  bool(lc.Priority || rec.Priority),
		CreatedAt: created,
		UpdatedAt: updated,
		Person:    person,
		CaseRecord: models.CaseRecord{
			ApplicationDate:   firstNonEmpty(rec.ApplicationDate, rec.DateOpened),
			CaseType:          rec.CaseType,
			Description:       rec.Description,
			LivingArrangement: firstNonEmpty(rec.LivingArrangement, person.LivingArrangement),
			WithWaiver:        bool(rec.WithWaiver),
			AdmissionDate:     rec.AdmissionDate,
			OrganizationID:    rec.OrganizationID,
			RetroRequested:    rec.RetroRequested,
		},
	}
	if doc.FindCase(cs.ID) >= 0 {
		cs.ID = c.newID()
	}
	doc.Cases = append(doc.Cases, cs)

	for _, fin := range []*legacyFinancials{rec.Financials, lc.Financials} {
		if fin == nil {
			continue
		}
		c.addItems(doc, cs.ID, models.CategoryResources, fin.Resources)
		c.addItems(doc, cs.ID, models.CategoryIncome, fin.Income)
		c.addItems(doc, cs.ID, models.CategoryExpenses, fin.Expenses)
	}
	for _, notes := range [][]legacyNote{rec.Notes, lc.Notes} {
		for _, n := range notes {
			nc := parseTime(n.CreatedAt, created)
			doc.Notes = append(doc.Notes, models.Note{
				ID:        firstNonEmpty(n.ID, c.newID()),
				CaseID:    cs.ID,
				Category:  firstNonEmpty(n.Category, "General"),
				Content:   firstNonEmpty(n.Content, n.Text),
				CreatedAt: nc,
				UpdatedAt: parseTime(n.UpdatedAt, nc),
			})
		}
	}
}

func (c *Converter) addItems(doc *models.NormalizedFileData, caseID, category string, items []legacyItem) {
	for _, it := range items {
		created := parseTime(firstNonEmpty(it.CreatedAt, it.DateAdded), c.now)
		doc.Financials = append(doc.Financials, models.FinancialItem{
			ID:                 firstNonEmpty(it.ID, c.newID()),
			CaseID:             caseID,
			Category:           category,
			Description:        firstNonEmpty(it.Description, it.Name),
			Location:           it.Location,
			AccountNumber:      it.AccountNumber,
			Amount:             float64(it.Amount),
			Frequency:          it.Frequency,
			Owner:              it.Owner,
			VerificationStatus: firstNonEmpty(it.VerificationStatus, "Needs VR"),
			VerificationSource: it.VerificationSource,
			Notes:              it.Notes,
			CreatedAt:          created,
			UpdatedAt:          parseTime(it.UpdatedAt, created),
		})
	}
}

func dateOnly(s string) string {
	t := parseTime(s, time.Time{})
	if t.IsZero() {
		return s
	}
	return t.Format(time.DateOnly)
}

// Options controls Run.
type Options struct {
	// Source, when set, is converted instead of the provider's document.
	Source []byte
	// BackupPath receives the document being replaced before anything is
	// written, whether or not Source is set.
	BackupPath string
	// DryRun converts without writing.
	DryRun bool
}

// Run converts the document held by p and writes the result back through a
// store over p.
func Run(ctx context.Context, p storage.Provider, conv *Converter, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// The provider read also records the revision the write is checked against.
	current, err := p.Read(ctx)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("migrate: read document: %w", err)
	}
	source := opts.Source
	if source == nil {
		source = current
	}

	res, err := conv.Convert(source)
	if err != nil {
		return nil, err
	}
	logger.Info("migrate: converted",
		slog.String("shape", string(res.Shape)),
		slog.Int("cases", res.Cases),
		slog.Int("financials", res.Financials),
		slog.Int("notes", res.Notes),
		slog.Int("skipped", res.Skipped))

	if opts.DryRun || (!res.Changed && opts.Source == nil) {
		return res, nil
	}
	if opts.BackupPath != "" && len(current) > 0 {
		if err := os.WriteFile(opts.BackupPath, current, 0o644); err != nil {
			return nil, fmt.Errorf("migrate: write backup: %w", err)
		}
		logger.Info("migrate: backup written", slog.String("path", opts.BackupPath))
	}

	written, err := store.New(p, store.WithLogger(logger)).Write(ctx, res.Doc)
	if err != nil {
		return nil, err
	}
	res.Doc = written
	return res, nil
}
