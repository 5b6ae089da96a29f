// Package noteservice manages case notes. Notes are events: adding the same
// text twice creates two notes and two activity entries.
package noteservice

import (
	"context"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
)

// DefaultCategory is used when a note is added without one.
const DefaultCategory = "General"

// Repository is the document store the service reads and writes through.
type Repository interface {
	Read(ctx context.Context) (*models.NormalizedFileData, error)
	Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error)
}

// NoteInput carries the editable fields of a note.
type NoteInput struct {
	Category string `json:"category"`
	Content  string `json:"content"`
}

// Validate checks the input.
func (in NoteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Category, validation.Length(0, 100)),
	)
}

// Service manages notes.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// NewService creates a note service. Nil now/newID use the wall clock and UUIDs.
func NewService(repo Repository, now func() time.Time, newID func() string) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{repo: repo, now: now, newID: newID}
}

// ListNotes returns a case's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, caseID string) ([]models.Note, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	if doc.FindCase(caseID) < 0 {
		return nil, apperr.NotFoundf("case %s", caseID)
	}
	notes := []models.Note{}
	for _, n := range doc.Notes {
		if n.CaseID == caseID {
			notes = append(notes, n)
		}
	}
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return notes, nil
}

// AddNote attaches a note to a case and logs a note-added entry.
func (s *Service) AddNote(ctx context.Context, caseID string, in NoteInput) (models.Note, error) {
	in = prepare(in)
	if err := in.Validate(); err != nil {
		return models.Note{}, apperr.Invalidf("note: %v", err)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Note{}, err
	}
	i := doc.FindCase(caseID)
	if i < 0 {
		return models.Note{}, apperr.NotFoundf("case %s", caseID)
	}

	now := s.now().UTC()
	note := models.Note{
		ID:        s.newID(),
		CaseID:    caseID,
		Category:  in.Category,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.Notes = append(doc.Notes, note)
	doc.Cases[i].UpdatedAt = now
	entry := activity.NewEntry(s.newID(), now, doc.Cases[i], activity.NoteAddedPayload(note))
	doc.ActivityLog = activity.Merge(doc.ActivityLog, []models.ActivityLogEntry{entry})

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// UpdateNote rewrites a note's category and content.
func (s *Service) UpdateNote(ctx context.Context, caseID, noteID string, in NoteInput) (models.Note, error) {
	in = prepare(in)
	if err := in.Validate(); err != nil {
		return models.Note{}, apperr.Invalidf("note: %v", err)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return models.Note{}, err
	}
	ci, ni, err := locate(doc, caseID, noteID)
	if err != nil {
		return models.Note{}, err
	}

	now := s.now().UTC()
	note := doc.Notes[ni]
	note.Category = in.Category
	note.Content = in.Content
	note.UpdatedAt = now
	doc.Notes[ni] = note
	doc.Cases[ci].UpdatedAt = now

	if _, err := s.repo.Write(ctx, doc); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// DeleteNote removes a note from a case.
func (s *Service) DeleteNote(ctx context.Context, caseID, noteID string) error {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return err
	}
	ci, ni, err := locate(doc, caseID, noteID)
	if err != nil {
		return err
	}
	doc.Notes = slices.Delete(doc.Notes, ni, ni+1)
	doc.Cases[ci].UpdatedAt = s.now().UTC()
	_, err = s.repo.Write(ctx, doc)
	return err
}

func locate(doc *models.NormalizedFileData, caseID, noteID string) (caseIdx, noteIdx int, err error) {
	caseIdx = doc.FindCase(caseID)
	if caseIdx < 0 {
		return 0, 0, apperr.NotFoundf("case %s", caseID)
	}
	noteIdx = slices.IndexFunc(doc.Notes, func(n models.Note) bool {
		return n.ID == noteID && n.CaseID == caseID
	})
	if noteIdx < 0 {
		return 0, 0, apperr.NotFoundf("note %s", noteID)
	}
	return caseIdx, noteIdx, nil
}

func prepare(in NoteInput) NoteInput {
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	in.Content = strings.TrimSpace(in.Content)
	return in
}
