package alerts

import (
	"context"
	"strings"

	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/noteservice"
	"github.com/starford/nightingale/internal/writequeue"
)

// NoteCategory is the note category used for alert resolution notes.
const NoteCategory = "Alert"

// NoteAdder adds case notes.
type NoteAdder interface {
	AddNote(ctx context.Context, caseID string, in noteservice.NoteInput) (models.Note, error)
}

// Resolver applies alert status changes through a write queue keyed by alert
// id, so changes to the same alert land in the order they were made.
type Resolver struct {
	alerts *Service
	notes  NoteAdder
	queue  *writequeue.Queue
}

// NewResolver creates a Resolver.
func NewResolver(alerts *Service, notes NoteAdder, queue *writequeue.Queue) *Resolver {
	return &Resolver{alerts: alerts, notes: notes, queue: queue}
}

// Resolve queues the status change and waits for it. A non-empty note is
// added to the alert's case after the status is written. If ctx ends before
// the change runs, the change still lands and Resolve returns ctx's error
// with a zero record.
func (r *Resolver) Resolve(ctx context.Context, id string, upd StatusUpdate, note string) (models.AlertRecord, error) {
	result := make(chan models.AlertRecord, 1)
	err := r.queue.EnqueueAndWait(ctx, id, func(ctx context.Context) error {
		a, err := r.apply(ctx, id, upd, note)
		result <- a
		return err
	})
	select {
	case a := <-result:
		return a, err
	default:
		return models.AlertRecord{}, err
	}
}

// Submit queues the status change without waiting. Failures reach the
// queue's error callback.
func (r *Resolver) Submit(id string, upd StatusUpdate, note string) {
	r.queue.Enqueue(id, func(ctx context.Context) error {
		_, err := r.apply(ctx, id, upd, note)
		return err
	})
}

func (r *Resolver) apply(ctx context.Context, id string, upd StatusUpdate, note string) (models.AlertRecord, error) {
	note = strings.TrimSpace(note)
	var caseID string
	if note != "" && r.notes != nil {
		var err error
		if caseID, err = r.noteCase(ctx, id); err != nil {
			return models.AlertRecord{}, err
		}
	}

	a, err := r.alerts.UpdateAlertStatus(ctx, id, upd)
	if err != nil {
		return models.AlertRecord{}, err
	}
	if caseID == "" {
		return a, nil
	}
	_, err = r.notes.AddNote(ctx, caseID, noteservice.NoteInput{Category: NoteCategory, Content: note})
	return a, err
}

// noteCase finds the case a resolution note belongs to: the alert's own
// caseId, else the case its MCN matches now.
func (r *Resolver) noteCase(ctx context.Context, id string) (string, error) {
	m, err := r.alerts.GetAlert(ctx, id)
	if err != nil {
		return "", err
	}
	if m.CaseID != "" {
		return m.CaseID, nil
	}
	if m.MatchedCaseID != "" {
		return m.MatchedCaseID, nil
	}
	return "", apperr.Invalidf("alert %s has no matching case for a resolution note", id)
}
