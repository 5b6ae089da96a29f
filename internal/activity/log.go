// Package activity builds, merges and reports on the case activity log.
package activity

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/nightingale/internal/models"
)

// PreviewLength is the maximum number of runes kept in a note preview.
const PreviewLength = 100

// NewEntry builds an entry for c stamped at the given time.
func NewEntry(id string, at time.Time, c models.Case, payload models.ActivityPayload) models.ActivityLogEntry {
	return models.ActivityLogEntry{
		ID:        id,
		Timestamp: models.FormatTimestamp(at),
		CaseID:    c.ID,
		CaseName:  c.Name,
		CaseMCN:   c.MCN,
		Payload:   payload,
	}
}

// NoteAddedPayload builds the payload for a new note, including a preview.
func NoteAddedPayload(n models.Note) models.NoteAdded {
	return models.NoteAdded{
		NoteID:   n.ID,
		Category: n.Category,
		Preview:  Preview(n.Content),
		Content:  n.Content,
	}
}

// Preview collapses whitespace in content and truncates it to PreviewLength runes.
func Preview(content string) string {
	s := CollapseWhitespace(content)
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:PreviewLength])) + "..."
}

// CollapseWhitespace trims s and replaces internal whitespace runs with one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Merge concatenates additions onto current and re-sorts the result newest
// first. It does not deduplicate by ID; callers must not append twice.
func Merge(current, additions []models.ActivityLogEntry) []models.ActivityLogEntry {
	out := make([]models.ActivityLogEntry, 0, len(current)+len(additions))
	out = append(out, current...)
	out = append(out, additions...)
	Sort(out)
	return out
}

// Sort orders entries newest first. Entries with unparsable timestamps sort last,
// keeping their relative order.
func Sort(entries []models.ActivityLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, okI := entries[i].Time()
		tj, okJ := entries[j].Time()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// DayKey returns the UTC calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ForCase returns the entries that belong to caseID, preserving order.
func ForCase(entries []models.ActivityLogEntry, caseID string) []models.ActivityLogEntry {
	var out []models.ActivityLogEntry
	for _, e := range entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out
}
