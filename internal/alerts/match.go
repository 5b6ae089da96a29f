// Package alerts imports external alert feeds and reconciles them with the
// case roster.
package alerts

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/taxonomy"
)

// NormalizeMCN trims and case-folds an MCN for comparison.
func NormalizeMCN(mcn string) string {
	return cases.Fold().String(strings.Join(strings.Fields(mcn), ""))
}

func normalizeDescription(d string) string {
	return taxonomy.Key(d)
}

// Key is the natural key alerts are merged on.
func Key(mcn, description string) string {
	return NormalizeMCN(mcn) + "\x00" + normalizeDescription(description)
}

// SplitName splits "Last, First" or "First ... Last" into first and last names.
func SplitName(full string) (first, last string) {
	full = strings.Join(strings.Fields(full), " ")
	if full == "" {
		return "", ""
	}
	if l, f, ok := strings.Cut(full, ","); ok {
		return strings.TrimSpace(f), strings.TrimSpace(l)
	}
	i := strings.LastIndex(full, " ")
	if i < 0 {
		return full, ""
	}
	return full[:i], full[i+1:]
}

// Roster indexes cases by normalized MCN. The first case wins on duplicates.
type Roster map[string]string

// NewRoster builds the MCN index of cases.
func NewRoster(cs []models.Case) Roster {
	r := make(Roster, len(cs))
	for _, c := range cs {
		k := NormalizeMCN(c.MCN)
		if k == "" {
			continue
		}
		if _, ok := r[k]; !ok {
			r[k] = c.ID
		}
	}
	return r
}

// Match derives the match fields of a by its MCN.
func (r Roster) Match(mcn string) (caseID string, status models.MatchStatus) {
	k := NormalizeMCN(mcn)
	if k == "" {
		return "", models.MatchMissingMCN
	}
	if id, ok := r[k]; ok {
		return id, models.MatchMatched
	}
	return "", models.MatchUnmatched
}

// WithMatch decorates alerts with their derived match fields.
func (r Roster) WithMatch(alerts []models.AlertRecord) []models.AlertWithMatch {
	out := make([]models.AlertWithMatch, len(alerts))
	for i, a := range alerts {
		id, st := r.Match(a.MCNumber)
		out[i] = models.AlertWithMatch{AlertRecord: a, MatchedCaseID: id, MatchStatus: st}
	}
	return out
}

// MergeResult is the outcome of merging import rows into existing alerts.
type MergeResult struct {
	Alerts  []models.AlertRecord
	Added   int
	Updated int
	// Orphans are the rows carrying an MCN that no case has, grouped by
	// normalized MCN in first-seen order.
	Orphans []OrphanGroup
}

// OrphanGroup collects unmatched rows sharing one MCN.
type OrphanGroup struct {
	MCN  string
	Rows []Row
}

// Name returns the first non-empty person name in the group.
func (g OrphanGroup) Name() string {
	for _, r := range g.Rows {
		if n := strings.TrimSpace(r.PersonName); n != "" {
			return n
		}
	}
	return ""
}

// Merge folds rows into existing on the (MCN, description) key. A repeated key
// updates the existing alert, keeping its status, resolvedAt and resolution
// notes unless the row supplies them; a new key adds an alert. existing is not
// modified.
func Merge(existing []models.AlertRecord, rows []Row, roster Roster, now time.Time, newID func() string) MergeResult {
	res := MergeResult{Alerts: make([]models.AlertRecord, len(existing), len(existing)+len(rows))}
	copy(res.Alerts, existing)

	byKey := make(map[string]int, len(existing))
	for i, a := range res.Alerts {
		byKey[Key(a.MCNumber, a.Description)] = i
	}
	addedNow := make(map[int]struct{})
	orphanIdx := make(map[string]int)

	for _, row := range rows {
		caseID, status := roster.Match(row.MCNumber)
		if status == models.MatchUnmatched {
			k := NormalizeMCN(row.MCNumber)
			gi, ok := orphanIdx[k]
			if !ok {
				gi = len(res.Orphans)
				orphanIdx[k] = gi
				res.Orphans = append(res.Orphans, OrphanGroup{MCN: row.MCNumber})
			}
			res.Orphans[gi].Rows = append(res.Orphans[gi].Rows, row)
		}

		key := Key(row.MCNumber, row.Description)
		if i, ok := byKey[key]; ok {
			res.Alerts[i] = update(res.Alerts[i], row, caseID, now)
			if _, fresh := addedNow[i]; !fresh {
				res.Updated++
			}
			continue
		}

		a := create(row, caseID, now, newID())
		byKey[key] = len(res.Alerts)
		addedNow[len(res.Alerts)] = struct{}{}
		res.Alerts = append(res.Alerts, a)
		res.Added++
	}
	return res
}

func create(row Row, caseID string, now time.Time, id string) models.AlertRecord {
	a := models.AlertRecord{
		ID:          id,
		MCNumber:    row.MCNumber,
		Description: row.Description,
		CaseID:      caseID,
		Status:      models.AlertStatusOpen,
		CreatedAt:   now,
	}
	return update(a, row, caseID, now)
}

func update(a models.AlertRecord, row Row, caseID string, now time.Time) models.AlertRecord {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.AlertCode, row.AlertCode)
	set(&a.MCNumber, row.MCNumber)
	set(&a.Description, row.Description)
	set(&a.PersonName, row.PersonName)
	set(&a.Program, row.Program)
	set(&a.Region, row.Region)
	set(&a.AlertDate, row.AlertDate)
	set(&a.DueDate, row.DueDate)
	if caseID != "" {
		a.CaseID = caseID
	}
	if row.Status != "" {
		status := ParseStatus(row.Status)
		if status != a.Status {
			a.Status = status
			if status == models.AlertStatusResolved {
				t := now
				a.ResolvedAt = &t
			} else {
				a.ResolvedAt = nil
			}
		}
	}
	set(&a.ResolutionNotes, row.ResolutionNotes)
	a.UpdatedAt = now
	return a
}

// ParseStatus maps free-form status text to an alert status.
func ParseStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "resolved", "closed", "cleared", "complete", "completed", "done":
		return models.AlertStatusResolved
	default:
		return models.AlertStatusOpen
	}
}
