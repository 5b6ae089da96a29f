package activity

import (
	"sort"
	"strings"
	"time"

	"github.com/starford/nightingale/internal/models"
)

// Totals aggregates a report's entries by type.
type Totals struct {
	Total           int `json:"total"`
	StatusChanges   int `json:"statusChanges"`
	PriorityChanges int `json:"priorityChanges"`
	NotesAdded      int `json:"notesAdded"`
	CaseViews       int `json:"caseViews"`
	CasesTouched    int `json:"casesTouched"`
}

// CaseActivity groups one case's entries within a report.
type CaseActivity struct {
	CaseID        string                    `json:"caseId"`
	CaseName      string                    `json:"caseName"`
	CaseMCN       string                    `json:"caseMcn"`
	ActivityCount int                       `json:"activityCount"`
	Entries       []models.ActivityLogEntry `json:"entries"`
}

// DailyReport is the activity of one UTC calendar day.
type DailyReport struct {
	Date    string                    `json:"date"`
	Totals  Totals                    `json:"totals"`
	Entries []models.ActivityLogEntry `json:"entries"`
	Cases   []CaseActivity            `json:"cases"`
}

// BuildDailyReport selects the entries whose timestamp falls on the UTC day of
// date, independent of the viewer's time zone. Entries with unparsable
// timestamps never belong to any day.
func BuildDailyReport(log []models.ActivityLogEntry, date time.Time) DailyReport {
	key := DayKey(date)
	report := DailyReport{
		Date:    key,
		Entries: []models.ActivityLogEntry{},
		Cases:   []CaseActivity{},
	}

	byCase := make(map[string]*CaseActivity)
	var order []string
	for _, e := range log {
		t, ok := e.Time()
		if !ok || DayKey(t) != key {
			continue
		}
		report.Entries = append(report.Entries, e)
		report.Totals.Total++
		switch e.Payload.(type) {
		case models.StatusChange:
			report.Totals.StatusChanges++
		case models.PriorityChange:
			report.Totals.PriorityChanges++
		case models.NoteAdded:
			report.Totals.NotesAdded++
		case models.CaseViewed:
			report.Totals.CaseViews++
		}

		ca, ok := byCase[e.CaseID]
		if !ok {
			ca = &CaseActivity{CaseID: e.CaseID, CaseName: e.CaseName, CaseMCN: e.CaseMCN}
			byCase[e.CaseID] = ca
			order = append(order, e.CaseID)
		}
		ca.ActivityCount++
		ca.Entries = append(ca.Entries, e)
	}
	Sort(report.Entries)

	for _, id := range order {
		ca := byCase[id]
		Sort(ca.Entries)
		report.Cases = append(report.Cases, *ca)
	}
	sort.SliceStable(report.Cases, func(i, j int) bool {
		a, b := report.Cases[i], report.Cases[j]
		if a.ActivityCount != b.ActivityCount {
			return a.ActivityCount > b.ActivityCount
		}
		return strings.ToLower(a.CaseName) < strings.ToLower(b.CaseName)
	})
	report.Totals.CasesTouched = len(report.Cases)
	return report
}

// ClearDay returns log without the entries that fall on the UTC day of date,
// and the number removed. Entries with unparsable timestamps are kept and
// reported in skipped.
func ClearDay(log []models.ActivityLogEntry, date time.Time) (kept []models.ActivityLogEntry, removed int, skipped []models.ActivityLogEntry) {
	key := DayKey(date)
	kept = make([]models.ActivityLogEntry, 0, len(log))
	for _, e := range log {
		t, ok := e.Time()
		if !ok {
			skipped = append(skipped, e)
			kept = append(kept, e)
			continue
		}
		if DayKey(t) == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed, skipped
}
