package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/nightingale/internal/models"
)

// Format selects a report serialization.
type Format string

// Supported report formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// NoNoteActivity is the whole TXT output of a report without status changes or notes.
const NoNoteActivity = "No note activity recorded."

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatTXT:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("activity: unknown report format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// Serialize renders report in the requested format.
func Serialize(report DailyReport, format Format) (string, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("activity: encode report: %w", err)
		}
		return string(out), nil
	case FormatCSV:
		return toCSV(report), nil
	case FormatTXT:
		return toTXT(report), nil
	default:
		return "", fmt.Errorf("activity: unknown report format %q", format)
	}
}

// Detail renders a one-sentence description of an entry.
func Detail(e models.ActivityLogEntry) string {
	switch p := e.Payload.(type) {
	case models.StatusChange:
		return fmt.Sprintf("Status changed from %s to %s", orUnknown(p.FromStatus), orUnknown(p.ToStatus))
	case models.PriorityChange:
		return fmt.Sprintf("Priority changed from %s to %s", priorityLabel(p.FromPriority), priorityLabel(p.ToPriority))
	case models.NoteAdded:
		if p.Category == "" {
			return "Note added: " + p.Preview
		}
		return fmt.Sprintf("Note added (%s): %s", p.Category, p.Preview)
	case models.CaseViewed:
		return "Case viewed"
	default:
		return ""
	}
}

func toCSV(report DailyReport) string {
	lines := []string{"Timestamp,Case,MCN,Type,Detail"}
	for _, e := range report.Entries {
		fields := []string{e.Timestamp, e.CaseName, e.CaseMCN, string(e.Type()), Detail(e)}
		for i, f := range fields {
			fields[i] = csvQuote(f)
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n")
}

func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// toTXT renders the per-case narrative layout. Cases with neither status
// changes nor notes are left out.
func toTXT(report DailyReport) string {
	if report.Totals.StatusChanges == 0 && report.Totals.NotesAdded == 0 {
		return NoNoteActivity
	}

	var blocks []string
	for _, ca := range report.Cases {
		var (
			cleared  []models.StatusChange
			notes    = make(map[string][]string)
			catOrder []string
		)
		// Entries are stored newest first; the narrative reads oldest first.
		for i := len(ca.Entries) - 1; i >= 0; i-- {
			switch p := ca.Entries[i].Payload.(type) {
			case models.StatusChange:
				cleared = append(cleared, p)
			case models.NoteAdded:
				text := p.Content
				if text == "" {
					text = p.Preview
				}
				text = CollapseWhitespace(text)
				if text == "" {
					continue
				}
				cat := strings.TrimSpace(p.Category)
				if cat == "" {
					cat = "General"
				}
				if _, ok := notes[cat]; !ok {
					catOrder = append(catOrder, cat)
				}
				notes[cat] = append(notes[cat], text)
			case models.PriorityChange, models.CaseViewed:
			}
		}
		if len(cleared) == 0 && len(catOrder) == 0 {
			continue
		}

		lines := []string{caseHeader(ca), "", "Alerts Cleared:"}
		if len(cleared) == 0 {
			lines = append(lines, "None recorded.")
		}
		for i, sc := range cleared {
			lines = append(lines, strconv.Itoa(i+1)+". Alert marked "+orUnknown(sc.ToStatus)+" (previously "+orUnknown(sc.FromStatus)+")")
		}

		lines = append(lines, "", "Notes:")
		if len(catOrder) == 0 {
			lines = append(lines, "None recorded.")
		}
		for _, cat := range catOrder {
			lines = append(lines, cat+":")
			for _, n := range notes[cat] {
				lines = append(lines, "* "+n)
			}
		}
		lines = append(lines, "", "-----")
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func caseHeader(ca CaseActivity) string {
	name := ca.CaseName
	if strings.TrimSpace(name) == "" {
		name = "Unknown case"
	}
	mcn := strings.TrimSpace(ca.CaseMCN)
	if mcn == "" {
		return "No MC# - " + name
	}
	return mcn + " - " + name
}

func priorityLabel(p bool) string {
	if p {
		return "High"
	}
	return "Normal"
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
