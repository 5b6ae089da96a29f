// Package taxonomy normalizes the category configuration and keeps it in sync
// with the values that live data actually uses.
package taxonomy

import (
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/nightingale/internal/models"
)

// ColorSlots is the ordered palette status and alert-type colors are drawn from.
var ColorSlots = []string{
	"blue", "green", "red", "amber", "purple",
	"slate", "teal", "rose", "orange", "cyan",
}

// defaultStatusColors is the documented color table for well-known statuses.
var defaultStatusColors = map[string]string{
	"pending":     "amber",
	"active":      "green",
	"in progress": "blue",
	"priority":    "red",
	"review":      "purple",
	"approved":    "teal",
	"denied":      "rose",
	"closed":      "slate",
	"completed":   "slate",
	"spenddown":   "orange",
}

// completedStatuses seeds CountsAsCompleted for statuses that older
// configurations treated as terminal.
var completedStatuses = map[string]struct{}{
	"approved":  {},
	"denied":    {},
	"closed":    {},
	"completed": {},
	"spenddown": {},
	"resolved":  {},
}

// Key is the comparison form of a status or alert-type name: whitespace
// collapsed and Unicode case-folded. Alert descriptions are matched with the
// same key.
func Key(name string) string {
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// DefaultConfig returns the configuration used for a brand-new document.
func DefaultConfig() models.CategoryConfig {
	return Normalize(models.CategoryConfig{
		CaseTypes: []string{"LTC", "Waiver", "SIMP", "General"},
		CaseStatuses: []models.StatusConfig{
			{Name: "Pending"}, {Name: "Active"}, {Name: "Approved"},
			{Name: "Denied"}, {Name: "Closed"}, {Name: "Spenddown"},
		},
		LivingArrangements: []string{
			"Apartment/House", "Assisted Living", "Nursing Home", "Relative's Home", "Other",
		},
		NoteCategories: []string{
			"General", "Follow-up", "Phone Call", "Document Request", "Verification", "Alert",
		},
		VerificationStatuses: []string{"Needs VR", "VR Pending", "Verified", "Not Required"},
	})
}

// DefaultStatus returns the status new cases start in.
func DefaultStatus(cfg models.CategoryConfig) string {
	if len(cfg.CaseStatuses) == 0 {
		return "Pending"
	}
	return cfg.CaseStatuses[0].Name
}

// Normalize upgrades legacy shapes and fills missing display metadata.
// Order is preserved; duplicate names (case-insensitive) keep the first entry.
func Normalize(cfg models.CategoryConfig) models.CategoryConfig {
	out := cfg.Clone()
	out.CaseStatuses = normalizeStatuses(out.CaseStatuses)
	out.AlertTypes = normalizeAlertTypes(out.AlertTypes)
	if out.CaseTypes == nil {
		out.CaseTypes = []string{}
	}
	if out.LivingArrangements == nil {
		out.LivingArrangements = []string{}
	}
	if out.NoteCategories == nil {
		out.NoteCategories = []string{}
	}
	if out.VerificationStatuses == nil {
		out.VerificationStatuses = []string{}
	}
	return out
}

// MigrateLegacyStatuses converts a legacy []string status list to the current shape.
func MigrateLegacyStatuses(names []string) []models.StatusConfig {
	in := make([]models.StatusConfig, len(names))
	for i, n := range names {
		in[i] = models.StatusConfig{Name: n}
	}
	return normalizeStatuses(in)
}

func normalizeStatuses(in []models.StatusConfig) []models.StatusConfig {
	out := make([]models.StatusConfig, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	used := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s.ColorSlot != "" {
			used[s.ColorSlot] = struct{}{}
		}
	}
	for _, s := range in {
		s.Name = strings.TrimSpace(s.Name)
		key := Key(s.Name)
		if s.Name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if s.ColorSlot == "" {
			s.ColorSlot = assignColor(s.Name, used, defaultStatusColors)
			used[s.ColorSlot] = struct{}{}
			s.CountsAsCompleted = s.CountsAsCompleted || isLegacyCompleted(s.Name)
		}
		out = append(out, s)
	}
	return out
}

func normalizeAlertTypes(in []models.AlertTypeConfig) []models.AlertTypeConfig {
	out := make([]models.AlertTypeConfig, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	used := make(map[string]struct{}, len(in))
	for _, a := range in {
		if a.ColorSlot != "" {
			used[a.ColorSlot] = struct{}{}
		}
	}
	for _, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		key := Key(a.Name)
		if a.Name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if a.ColorSlot == "" {
			a.ColorSlot = assignColor(a.Name, used, nil)
			used[a.ColorSlot] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// assignColor picks the default color for name if it is free, else the first
// unused slot, else a slot derived from a hash of the name.
func assignColor(name string, used map[string]struct{}, defaults map[string]string) string {
	if c, ok := defaults[Key(name)]; ok {
		if _, taken := used[c]; !taken {
			return c
		}
	}
	for _, c := range ColorSlots {
		if _, taken := used[c]; !taken {
			return c
		}
	}
	return hashSlot(name)
}

func hashSlot(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(Key(name)))
	return ColorSlots[h.Sum32()%uint32(len(ColorSlots))]
}

func isLegacyCompleted(name string) bool {
	_, ok := completedStatuses[Key(name)]
	return ok
}
