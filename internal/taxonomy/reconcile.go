package taxonomy

import (
	"strings"

	"github.com/starford/nightingale/internal/models"
)

// LiveValues are the taxonomy values referenced by a document's data.
type LiveValues struct {
	Statuses   []string
	AlertTypes []string
}

// Collect returns the distinct non-empty case statuses and alert descriptions
// used in doc, in first-seen order.
func Collect(doc *models.NormalizedFileData) LiveValues {
	var v LiveValues
	seen := make(map[string]struct{})
	for _, c := range doc.Cases {
		v.Statuses = appendDistinct(v.Statuses, c.Status, seen)
	}
	seen = make(map[string]struct{})
	for _, a := range doc.Alerts {
		v.AlertTypes = appendDistinct(v.AlertTypes, a.Description, seen)
	}
	return v
}

// Reconcile returns cfg with every live value that is missing from it appended,
// so live data never references a value the UI cannot display. The input is
// not modified.
func Reconcile(cfg models.CategoryConfig, live LiveValues) models.CategoryConfig {
	out := Normalize(cfg)

	known := make(map[string]struct{}, len(out.CaseStatuses))
	used := make(map[string]struct{}, len(out.CaseStatuses))
	for _, s := range out.CaseStatuses {
		known[Key(s.Name)] = struct{}{}
		used[s.ColorSlot] = struct{}{}
	}
	for _, name := range live.Statuses {
		if _, ok := known[Key(name)]; ok {
			continue
		}
		known[Key(name)] = struct{}{}
		color := assignColor(name, used, defaultStatusColors)
		used[color] = struct{}{}
		out.CaseStatuses = append(out.CaseStatuses, models.StatusConfig{
			Name:              name,
			ColorSlot:         color,
			CountsAsCompleted: isLegacyCompleted(name),
		})
	}

	known = make(map[string]struct{}, len(out.AlertTypes))
	used = make(map[string]struct{}, len(out.AlertTypes))
	for _, a := range out.AlertTypes {
		known[Key(a.Name)] = struct{}{}
		used[a.ColorSlot] = struct{}{}
	}
	for _, name := range live.AlertTypes {
		if _, ok := known[Key(name)]; ok {
			continue
		}
		known[Key(name)] = struct{}{}
		color := assignColor(name, used, nil)
		used[color] = struct{}{}
		out.AlertTypes = append(out.AlertTypes, models.AlertTypeConfig{Name: name, ColorSlot: color})
	}
	return out
}

func appendDistinct(dst []string, value string, seen map[string]struct{}) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return dst
	}
	key := Key(value)
	if _, ok := seen[key]; ok {
		return dst
	}
	seen[key] = struct{}{}
	return append(dst, value)
}
