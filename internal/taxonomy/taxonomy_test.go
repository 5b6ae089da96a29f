package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nightingale/internal/models"
)

func TestMigrateLegacyStatuses_PreservesOrderDistinctColors(t *testing.T) {
	got := MigrateLegacyStatuses([]string{"Active", "Closed"})

	require.Len(t, got, 2)
	assert.Equal(t, "Active", got[0].Name)
	assert.Equal(t, "Closed", got[1].Name)
	assert.NotEmpty(t, got[0].ColorSlot)
	assert.NotEmpty(t, got[1].ColorSlot)
	assert.NotEqual(t, got[0].ColorSlot, got[1].ColorSlot)
	assert.False(t, got[0].CountsAsCompleted)
	assert.True(t, got[1].CountsAsCompleted, "Closed is a legacy completed status")
}

func TestMigrateLegacyStatuses_DefaultTableThenFirstUnused(t *testing.T) {
	got := MigrateLegacyStatuses([]string{"Closed", "Completed", "Custom"})

	require.Len(t, got, 3)
	assert.Equal(t, "slate", got[0].ColorSlot)
	// Completed's default (slate) is taken, so it falls back to the first free slot.
	assert.Equal(t, "blue", got[1].ColorSlot)
	assert.Equal(t, "green", got[2].ColorSlot)
}

func TestAssignColor_HashWhenPaletteExhausted(t *testing.T) {
	used := map[string]struct{}{}
	for _, c := range ColorSlots {
		used[c] = struct{}{}
	}
	a := assignColor("Overflow", used, nil)
	b := assignColor("Overflow", used, nil)
	assert.Equal(t, a, b, "hash slot must be deterministic")
	assert.Contains(t, ColorSlots, a)
}

func TestLegacyConfigDecodesAndNormalizes(t *testing.T) {
	raw := []byte(`{"caseStatuses":["Pending","Active"],"alertTypes":["Income Change"]}`)
	var cfg models.CategoryConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))

	out := Normalize(cfg)
	require.Len(t, out.CaseStatuses, 2)
	assert.Equal(t, "amber", out.CaseStatuses[0].ColorSlot)
	assert.Equal(t, "green", out.CaseStatuses[1].ColorSlot)
	require.Len(t, out.AlertTypes, 1)
	assert.Equal(t, "blue", out.AlertTypes[0].ColorSlot)
}

func TestNormalize_KeepsExplicitMetadataAndDropsDuplicates(t *testing.T) {
	cfg := models.CategoryConfig{CaseStatuses: []models.StatusConfig{
		{Name: "Closed", ColorSlot: "cyan", CountsAsCompleted: false},
		{Name: "closed"},
		{Name: "  "},
	}}
	out := Normalize(cfg)
	require.Len(t, out.CaseStatuses, 1)
	assert.Equal(t, models.StatusConfig{Name: "Closed", ColorSlot: "cyan"}, out.CaseStatuses[0])
}

func TestReconcile_AppendsDiscoveredValues(t *testing.T) {
	cfg := DefaultConfig()
	doc := &models.NormalizedFileData{
		Cases: []models.Case{
			{ID: "1", Status: "Active"},
			{ID: "2", Status: "Resolved"},
			{ID: "3", Status: "resolved"},
		},
		Alerts: []models.AlertRecord{
			{ID: "a", Description: "Income Change"},
			{ID: "b", Description: "income change"},
			{ID: "c", Description: ""},
		},
	}

	out := Reconcile(cfg, Collect(doc))

	names := out.StatusNames()
	assert.Equal(t, len(cfg.CaseStatuses)+1, len(names))
	last := out.CaseStatuses[len(out.CaseStatuses)-1]
	assert.Equal(t, "Resolved", last.Name)
	assert.True(t, last.CountsAsCompleted)
	require.Len(t, out.AlertTypes, 1)
	assert.Equal(t, "Income Change", out.AlertTypes[0].Name)

	// Input untouched.
	assert.Empty(t, cfg.AlertTypes)
}

func TestReconcile_FoldsLikeAlertKeys(t *testing.T) {
	doc := &models.NormalizedFileData{
		Cases: []models.Case{{ID: "1", Status: "Großantrag"}, {ID: "2", Status: "GROSSANTRAG"}},
		Alerts: []models.AlertRecord{
			{ID: "a", Description: "Straße Review"},
			{ID: "b", Description: "STRASSE  review"},
		},
	}
	out := Reconcile(models.CategoryConfig{}, Collect(doc))
	require.Len(t, out.CaseStatuses, 1)
	assert.Equal(t, "Großantrag", out.CaseStatuses[0].Name)
	require.Len(t, out.AlertTypes, 1)
	assert.Equal(t, "Straße Review", out.AlertTypes[0].Name)
	assert.Equal(t, Key("Straße Review"), Key(" strasse REVIEW "))
}

func TestReconcile_Idempotent(t *testing.T) {
	doc := &models.NormalizedFileData{Cases: []models.Case{{ID: "1", Status: "Escalated"}}}
	once := Reconcile(DefaultConfig(), Collect(doc))
	twice := Reconcile(once, Collect(doc))
	assert.Equal(t, once, twice)
}

func TestDefaultStatus(t *testing.T) {
	assert.Equal(t, "Pending", DefaultStatus(DefaultConfig()))
	assert.Equal(t, "Pending", DefaultStatus(models.CategoryConfig{}))
}
