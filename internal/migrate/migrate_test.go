package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
	"github.com/starford/nightingale/internal/testutil"
)

var now = time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

const rawExport = `{
  "people": [
    {"id": "p1", "firstName": "Alice", "lastName": "Smith", "dateOfBirth": "1950-02-03T00:00:00Z",
     "address": {"street": "1 Main", "zipCode": "12345"}}
  ],
  "caseRecords": [
    {"id": "r1", "personId": "p1", "mcn": "MC-1", "status": "Under Review", "priority": "true",
     "applicationDate": "2024-05-01", "updatedDate": "2024-06-01T10:00:00",
     "financials": {
       "resources": [{"name": "Checking", "amount": "$1,200.50"}],
       "income": [{"id": "i1", "description": "SSA", "amount": 900}],
       "expenses": []
     },
     "notes": [{"text": "Intake done", "createdAt": "2024-05-02T09:00:00Z"}]},
    {"id": "r2", "personId": "ghost", "mcn": "MC-2"}
  ]
}`

func TestConvert_RawExport(t *testing.T) {
	res, err := NewConverter(now, testutil.IDs("gen")).Convert([]byte(rawExport))
	require.NoError(t, err)
	assert.Equal(t, store.ShapeNightingaleRaw, res.Shape)
	assert.Equal(t, 1, res.Cases)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Financials)
	assert.Equal(t, 1, res.Notes)

	c := res.Doc.Cases[0]
	assert.Equal(t, "r1", c.ID)
	assert.Equal(t, "Alice Smith", c.Name)
	assert.Equal(t, "Review", c.Status)
	assert.True(t, c.Priority)
	assert.Equal(t, "12345", c.Person.Address.Zip)
	assert.Equal(t, "1950-02-03", c.Person.DateOfBirth)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), c.UpdatedAt)

	byDesc := map[string]models.FinancialItem{}
	for _, f := range res.Doc.Financials {
		assert.Equal(t, "r1", f.CaseID)
		byDesc[f.Description] = f
	}
	assert.Equal(t, 1200.5, byDesc["Checking"].Amount)
	assert.Equal(t, models.CategoryResources, byDesc["Checking"].Category)
	assert.Equal(t, "i1", byDesc["SSA"].ID)

	assert.Equal(t, "Intake done", res.Doc.Notes[0].Content)
	assert.Equal(t, "General", res.Doc.Notes[0].Category)
	assert.Equal(t, models.CurrentVersion, res.Doc.Version)
}

func TestConvert_CaseArray(t *testing.T) {
	data := `[{"id": "c1", "name": "Bob", "mcn": "9", "status": "Active", "priority": false,
	  "person": {"firstName": "Bob"},
	  "caseRecord": {"caseType": "LTC", "financials": {"expenses": [{"description": "Rent", "amount": 500}]},
	                 "notes": [{"id": "n1", "category": "Phone Call", "content": "Left message"}]}}]`

	res, err := NewConverter(now, nil).Convert([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, store.ShapeCaseArray, res.Shape)
	require.Len(t, res.Doc.Cases, 1)
	assert.Equal(t, "Active", res.Doc.Cases[0].Status, "only raw exports have their statuses rewritten")
	assert.Equal(t, "LTC", res.Doc.Cases[0].CaseRecord.CaseType)
	require.Len(t, res.Doc.Financials, 1)
	assert.Equal(t, models.CategoryExpenses, res.Doc.Financials[0].Category)
	require.Len(t, res.Doc.Notes, 1)
	assert.Equal(t, "c1", res.Doc.Notes[0].CaseID)
}

func TestConvert_RetagsOldVersion(t *testing.T) {
	data := `{"version": "1.0", "cases": [{"id": "c1", "name": "A", "status": "Pending"}],
	  "notes": [{"id": "n1", "caseId": "c1", "content": "x"}],
	  "categoryConfig": {"caseStatuses": ["Pending", "Closed"]}}`

	res, err := NewConverter(now, nil).Convert([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, store.ShapeVersionMismatch, res.Shape)
	assert.Equal(t, "1.0", res.Version)
	assert.Len(t, res.Doc.Notes, 1)
	require.Len(t, res.Doc.CategoryConfig.CaseStatuses, 2)
	assert.NotEqual(t, res.Doc.CategoryConfig.CaseStatuses[0].ColorSlot, res.Doc.CategoryConfig.CaseStatuses[1].ColorSlot)
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"":            "In Progress",
		"Open":        "In Progress",
		"URGENT":      "Priority",
		"Pending":     "Review",
		"Case closed": "Completed",
		"Denied":      "Completed",
		"whatever":    "In Progress",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestRun_WritesBackupAndCurrentDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.json")
	require.NoError(t, os.WriteFile(path, []byte(rawExport), 0o644))

	p, err := storage.NewFS(path)
	require.NoError(t, err)

	// The store refuses the legacy file until it is migrated.
	_, err = store.New(p).Read(t.Context())
	require.ErrorIs(t, err, apperr.ErrLegacyFormat)

	res, err := Run(t.Context(), p, NewConverter(now, nil), Options{BackupPath: path + ".bak"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Doc.TotalCases)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, rawExport, string(backup))

	doc, err := store.New(p).Read(t.Context())
	require.NoError(t, err)
	assert.Len(t, doc.Cases, 1)
	assert.Contains(t, doc.CategoryConfig.StatusNames(), "Review")
}

func TestRun_CurrentDocumentUntouched(t *testing.T) {
	mem := storage.NewMemory()
	s := store.New(mem)
	_, err := s.Write(t.Context(), store.Empty())
	require.NoError(t, err)

	res, err := Run(t.Context(), mem, NewConverter(now, nil), Options{}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, mem.Writes())
}

func TestRun_DryRun(t *testing.T) {
	mem := storage.NewMemory()
	mem.ReplaceExternally([]byte(`[{"id":"c1","name":"A"}]`))

	res, err := Run(t.Context(), mem, NewConverter(now, nil), Options{DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cases)
	assert.Zero(t, mem.Writes())
}
