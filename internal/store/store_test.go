package store_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
	"github.com/starford/nightingale/internal/testutil"
)

func TestRead_MissingDocumentIsEmpty(t *testing.T) {
	s, _ := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))

	doc, err := s.Read(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.CurrentVersion, doc.Version)
	assert.Empty(t, doc.Cases)
	assert.NotNil(t, doc.ActivityLog)
	assert.NotEmpty(t, doc.CategoryConfig.CaseStatuses)
}

func TestWrite_RecomputesDerivedFields(t *testing.T) {
	clock := testutil.NewClock(testutil.Epoch)
	s, mem := testutil.MemoryStore(t, clock)

	doc := store.Empty()
	doc.TotalCases = 99
	doc.Cases = append(doc.Cases,
		testutil.Case("c1", "Alice", "12345", "Escalated"),
		testutil.Case("c2", "Bob", "", "Pending"),
	)
	doc.ActivityLog = []models.ActivityLogEntry{
		{ID: "old", Timestamp: "2025-10-01T10:00:00.000Z", CaseID: "c1", Payload: models.CaseViewed{}},
		{ID: "bad", Timestamp: "yesterday", CaseID: "c1", Payload: models.CaseViewed{}},
		{ID: "new", Timestamp: "2025-10-03T10:00:00.000Z", CaseID: "c1", Payload: models.CaseViewed{}},
	}

	out, err := s.Write(t.Context(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, out.TotalCases)
	assert.Equal(t, testutil.Epoch, out.ExportedAt)
	assert.Equal(t, []string{"new", "old", "bad"}, ids(out.ActivityLog))
	assert.Contains(t, out.CategoryConfig.StatusNames(), "Escalated")
	assert.Equal(t, 99, doc.TotalCases, "input must not be modified")

	var persisted map[string]any
	require.NoError(t, json.Unmarshal(mem.Bytes(), &persisted))
	assert.EqualValues(t, 2, persisted["total_cases"])
	assert.Equal(t, models.CurrentVersion, persisted["version"])
}

func TestWrite_TotalCasesProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := store.New(storage.NewMemory())
		n := rapid.IntRange(0, 40).Draw(rt, "cases")

		doc := store.Empty()
		for i := range n {
			doc.Cases = append(doc.Cases, testutil.Case(fmt.Sprintf("c%d", i), "Case", "", "Pending"))
		}
		doc.TotalCases = rapid.IntRange(-5, 100).Draw(rt, "stale_total")

		out, err := s.Write(t.Context(), doc)
		if err != nil {
			rt.Fatalf("write: %v", err)
		}
		if out.TotalCases != len(out.Cases) {
			rt.Fatalf("total_cases = %d, cases = %d", out.TotalCases, len(out.Cases))
		}
		back, err := s.Read(t.Context())
		if err != nil {
			rt.Fatalf("read: %v", err)
		}
		if back.TotalCases != n {
			rt.Fatalf("persisted total_cases = %d, want %d", back.TotalCases, n)
		}
	})
}

func TestWrite_FailureRollsObserversBack(t *testing.T) {
	s, mem := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))

	doc := store.Empty()
	doc.Cases = append(doc.Cases, testutil.Case("c1", "Alice", "1", "Pending"))
	testutil.Seed(t, s, doc)

	var got []store.Reason
	var last *models.NormalizedFileData
	cancel := s.Subscribe(func(d *models.NormalizedFileData, r store.Reason) {
		got = append(got, r)
		last = d
	})
	defer cancel()

	mem.FailNextWrite(fmt.Errorf("open cases.json: %w", fs.ErrPermission))
	changed := doc.Clone()
	changed.Cases[0].Status = "Closed"

	_, err := s.Write(t.Context(), changed)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.ErrorIs(t, err, fs.ErrPermission, "raw error must stay reachable")

	require.Equal(t, []store.Reason{store.ReasonRollback}, got)
	assert.Equal(t, "Pending", last.Cases[0].Status)
	assert.Equal(t, 1, mem.Writes())
}

func TestWrite_UnknownFailureIsRewritten(t *testing.T) {
	s, mem := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))
	mem.FailNextWrite(errors.New("disk on fire"))

	_, err := s.Write(t.Context(), store.Empty())
	var serr *apperr.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, apperr.ErrUnknownIO, serr.Kind)
	assert.NotContains(t, serr.Error(), "disk on fire")
	assert.False(t, serr.Retryable())
}

func TestWrite_EncodeFailureIsClassified(t *testing.T) {
	s, mem := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))
	testutil.Seed(t, s, store.Empty())

	var got []store.Reason
	cancel := s.Subscribe(func(_ *models.NormalizedFileData, r store.Reason) {
		got = append(got, r)
	})
	defer cancel()

	bad := store.Empty()
	bad.ActivityLog = []models.ActivityLogEntry{{ID: "e1", Timestamp: testutil.Epoch.Format(time.RFC3339)}}

	_, err := s.Write(t.Context(), bad)
	var serr *apperr.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, apperr.ErrUnknownIO, serr.Kind)
	assert.NotContains(t, serr.Error(), "missing payload")
	assert.Equal(t, []store.Reason{store.ReasonRollback}, got)
	assert.Equal(t, 1, mem.Writes(), "nothing reaches the backend")
}

func TestWrite_ExternalChangeIsConcurrentModification(t *testing.T) {
	s, mem := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))
	testutil.Seed(t, s, store.Empty())

	doc, err := s.Read(t.Context())
	require.NoError(t, err)

	other := store.Empty()
	other.Cases = append(other.Cases, testutil.Case("x", "External", "", "Pending"))
	raw, err := store.Encode(other)
	require.NoError(t, err)
	mem.ReplaceExternally(raw)

	_, err = s.Write(t.Context(), doc)
	require.ErrorIs(t, err, apperr.ErrConcurrentModification)
	var serr *apperr.StoreError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Retryable())

	// Retrying the whole read-modify-write succeeds.
	doc, err = s.Read(t.Context())
	require.NoError(t, err)
	require.Len(t, doc.Cases, 1)
	_, err = s.Write(t.Context(), doc)
	require.NoError(t, err)
}

func TestRead_LegacyShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		shape   store.Shape
		version string
	}{
		{"case array", `[{"id":"1","name":"A"}]`, store.ShapeCaseArray, ""},
		{"raw nightingale", `{"people":[],"caseRecords":[]}`, store.ShapeNightingaleRaw, ""},
		{"nested records", `{"cases":[{"id":"1","caseRecord":{"financials":{"income":[]}}}]}`, store.ShapeNestedCaseRecords, ""},
		{"old version", `{"version":"1.0","cases":[]}`, store.ShapeVersionMismatch, "1.0"},
		{"numeric version", `{"version":1,"cases":[]}`, store.ShapeVersionMismatch, "1"},
		{"no version", `{"cases":[]}`, store.ShapeUnversioned, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storage.NewMemory()
			mem.ReplaceExternally([]byte(tt.raw))
			s := store.New(mem)

			_, err := s.Read(t.Context())
			require.ErrorIs(t, err, apperr.ErrLegacyFormat)
			var lerr *apperr.LegacyFormatError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, string(tt.shape), lerr.Shape)
			assert.Equal(t, tt.version, lerr.Version)
		})
	}
}

func TestResync_BroadcastsExternal(t *testing.T) {
	s, mem := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))
	testutil.Seed(t, s, store.Empty())

	edited := store.Empty()
	edited.Cases = append(edited.Cases, testutil.Case("c9", "Zed", "", "Pending"))
	raw, err := store.Encode(edited)
	require.NoError(t, err)
	mem.ReplaceExternally(raw)

	done := make(chan store.Reason, 1)
	cancel := s.Subscribe(func(d *models.NormalizedFileData, r store.Reason) {
		if len(d.Cases) == 1 {
			done <- r
		}
	})
	defer cancel()

	require.NoError(t, s.Resync(t.Context()))
	select {
	case r := <-done:
		assert.Equal(t, store.ReasonExternal, r)
	case <-time.After(time.Second):
		t.Fatal("no broadcast")
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	s, _ := testutil.MemoryStore(t, testutil.NewClock(testutil.Epoch))
	calls := 0
	cancel := s.Subscribe(func(*models.NormalizedFileData, store.Reason) { calls++ })

	testutil.Seed(t, s, store.Empty())
	cancel()
	cancel()
	testutil.Seed(t, s, store.Empty())
	assert.Equal(t, 1, calls)
}

func ids(entries []models.ActivityLogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
