package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/alerts"
	"github.com/starford/nightingale/internal/caseservice"
	"github.com/starford/nightingale/internal/financialservice"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/noteservice"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/testutil"
	"github.com/starford/nightingale/internal/writequeue"
)

type testEnv struct {
	router http.Handler
	mem    *storage.Memory
}

// newTestEnv wires every service over an in-memory store.
// An empty authToken means disabled mode.
func newTestEnv(t *testing.T, authToken string, sseHandler http.Handler) *testEnv {
	t.Helper()

	clock := testutil.NewClock(testutil.Epoch)
	st, mem := testutil.MemoryStore(t, clock)

	cases := caseservice.NewService(st, caseservice.WithClock(clock.Now), caseservice.WithIDs(testutil.IDs("case")))
	notes := noteservice.NewService(st, clock.Now, testutil.IDs("note"))
	alertSvc := alerts.NewService(st, cases, alerts.WithClock(clock.Now), alerts.WithIDs(testutil.IDs("alert")))
	queue := writequeue.New()
	t.Cleanup(queue.Wait)

	svc := Services{
		Cases:      cases,
		Notes:      notes,
		Financials: financialservice.NewService(st, clock.Now, testutil.IDs("fin")),
		Alerts:     alertSvc,
		Resolver:   alerts.NewResolver(alertSvc, notes, queue),
		Activity:   activity.NewService(st, nil),
	}
	return &testEnv{
		router: NewRouter(svc, authToken != "", authToken, sseHandler),
		mem:    mem,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if _, ok := body.(string); ok {
		req.Header.Set("Content-Type", "text/csv")
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

func (e *testEnv) createCase(t *testing.T, name, mcn string) models.Case {
	t.Helper()
	w := e.do(t, http.MethodPost, "/cases", map[string]any{"name": name, "mcn": mcn, "status": "Pending"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create case = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[models.Case](t, w)
}

func TestCreateAndGetCase(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")
	if c.ID != "case-1" || c.Person.Name != "Jane Roe" {
		t.Errorf("created = %+v", c)
	}

	w := env.do(t, http.MethodGet, "/cases/"+c.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	detail := decode[CaseDetail](t, w)
	if detail.Name != "Jane Roe" {
		t.Errorf("name = %q", detail.Name)
	}
	if detail.Notes == nil || detail.Financials == nil || detail.Alerts == nil {
		t.Errorf("collections should be empty arrays, got %s", w.Body.String())
	}
}

func TestCreateCase_Invalid(t *testing.T) {
	env := newTestEnv(t, "", nil)

	if w := env.do(t, http.MethodPost, "/cases", map[string]any{"mcn": "1"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/cases", "{not json"); w.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", w.Code)
	}
}

func TestGetCase_NotFound(t *testing.T) {
	env := newTestEnv(t, "", nil)
	if w := env.do(t, http.MethodGet, "/cases/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing case = %d, want 404", w.Code)
	}
}

func TestNotesAndFinancials(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")

	w := env.do(t, http.MethodPost, "/cases/"+c.ID+"/notes", map[string]string{"content": "Called client"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add note = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[models.Note](t, w)

	w = env.do(t, http.MethodPut, "/cases/"+c.ID+"/notes/"+note.ID, map[string]string{"content": "Called client twice"})
	if w.Code != http.StatusOK {
		t.Fatalf("update note = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/cases/"+c.ID+"/financials",
		map[string]any{"category": "income", "description": "SSA", "amount": 900})
	if w.Code != http.StatusCreated {
		t.Fatalf("add item = %d, body = %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/cases/"+c.ID+"/financials",
		map[string]any{"category": "bogus", "description": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad category = %d, want 400", w.Code)
	}

	totals := decode[map[string]float64](t, env.do(t, http.MethodGet, "/cases/"+c.ID+"/financials/totals", nil))
	if totals["income"] != 900 {
		t.Errorf("totals = %v", totals)
	}

	notes := decode[[]models.Note](t, env.do(t, http.MethodGet, "/cases/"+c.ID+"/notes", nil))
	if len(notes) != 1 || notes[0].Content != "Called client twice" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestDeleteCase_Cascades(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")
	env.do(t, http.MethodPost, "/cases/"+c.ID+"/notes", map[string]string{"content": "x"})

	if w := env.do(t, http.MethodDelete, "/cases/"+c.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/cases/"+c.ID+"/notes", nil); w.Code != http.StatusNotFound {
		t.Errorf("notes of deleted case = %d, want 404", w.Code)
	}
	var doc models.NormalizedFileData
	if err := json.Unmarshal(env.mem.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Cases) != 0 || len(doc.Notes) != 0 {
		t.Errorf("persisted cases = %d, notes = %d, want none", len(doc.Cases), len(doc.Notes))
	}
}

func TestBulkStatus(t *testing.T) {
	env := newTestEnv(t, "", nil)
	a := env.createCase(t, "A", "1")
	b := env.createCase(t, "B", "2")

	w := env.do(t, http.MethodPost, "/cases/bulk/status",
		BulkStatusRequest{IDs: []string{a.ID, b.ID, "ghost"}, Status: "Approved"})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[caseservice.BulkResult](t, w)
	if res.Updated != 2 || len(res.NotFound) != 1 {
		t.Errorf("result = %+v", res)
	}

	log := decode[[]models.ActivityLogEntry](t, env.do(t, http.MethodGet, "/activity", nil))
	if len(log) != 2 {
		t.Errorf("activity entries = %d, want 2", len(log))
	}
}

func TestAlertImportAndResolve(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")

	w := env.do(t, http.MethodPost, "/alerts/import", "mcn,description\nMC-1,Renewal due\nMC-1,Address change\n")
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[alerts.ImportResult](t, w)
	if res.Added != 2 || res.CasesCreated != 0 {
		t.Errorf("import result = %+v", res)
	}

	list := decode[[]models.AlertWithMatch](t, env.do(t, http.MethodGet, "/cases/"+c.ID+"/alerts", nil))
	if len(list) != 2 || list[0].MatchStatus != models.MatchMatched {
		t.Fatalf("case alerts = %+v", list)
	}

	w = env.do(t, http.MethodPatch, "/alerts/"+list[0].ID+"/status",
		AlertStatusRequest{Status: "resolved", Note: "Renewal packet received"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	resolved := decode[models.AlertRecord](t, w)
	if resolved.Status != models.AlertStatusResolved || resolved.ResolvedAt == nil {
		t.Errorf("resolved alert = %+v", resolved)
	}

	notes := decode[[]models.Note](t, env.do(t, http.MethodGet, "/cases/"+c.ID+"/notes", nil))
	if len(notes) != 1 || notes[0].Category != alerts.NoteCategory {
		t.Errorf("resolution note = %+v", notes)
	}

	if w := env.do(t, http.MethodPatch, "/alerts/"+list[0].ID+"/status", AlertStatusRequest{Status: "maybe"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestAlertImport_JSONBody(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodPost, "/alerts/import",
		ImportAlertsRequest{CSV: "mcn,description,name\n555,Renewal due,\"Roe, Jane\"\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[alerts.ImportResult](t, w); res.CasesCreated != 1 {
		t.Errorf("skeleton cases = %d, want 1", res.CasesCreated)
	}
}

func TestDailyReportFormats(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")
	if w := env.do(t, http.MethodPatch, "/cases/"+c.ID+"/status", StatusRequest{Status: "Approved"}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/reports/daily?date=2025-10-05&format=txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Alert marked Approved (previously Pending)") {
		t.Errorf("txt report = %q", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/reports/daily?date=2025-10-05", nil)
	report := decode[activity.DailyReport](t, w)
	if report.Totals.StatusChanges != 1 {
		t.Errorf("totals = %+v", report.Totals)
	}

	w = env.do(t, http.MethodGet, "/reports/daily?date=2025-10-06&format=txt", nil)
	if w.Body.String() != activity.NoNoteActivity {
		t.Errorf("empty day = %q", w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/reports/daily?format=pdf", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad format = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/reports/daily?date=10/05/2025", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func TestClearDailyReport(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")
	env.do(t, http.MethodPost, "/cases/"+c.ID+"/view", nil)

	w := env.do(t, http.MethodDelete, "/reports/daily?date=2025-10-05", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear = %d", w.Code)
	}
	if res := decode[ClearReportResponse](t, w); res.Removed != 1 {
		t.Errorf("removed = %d, want 1", res.Removed)
	}
}

func TestStoreFailures(t *testing.T) {
	env := newTestEnv(t, "", nil)
	c := env.createCase(t, "Jane Roe", "MC-1")

	env.mem.FailNextWrite(fs.ErrPermission)
	w := env.do(t, http.MethodPatch, "/cases/"+c.ID+"/status", StatusRequest{Status: "Denied"})
	if w.Code != http.StatusForbidden {
		t.Errorf("permission denied = %d, want 403", w.Code)
	}

	env.mem.FailNextWrite(storage.ErrStale)
	w = env.do(t, http.MethodPatch, "/cases/"+c.ID+"/status", StatusRequest{Status: "Denied"})
	if w.Code != http.StatusConflict {
		t.Fatalf("stale = %d, want 409", w.Code)
	}
	if body := decode[errResponse](t, w); !body.Retryable {
		t.Errorf("stale write should be retryable: %+v", body)
	}

	// The failed writes left the document untouched.
	got := decode[CaseDetail](t, env.do(t, http.MethodGet, "/cases/"+c.ID, nil))
	if got.Status != "Pending" {
		t.Errorf("status after failures = %q", got.Status)
	}
}

func TestLegacyDocument(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.mem.ReplaceExternally([]byte(`[{"id":"c1","name":"Old"}]`))

	w := env.do(t, http.MethodGet, "/cases", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("legacy = %d, want 409", w.Code)
	}
	if body := decode[errResponse](t, w); body.Shape != "case-array" {
		t.Errorf("shape = %q", body.Shape)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newTestEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t, "secret123", nil)
	if w := env.do(t, http.MethodGet, "/cases", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newTestEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newTestEnv(t, "secret", blockingSSE)
	if w := env.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newTestEnv(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
