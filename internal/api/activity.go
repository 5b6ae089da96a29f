package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/apperr"
)

// ActivityLog handles GET /api/activity.
func (h *Handler) ActivityLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Activity.Log(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CaseActivity handles GET /api/cases/{id}/activity.
func (h *Handler) CaseActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Activity.ForCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// DailyReport handles GET /api/reports/daily?date=YYYY-MM-DD&format=json|csv|txt.
// The date defaults to today in UTC.
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := reportDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := activity.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, apperr.Invalidf("%v", err))
		return
	}

	body, err := h.svc.Activity.ExportDailyReport(r.Context(), date, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format != activity.FormatJSON {
		w.Header().Set("Content-Disposition",
			`attachment; filename="activity-`+activity.DayKey(date)+`.`+string(format)+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// ClearDailyReport handles DELETE /api/reports/daily?date=YYYY-MM-DD.
func (h *Handler) ClearDailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := reportDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := h.svc.Activity.ClearReportForDate(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearReportResponse{Date: activity.DayKey(date), Removed: removed})
}

func reportDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Invalidf("date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}
