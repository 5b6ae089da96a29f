package api

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nightingale/internal/alerts"
	"github.com/starford/nightingale/internal/apperr"
)

// ListAlerts handles GET /api/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Alerts.ListAlerts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAlert handles GET /api/alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Alerts.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CaseAlerts handles GET /api/cases/{id}/alerts.
func (h *Handler) CaseAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Alerts.AlertsForCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ImportAlerts handles POST /api/alerts/import. The body is either the raw
// CSV export (text/csv or text/plain) or a JSON object {"csv": "..."}.
func (h *Handler) ImportAlerts(w http.ResponseWriter, r *http.Request) {
	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req ImportAlertsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		text = req.CSV
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			writeError(w, r, apperr.Invalidf("failed to read body: %v", err))
			return
		}
		text = string(body)
	}

	res, err := h.svc.Alerts.ImportAlertsCSV(r.Context(), text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateAlertStatus handles PATCH /api/alerts/{id}/status. Changes go through
// the per-alert write queue.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req AlertStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	upd := alerts.StatusUpdate{
		Status:          req.Status,
		ResolvedAt:      req.ResolvedAt,
		ResolutionNotes: req.ResolutionNotes,
	}
	a, err := h.svc.Resolver.Resolve(r.Context(), chi.URLParam(r, "id"), upd, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
