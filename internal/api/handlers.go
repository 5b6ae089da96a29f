package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/alerts"
	"github.com/starford/nightingale/internal/caseservice"
	"github.com/starford/nightingale/internal/financialservice"
	"github.com/starford/nightingale/internal/noteservice"
)

// Services are the domain services the API exposes.
type Services struct {
	Cases      *caseservice.Service
	Notes      *noteservice.Service
	Financials *financialservice.Service
	Alerts     *alerts.Service
	Resolver   *alerts.Resolver
	Activity   *activity.Service
}

// Handler holds API route handlers.
type Handler struct {
	svc Services
}

// NewHandler creates a new Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// ListCases handles GET /api/cases.
//
//	@Summary	List cases
//	@Tags		cases
//	@Produce	json
//	@Success	200	{array}	models.Case
//	@Router		/cases [get]
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.svc.Cases.ListCases(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

// GetCase handles GET /api/cases/{id}. The response embeds the case's
// financials, notes, alerts and activity.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := h.svc.Cases.GetCase(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail := CaseDetail{Case: c}
	if detail.Financials, err = h.svc.Financials.ListItems(ctx, id, ""); err != nil {
		writeError(w, r, err)
		return
	}
	if detail.Notes, err = h.svc.Notes.ListNotes(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	if detail.Alerts, err = h.svc.Alerts.AlertsForCase(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	if detail.Activity, err = h.svc.Activity.ForCase(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateCase handles POST /api/cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var in caseservice.CaseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Cases.CreateCase(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCase handles PUT /api/cases/{id}.
func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	var in caseservice.CaseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Cases.UpdateCase(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCase handles DELETE /api/cases/{id}.
func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cases.DeleteCase(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCaseStatus handles PATCH /api/cases/{id}/status.
func (h *Handler) UpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Cases.UpdateCaseStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCasePriority handles PATCH /api/cases/{id}/priority.
func (h *Handler) UpdateCasePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Cases.UpdateCasePriority(r.Context(), chi.URLParam(r, "id"), req.Priority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RecordCaseView handles POST /api/cases/{id}/view.
func (h *Handler) RecordCaseView(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cases.RecordCaseView(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles POST /api/cases/bulk/delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Cases.DeleteCases(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BulkStatus handles POST /api/cases/bulk/status.
func (h *Handler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Cases.UpdateCasesStatus(r.Context(), req.IDs, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BulkPriority handles POST /api/cases/bulk/priority.
func (h *Handler) BulkPriority(w http.ResponseWriter, r *http.Request) {
	var req BulkPriorityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Cases.UpdateCasesPriority(r.Context(), req.IDs, req.Priority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
