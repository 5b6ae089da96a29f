package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nightingale/internal/financialservice"
	"github.com/starford/nightingale/internal/noteservice"
)

// ListNotes handles GET /api/cases/{id}/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.Notes.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// AddNote handles POST /api/cases/{id}/notes.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var in noteservice.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.svc.Notes.AddNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PUT /api/cases/{id}/notes/{noteID}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var in noteservice.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.svc.Notes.UpdateNote(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "noteID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/cases/{id}/notes/{noteID}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Notes.DeleteNote(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "noteID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFinancials handles GET /api/cases/{id}/financials?category=.
func (h *Handler) ListFinancials(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Financials.ListItems(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// FinancialTotals handles GET /api/cases/{id}/financials/totals.
func (h *Handler) FinancialTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.Financials.Totals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// AddFinancial handles POST /api/cases/{id}/financials.
func (h *Handler) AddFinancial(w http.ResponseWriter, r *http.Request) {
	var in financialservice.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.Financials.AddItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateFinancial handles PUT /api/cases/{id}/financials/{itemID}.
func (h *Handler) UpdateFinancial(w http.ResponseWriter, r *http.Request) {
	var in financialservice.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.svc.Financials.UpdateItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteFinancial handles DELETE /api/cases/{id}/financials/{itemID}.
func (h *Handler) DeleteFinancial(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Financials.DeleteItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
