package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Services, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/cases", func(r chi.Router) {
		r.Get("/", h.ListCases)
		r.Post("/", h.CreateCase)

		r.Post("/bulk/delete", h.BulkDelete)
		r.Post("/bulk/status", h.BulkStatus)
		r.Post("/bulk/priority", h.BulkPriority)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Put("/", h.UpdateCase)
			r.Delete("/", h.DeleteCase)
			r.Patch("/status", h.UpdateCaseStatus)
			r.Patch("/priority", h.UpdateCasePriority)
			r.Post("/view", h.RecordCaseView)

			r.Get("/notes", h.ListNotes)
			r.Post("/notes", h.AddNote)
			r.Put("/notes/{noteID}", h.UpdateNote)
			r.Delete("/notes/{noteID}", h.DeleteNote)

			r.Get("/financials", h.ListFinancials)
			r.Get("/financials/totals", h.FinancialTotals)
			r.Post("/financials", h.AddFinancial)
			r.Put("/financials/{itemID}", h.UpdateFinancial)
			r.Delete("/financials/{itemID}", h.DeleteFinancial)

			r.Get("/alerts", h.CaseAlerts)
			r.Get("/activity", h.CaseActivity)
		})
	})

	r.Get("/alerts", h.ListAlerts)
	r.Post("/alerts/import", h.ImportAlerts)
	r.Get("/alerts/{id}", h.GetAlert)
	r.Patch("/alerts/{id}/status", h.UpdateAlertStatus)

	r.Get("/activity", h.ActivityLog)
	r.Get("/reports/daily", h.DailyReport)
	r.Delete("/reports/daily", h.ClearDailyReport)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
