package api

import (
	"time"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/models"
)

// BulkIDsRequest names the cases a bulk operation applies to.
type BulkIDsRequest struct {
	IDs []string `json:"ids"`
}

// BulkStatusRequest sets the status of many cases.
type BulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// BulkPriorityRequest sets the priority flag of many cases.
type BulkPriorityRequest struct {
	IDs      []string `json:"ids"`
	Priority bool     `json:"priority"`
}

// StatusRequest sets the status of one case.
type StatusRequest struct {
	Status string `json:"status"`
}

// PriorityRequest sets the priority flag of one case.
type PriorityRequest struct {
	Priority bool `json:"priority"`
}

// AlertStatusRequest changes an alert's workflow state. Note, when set, is
// added to the alert's case in the "Alert" category.
type AlertStatusRequest struct {
	Status          string     `json:"status"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNotes *string    `json:"resolutionNotes,omitempty"`
	Note            string     `json:"note,omitempty"`
}

// ImportAlertsRequest carries a CSV export when the body is JSON.
type ImportAlertsRequest struct {
	CSV string `json:"csv"`
}

// CaseDetail is a case with everything that references it.
type CaseDetail struct {
	models.Case
	Financials []models.FinancialItem    `json:"financials"`
	Notes      []models.Note             `json:"notes"`
	Alerts     []models.AlertWithMatch   `json:"alerts"`
	Activity   []models.ActivityLogEntry `json:"activity"`
}

// ClearReportResponse reports how many entries a clear removed.
type ClearReportResponse struct {
	Date    string `json:"date"`
	Removed int    `json:"removed"`
}

// DailyReportResponse is the JSON form of a daily report.
type DailyReportResponse = activity.DailyReport
