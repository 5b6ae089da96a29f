package models

import (
	"slices"
	"time"
)

// CurrentVersion is the only document version this build reads.
const CurrentVersion = "2.0"

// NormalizedFileData is the whole persisted document. Every entity type lives
// in its own flat collection and references its case by ID.
type NormalizedFileData struct {
	Version        string             `json:"version"`
	Cases          []Case             `json:"cases"`
	Financials     []FinancialItem    `json:"financials"`
	Notes          []Note             `json:"notes"`
	Alerts         []AlertRecord      `json:"alerts"`
	ActivityLog    []ActivityLogEntry `json:"activityLog"`
	CategoryConfig CategoryConfig     `json:"categoryConfig"`
	ExportedAt     time.Time          `json:"exported_at"`
	TotalCases     int                `json:"total_cases"`
}

// Clone returns a copy whose collections can be modified without affecting d.
// Collection elements are value types, so a shallow element copy suffices
// except for pointer fields, which are copied explicitly.
func (d *NormalizedFileData) Clone() *NormalizedFileData {
	if d == nil {
		return nil
	}
	out := *d
	out.Cases = cloneSlice(d.Cases)
	out.Financials = cloneSlice(d.Financials)
	out.Notes = cloneSlice(d.Notes)
	out.Alerts = cloneSlice(d.Alerts)
	for i := range out.Alerts {
		if at := out.Alerts[i].ResolvedAt; at != nil {
			t := *at
			out.Alerts[i].ResolvedAt = &t
		}
	}
	out.ActivityLog = cloneSlice(d.ActivityLog)
	out.CategoryConfig = d.CategoryConfig.Clone()
	return &out
}

// EnsureCollections replaces nil collections with empty ones so the document
// always serializes arrays rather than null.
func (d *NormalizedFileData) EnsureCollections() {
	if d.Cases == nil {
		d.Cases = []Case{}
	}
	if d.Financials == nil {
		d.Financials = []FinancialItem{}
	}
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	if d.Alerts == nil {
		d.Alerts = []AlertRecord{}
	}
	if d.ActivityLog == nil {
		d.ActivityLog = []ActivityLogEntry{}
	}
}

// FindCase returns the index of the case with id, or -1.
func (d *NormalizedFileData) FindCase(id string) int {
	return slices.IndexFunc(d.Cases, func(c Case) bool { return c.ID == id })
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
