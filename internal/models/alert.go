package models

import "time"

// Alert statuses.
const (
	AlertStatusOpen     = "open"
	AlertStatusResolved = "resolved"
)

// AlertRecord is an alert imported from an external CSV feed.
//
// CaseID is the foreign key used for cascading deletes; it is stamped on import.
// Match state is never persisted, see AlertWithMatch.
type AlertRecord struct {
	ID              string     `json:"id"`
	AlertCode       string     `json:"alertCode,omitempty"`
	MCNumber        string     `json:"mcNumber"`
	Description     string     `json:"description"`
	PersonName      string     `json:"personName,omitempty"`
	Program         string     `json:"program,omitempty"`
	Region          string     `json:"region,omitempty"`
	AlertDate       string     `json:"alertDate,omitempty"`
	DueDate         string     `json:"dueDate,omitempty"`
	CaseID          string     `json:"caseId,omitempty"`
	Status          string     `json:"status"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// MatchStatus describes how an alert row relates to the case roster.
type MatchStatus string

// Match states derived at read time.
const (
	MatchMatched    MatchStatus = "matched"
	MatchUnmatched  MatchStatus = "unmatched"
	MatchMissingMCN MatchStatus = "missing-mcn"
)

// AlertWithMatch is an alert decorated with its derived match fields.
type AlertWithMatch struct {
	AlertRecord
	MatchedCaseID string      `json:"matchedCaseId,omitempty"`
	MatchStatus   MatchStatus `json:"matchStatus"`
}
