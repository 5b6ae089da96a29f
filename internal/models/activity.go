package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType discriminates activity log entries.
type ActivityType string

// Known activity types.
const (
	ActivityStatusChange   ActivityType = "status-change"
	ActivityPriorityChange ActivityType = "priority-change"
	ActivityNoteAdded      ActivityType = "note-added"
	ActivityCaseViewed     ActivityType = "case-viewed"
)

// TimestampLayout is the UTC ISO-8601 layout used for activity timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ActivityPayload is the closed set of per-type activity data.
// Only the payload types in this package implement it.
type ActivityPayload interface {
	ActivityType() ActivityType
	isActivityPayload()
}

// StatusChange records a case moving between statuses.
type StatusChange struct {
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}

// PriorityChange records a case gaining or losing priority.
type PriorityChange struct {
	FromPriority bool `json:"fromPriority"`
	ToPriority   bool `json:"toPriority"`
}

// NoteAdded records a note being attached to a case.
type NoteAdded struct {
	NoteID   string `json:"noteId"`
	Category string `json:"category"`
	Preview  string `json:"preview"`
	Content  string `json:"content,omitempty"`
}

// CaseViewed records a case being opened.
type CaseViewed struct{}

func (StatusChange) ActivityType() ActivityType   { return ActivityStatusChange }
func (PriorityChange) ActivityType() ActivityType { return ActivityPriorityChange }
func (NoteAdded) ActivityType() ActivityType      { return ActivityNoteAdded }
func (CaseViewed) ActivityType() ActivityType     { return ActivityCaseViewed }

func (StatusChange) isActivityPayload()   {}
func (PriorityChange) isActivityPayload() {}
func (NoteAdded) isActivityPayload()      {}
func (CaseViewed) isActivityPayload()     {}

// ActivityLogEntry is an immutable activity log event.
//
// Timestamp is kept as the persisted string so that entries written by older
// clients with malformed timestamps survive a round trip untouched.
type ActivityLogEntry struct {
	ID        string
	Timestamp string
	CaseID    string
	CaseName  string
	CaseMCN   string
	Payload   ActivityPayload
}

// FormatTimestamp renders t in the activity log layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Type returns the entry's discriminator, or "" when it has no payload.
func (e ActivityLogEntry) Type() ActivityType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.ActivityType()
}

// Time parses the entry timestamp. ok is false when the timestamp is unparsable.
func (e ActivityLogEntry) Time() (t time.Time, ok bool) {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

type activityWire struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	CaseID    string          `json:"caseId"`
	CaseName  string          `json:"caseName"`
	CaseMCN   string          `json:"caseMcn"`
	Type      ActivityType    `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the entry as {id,timestamp,caseId,caseName,caseMcn,type,payload}.
func (e ActivityLogEntry) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("activity entry %s: missing payload", e.ID)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(activityWire{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		CaseID:    e.CaseID,
		CaseName:  e.CaseName,
		CaseMCN:   e.CaseMCN,
		Type:      e.Payload.ActivityType(),
		Payload:   payload,
	})
}

// UnmarshalJSON decodes an entry, rejecting unknown activity types.
func (e *ActivityLogEntry) UnmarshalJSON(data []byte) error {
	var w activityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var payload ActivityPayload
	switch w.Type {
	case ActivityStatusChange:
		var p StatusChange
		if err := decodePayload(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	case ActivityPriorityChange:
		var p PriorityChange
		if err := decodePayload(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	case ActivityNoteAdded:
		var p NoteAdded
		if err := decodePayload(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	case ActivityCaseViewed:
		payload = CaseViewed{}
	default:
		return fmt.Errorf("activity entry %s: unknown type %q", w.ID, w.Type)
	}

	*e = ActivityLogEntry{
		ID:        w.ID,
		Timestamp: w.Timestamp,
		CaseID:    w.CaseID,
		CaseName:  w.CaseName,
		CaseMCN:   w.CaseMCN,
		Payload:   payload,
	}
	return nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
