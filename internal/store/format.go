package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/nightingale/internal/models"
)

// Shape names the layout of a persisted document.
type Shape string

// Document shapes recognised on read. Everything except ShapeCurrent needs
// the migrate command before the store will open it.
const (
	ShapeCurrent           Shape = "current"
	ShapeEmpty             Shape = "empty"
	ShapeCaseArray         Shape = "case-array"
	ShapeNightingaleRaw    Shape = "nightingale-raw"
	ShapeNestedCaseRecords Shape = "nested-case-records"
	ShapeVersionMismatch   Shape = "version-mismatch"
	ShapeUnversioned       Shape = "unversioned"
)

// DetectShape inspects raw document bytes without decoding the collections.
// version is the document's version tag when it has one.
func DetectShape(data []byte) (shape Shape, version string, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ShapeEmpty, "", nil
	}
	if data[0] == '[' {
		return ShapeCaseArray, "", nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return "", "", fmt.Errorf("store: document is not a JSON object: %w", err)
	}

	if raw, ok := top["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			// Older builds wrote numeric versions.
			version = string(raw)
		}
	}

	if _, ok := top["people"]; ok {
		return ShapeNightingaleRaw, version, nil
	}
	if hasNestedRecords(top["cases"]) {
		return ShapeNestedCaseRecords, version, nil
	}
	switch {
	case version == models.CurrentVersion:
		return ShapeCurrent, version, nil
	case version != "":
		return ShapeVersionMismatch, version, nil
	default:
		return ShapeUnversioned, "", nil
	}
}

// hasNestedRecords reports whether any case embeds its financials or notes,
// either directly or under caseRecord.
func hasNestedRecords(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var cases []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cases); err != nil {
		return false
	}
	for _, c := range cases {
		if nested(c) {
			return true
		}
		if rec, ok := c["caseRecord"]; ok {
			var fields map[string]json.RawMessage
			if json.Unmarshal(rec, &fields) == nil && nested(fields) {
				return true
			}
		}
	}
	return false
}

func nested(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"financials", "notes"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] != 'n' {
			return true
		}
	}
	return false
}
