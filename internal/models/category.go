package models

import (
	"bytes"
	"encoding/json"
)

// CategoryConfig is the configurable taxonomy shown by the UI.
type CategoryConfig struct {
	CaseTypes            []string          `json:"caseTypes"`
	CaseStatuses         []StatusConfig    `json:"caseStatuses"`
	AlertTypes           []AlertTypeConfig `json:"alertTypes"`
	LivingArrangements   []string          `json:"livingArrangements"`
	NoteCategories       []string          `json:"noteCategories"`
	VerificationStatuses []string          `json:"verificationStatuses"`
}

// StatusConfig is one case status with its display metadata.
type StatusConfig struct {
	Name              string `json:"name"`
	ColorSlot         string `json:"colorSlot"`
	CountsAsCompleted bool   `json:"countsAsCompleted,omitempty"`
}

// UnmarshalJSON accepts both the current object form and the legacy bare
// string form ("Active"). Legacy entries decode with an empty ColorSlot.
func (s *StatusConfig) UnmarshalJSON(data []byte) error {
	if name, ok := legacyName(data); ok {
		*s = StatusConfig{Name: name}
		return nil
	}
	type plain StatusConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = StatusConfig(p)
	return nil
}

// AlertTypeConfig is one alert type with its display color.
type AlertTypeConfig struct {
	Name      string `json:"name"`
	ColorSlot string `json:"colorSlot"`
}

// UnmarshalJSON accepts both object and legacy bare string forms.
func (a *AlertTypeConfig) UnmarshalJSON(data []byte) error {
	if name, ok := legacyName(data); ok {
		*a = AlertTypeConfig{Name: name}
		return nil
	}
	type plain AlertTypeConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AlertTypeConfig(p)
	return nil
}

func legacyName(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var name string
	if err := json.Unmarshal(trimmed, &name); err != nil {
		return "", false
	}
	return name, true
}

// StatusNames returns the configured status names in order.
func (c CategoryConfig) StatusNames() []string {
	out := make([]string, len(c.CaseStatuses))
	for i, s := range c.CaseStatuses {
		out[i] = s.Name
	}
	return out
}

// Clone returns a deep copy of the config.
func (c CategoryConfig) Clone() CategoryConfig {
	return CategoryConfig{
		CaseTypes:            cloneSlice(c.CaseTypes),
		CaseStatuses:         cloneSlice(c.CaseStatuses),
		AlertTypes:           cloneSlice(c.AlertTypes),
		LivingArrangements:   cloneSlice(c.LivingArrangements),
		NoteCategories:       cloneSlice(c.NoteCategories),
		VerificationStatuses: cloneSlice(c.VerificationStatuses),
	}
}
