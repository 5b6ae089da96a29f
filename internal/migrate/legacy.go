package migrate

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// flexBool accepts true/false, "true"/"yes"/"high" and numbers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1", "high", "priority":
			*b = true
		default:
			*b = false
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}
	*b = false
	return nil
}

// flexFloat accepts numbers and numeric strings such as "$1,200.50".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}

type legacyAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	ZipCode string `json:"zipCode"`
}

type legacyPerson struct {
	ID                string        `json:"id"`
	FirstName         string        `json:"firstName"`
	LastName          string        `json:"lastName"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	DateOfBirth       string        `json:"dateOfBirth"`
	LivingArrangement string        `json:"livingArrangement"`
	Address           legacyAddress `json:"address"`
}

type legacyItem struct {
	ID                 string    `json:"id"`
	Description        string    `json:"description"`
	Name               string    `json:"name"`
	Location           string    `json:"location"`
	AccountNumber      string    `json:"accountNumber"`
	Amount             flexFloat `json:"amount"`
	Frequency          string    `json:"frequency"`
	Owner              string    `json:"owner"`
	VerificationStatus string    `json:"verificationStatus"`
	VerificationSource string    `json:"verificationSource"`
	Notes              string    `json:"notes"`
	DateAdded          string    `json:"dateAdded"`
	CreatedAt          string    `json:"createdAt"`
	UpdatedAt          string    `json:"updatedAt"`
}

type legacyFinancials struct {
	Resources []legacyItem `json:"resources"`
	Income    []legacyItem `json:"income"`
	Expenses  []legacyItem `json:"expenses"`
}

type legacyNote struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Content   string `json:"content"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// legacyRecord is a case record as older builds stored it, with financials
// and notes nested inside.
type legacyRecord struct {
	ID                string            `json:"id"`
	PersonID          string            `json:"personId"`
	MCN               string            `json:"mcn"`
	Status            string            `json:"status"`
	Priority          flexBool          `json:"priority"`
	ApplicationDate   string            `json:"applicationDate"`
	DateOpened        string            `json:"dateOpened"`
	CaseType          string            `json:"caseType"`
	Description       string            `json:"description"`
	LivingArrangement string            `json:"livingArrangement"`
	WithWaiver        flexBool          `json:"withWaiver"`
	AdmissionDate     string            `json:"admissionDate"`
	OrganizationID    string            `json:"organizationId"`
	RetroRequested    string            `json:"retroRequested"`
	CreatedDate       string            `json:"createdDate"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedDate       string            `json:"updatedDate"`
	LastUpdated       string            `json:"lastUpdated"`
	Financials        *legacyFinancials `json:"financials"`
	Notes             []legacyNote      `json:"notes"`
}

// legacyCase is a case with person and record embedded, the layout of bare
// case arrays and of unnormalized documents.
type legacyCase struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	MCN        string            `json:"mcn"`
	Status     string            `json:"status"`
	Priority   flexBool          `json:"priority"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
	Person     legacyPerson      `json:"person"`
	CaseRecord legacyRecord      `json:"caseRecord"`
	Financials *legacyFinancials `json:"financials"`
	Notes      []legacyNote      `json:"notes"`
}

type rawNightingale struct {
	People      []legacyPerson `json:"people"`
	CaseRecords []legacyRecord `json:"caseRecords"`
	Cases       []legacyRecord `json:"cases"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateOnly,
	"01/02/2006",
}

// parseTime parses the date formats legacy files contain, or returns fallback.
func parseTime(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// NormalizeStatus maps the free-form statuses of raw exports onto the
// statuses the first normalized release used.
func NormalizeStatus(status string) string {
	s := strings.ToLower(status)
	switch {
	case s == "":
		return "In Progress"
	case strings.Contains(s, "progress"), strings.Contains(s, "active"), strings.Contains(s, "open"):
		return "In Progress"
	case strings.Contains(s, "priority"), strings.Contains(s, "urgent"):
		return "Priority"
	case strings.Contains(s, "review"), strings.Contains(s, "pending"):
		return "Review"
	case strings.Contains(s, "complete"), strings.Contains(s, "closed"),
		strings.Contains(s, "done"), strings.Contains(s, "denied"):
		return "Completed"
	default:
		return "In Progress"
	}
}
