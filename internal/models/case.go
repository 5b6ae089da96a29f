// Package models defines the domain types persisted in the case document.
package models

import "time"

// Case is the root record tracked by the application. Financials, notes and
// alerts reference it by ID; nothing is embedded.
type Case struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	MCN        string     `json:"mcn"`
	Status     string     `json:"status"`
	Priority   bool       `json:"priority"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Person     Person     `json:"person"`
	CaseRecord CaseRecord `json:"caseRecord"`
}

// Person is the client a case is opened for.
type Person struct {
	ID                string  `json:"id"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Name              string  `json:"name"`
	Email             string  `json:"email,omitempty"`
	Phone             string  `json:"phone,omitempty"`
	DateOfBirth       string  `json:"dateOfBirth,omitempty"`
	LivingArrangement string  `json:"livingArrangement,omitempty"`
	Address           Address `json:"address"`
}

// Address is a postal address.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// CaseRecord holds the application detail of a case.
type CaseRecord struct {
	ApplicationDate   string `json:"applicationDate,omitempty"`
	CaseType          string `json:"caseType,omitempty"`
	Description       string `json:"description,omitempty"`
	LivingArrangement string `json:"livingArrangement,omitempty"`
	WithWaiver        bool   `json:"withWaiver"`
	AdmissionDate     string `json:"admissionDate,omitempty"`
	OrganizationID    string `json:"organizationId,omitempty"`
	RetroRequested    string `json:"retroRequested,omitempty"`
}

// Financial item categories.
const (
	CategoryResources = "resources"
	CategoryIncome    = "income"
	CategoryExpenses  = "expenses"
)

// FinancialItem is a resource, income or expense line belonging to a case.
type FinancialItem struct {
	ID                 string    `json:"id"`
	CaseID             string    `json:"caseId"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	Location           string    `json:"location,omitempty"`
	AccountNumber      string    `json:"accountNumber,omitempty"`
	Amount             float64   `json:"amount"`
	Frequency          string    `json:"frequency,omitempty"`
	Owner              string    `json:"owner,omitempty"`
	VerificationStatus string    `json:"verificationStatus,omitempty"`
	VerificationSource string    `json:"verificationSource,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Note is a case note. Notes are events: adding the same text twice yields two notes.
type Note struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
