package alerts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/starford/nightingale/internal/apperr"
)

// Row is one alert line from an import file.
type Row struct {
	AlertCode       string
	MCNumber        string
	Description     string
	PersonName      string
	Program         string
	Region          string
	AlertDate       string
	DueDate         string
	Status          string
	ResolutionNotes string
}

type column int

const (
	colAlertCode column = iota
	colMCN
	colDescription
	colPersonName
	colFirstName
	colLastName
	colProgram
	colRegion
	colAlertDate
	colDueDate
	colStatus
	colResolutionNotes
)

// headerAliases maps squashed header names to columns. Exports from different
// systems label the same column differently.
var headerAliases = map[string]column{
	"alertcode": colAlertCode, "code": colAlertCode, "alertid": colAlertCode, "alertnumber": colAlertCode,
	"mcn": colMCN, "mcnumber": colMCN, "mcnum": colMCN, "mcno": colMCN, "casenumber": colMCN, "mc": colMCN,
	"description": colDescription, "alertdescription": colDescription, "alerttype": colDescription,
	"alert": colDescription, "type": colDescription,
	"name": colPersonName, "personname": colPersonName, "clientname": colPersonName,
	"client": colPersonName, "recipient": colPersonName, "fullname": colPersonName,
	"firstname": colFirstName, "first": colFirstName,
	"lastname": colLastName, "last": colLastName,
	"program": colProgram,
	"region": colRegion, "county": colRegion,
	"alertdate": colAlertDate, "date": colAlertDate, "createddate": colAlertDate,
	"duedate": colDueDate, "due": colDueDate,
	"status": colStatus,
	"resolutionnotes": colResolutionNotes, "notes": colResolutionNotes,
}

// ParseCSV reads alert rows from CSV text with a header line. Rows with
// neither an MCN nor a description are dropped.
func ParseCSV(text string) ([]Row, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, apperr.Invalidf("alerts csv header: %v", err)
	}

	cols := make(map[column]int)
	for i, h := range header {
		if c, ok := headerAliases[squash(h)]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	_, hasMCN := cols[colMCN]
	_, hasDesc := cols[colDescription]
	if !hasMCN && !hasDesc {
		return nil, apperr.Invalidf("alerts csv: no MCN or description column in header %q", strings.Join(header, ","))
	}

	rows := []Row{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Invalidf("alerts csv line %d: %v", line, err)
		}
		get := func(c column) string {
			i, ok := cols[c]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := Row{
			AlertCode:       get(colAlertCode),
			MCNumber:        get(colMCN),
			Description:     get(colDescription),
			PersonName:      get(colPersonName),
			Program:         get(colProgram),
			Region:          get(colRegion),
			AlertDate:       get(colAlertDate),
			DueDate:         get(colDueDate),
			Status:          get(colStatus),
			ResolutionNotes: get(colResolutionNotes),
		}
		if row.PersonName == "" {
			row.PersonName = strings.TrimSpace(get(colFirstName) + " " + get(colLastName))
		}
		if row.MCNumber == "" && row.Description == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func squash(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// String renders the row for logs.
func (r Row) String() string {
	return fmt.Sprintf("%s/%s", r.MCNumber, r.Description)
}
