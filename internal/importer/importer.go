// Package importer turns spreadsheet rows into claims and claims back into
// spreadsheets. Column names vary between exports, so every claim field is
// looked up through a list of aliases.
package importer

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
)

// Row is one spreadsheet row keyed by column header. Values are strings when
// read from CSV and may be numbers when posted as JSON.
type Row map[string]any

// Column aliases, tried in order; the first non-empty value wins.
var (
	claimNoCols       = []string{"ClaimNo", "claimNo", "Claim No", "Claim #", "Claim#"}
	patientCols       = []string{"Patient", "patient", "PatientName", "Patient Name"}
	balanceCols       = []string{"Balance", "balance"}
	dosCols           = []string{"DOS", "D.O.S", "dos", "Date of Service", "DateOfService"}
	visitTypeCols     = []string{"VisitType", "Visit Type", "visitType"}
	acctNoCols        = []string{"AcctNo", "Acct #", "Acct#", "AccountNo", "Account #", "acctNo"}
	primaryPayerCols  = []string{"PrimaryPayer", "Primary Payer", "Payer", "primaryPayer"}
	billedChargesCols = []string{"BilledCharges", "Billed Charges", "billedCharges"}
	priorityCols      = []string{"Priority", "priority"}
	ageCols           = []string{"Age", "age"}
	ageBucketCols     = []string{"AgeBucket", "Age Bucket", "ageBucket"}
	assignedToCols    = []string{"AssignTo", "assignTo", "AssignedTo", "Assign To"}
)

// Result is the outcome of mapping a batch of rows
type Result struct {
	Claims  []models.ClaimInput
	Dropped int
}

// Parse maps every row and drops those without a claim number or patient
func Parse(rows []Row, loc *time.Location) Result {
	res := Result{Claims: make([]models.ClaimInput, 0, len(rows))}
	for _, row := range rows {
		in := MapRow(row, loc)
		if in.ClaimNo == "" || in.Patient == "" {
			res.Dropped++
			continue
		}
		res.Claims = append(res.Claims, in)
	}
	return res
}

// MapRow converts one row to a claim payload. Unparseable numbers become
// zero and unparseable dates become nil.
func MapRow(row Row, loc *time.Location) models.ClaimInput {
	in := models.ClaimInput{
		ClaimNo:       text(row, claimNoCols...),
		Patient:       text(row, patientCols...),
		Balance:       number(row, balanceCols...),
		VisitType:     optionalText(row, visitTypeCols...),
		AcctNo:        optionalText(row, acctNoCols...),
		PrimaryPayer:  optionalText(row, primaryPayerCols...),
		BilledCharges: number(row, billedChargesCols...),
		Priority:      optionalText(row, priorityCols...),
		AgeBucket:     optionalText(row, ageBucketCols...),
		AssignedTo:    optionalText(row, assignedToCols...),
		SharedWith:    []string{},
	}

	if age := int(number(row, ageCols...)); age != 0 {
		in.Age = &age
	}
	if v := first(row, dosCols...); v != nil {
		in.DOS = ParseDOS(v, loc)
	}
	return in
}

// first returns the first non-empty value among the aliased columns
func first(row Row, cols ...string) any {
	for _, col := range cols {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			return s
		}
		return v
	}
	return nil
}

func text(row Row, cols ...string) string {
	switch v := first(row, cols...).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		b, _ := json.Marshal(v)
		return strings.Trim(string(b), `"`)
	}
}

func optionalText(row Row, cols ...string) *string {
	if s := text(row, cols...); s != "" {
		return &s
	}
	return nil
}

func number(row Row, cols ...string) float64 {
	f, _ := toFloat(first(row, cols...))
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(n))
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
