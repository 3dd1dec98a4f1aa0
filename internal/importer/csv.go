package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"

	"github.com/rongwang/claims-tracker/internal/models"
)

// ExportColumns is the header written by WriteCSV. The names match the
// import aliases so an export can be imported again.
var ExportColumns = []string{
	"ClaimNo", "Patient", "Balance", "DOS", "VisitType", "AcctNo",
	"PrimaryPayer", "BilledCharges", "Priority", "Age", "AgeBucket",
	"AssignedTo", "SharedWith", "Status", "ActionTaken", "DateWorked",
	"NextFollowUp", "LastWorkedBy",
}

// ReadCSV reads a spreadsheet export into rows keyed by trimmed header
func ReadCSV(r io.Reader) ([]Row, error) {
	// Spreadsheet tools commonly prepend a byte order mark
	reader := utfbom.SkipOnly(r)

	// No cell is treated as missing, "NA" is a real value in these exports
	df := dataframe.ReadCSV(reader,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", df.Err)
	}

	records := df.Records()
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, val := range record {
			row[headers[i]] = val
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes claims as a spreadsheet with ExportColumns as the header
func WriteCSV(w io.Writer, claims []models.Claim, loc *time.Location) error {
	if len(claims) == 0 {
		// dataframes cannot be built from a header alone
		cw := csv.NewWriter(w)
		if err := cw.Write(ExportColumns); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	records := make([][]string, 0, len(claims)+1)
	records = append(records, ExportColumns)
	for i := range claims {
		records = append(records, record(&claims[i], loc))
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to build export: %w", df.Err)
	}
	return df.WriteCSV(w)
}

func record(c *models.Claim, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	day := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.In(loc).Format("2006-01-02")
	}
	stamp := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.In(loc).Format(time.RFC3339)
	}
	age := ""
	if c.Age != nil {
		age = strconv.Itoa(*c.Age)
	}

	return []string{
		c.ClaimNo,
		c.Patient,
		strconv.FormatFloat(c.Balance, 'f', 2, 64),
		day(c.DOS),
		models.Deref(c.VisitType),
		models.Deref(c.AcctNo),
		models.Deref(c.PrimaryPayer),
		strconv.FormatFloat(c.BilledCharges, 'f', 2, 64),
		models.Deref(c.Priority),
		age,
		models.Deref(c.AgeBucket),
		models.Deref(c.AssignedTo),
		strings.Join(c.SharedWith, ";"),
		models.Deref(c.Status),
		models.Deref(c.ActionTaken),
		stamp(c.DateWorked),
		stamp(c.NextFollowUp),
		models.Deref(c.LastWorkedBy),
	}
}
