package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ReportHeader is the header row of the detail block of an error report.
var ReportHeader = []string{"Row", "Column", "Error Message", "Value"}

// ErrorReport is the input to WriteErrorReport.
type ErrorReport struct {
	FileName  string
	TableName string
	Date      time.Time
	Result    ImportResult
}

// WriteErrorReport writes a CSV with a summary block, a blank line and one
// line per error.
func WriteErrorReport(w io.Writer, rep ErrorReport) error {
	cw := csv.NewWriter(w)

	summary := [][]string{
		{"Import Error Report"},
		{"File Name", rep.FileName},
		{"Table", rep.TableName},
		{"Date", rep.Date.Format("2006-01-02 15:04:05")},
		{"Total Rows", strconv.Itoa(rep.Result.TotalRows)},
		{"Successful Rows", strconv.Itoa(rep.Result.SuccessfulRows)},
		{"Failed Rows", strconv.Itoa(rep.Result.FailedRows)},
		{"Success Rate", fmt.Sprintf("%.1f%%", rep.Result.SuccessRate())},
		{},
		ReportHeader,
	}
	if err := cw.WriteAll(summary); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}

	for _, e := range rep.Result.Errors {
		record := []string{strconv.Itoa(e.Row), e.Column, e.Message, cellString(e.Value)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write report row %d: %w", e.Row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
