package core

import (
	"strings"
	"time"
)

// FileData is the parsed form of an uploaded spreadsheet.
// Rows are padded or truncated to len(Headers) by the parser. A cell is a
// string, a float64 (numeric XLSX cells) or nil.
type FileData struct {
	Headers  []string `json:"headers"`
	Rows     [][]any  `json:"rows"`
	FileName string   `json:"fileName"`
	FileType string   `json:"fileType"`
	FileSize int64    `json:"fileSize"`
}

// ColumnMapping links one file header to a target column, or to nothing.
type ColumnMapping struct {
	FileHeader      string  `json:"fileHeader"`
	TableColumn     *string `json:"tableColumn"` // nil leaves the header unmapped
	UseDefaultValue bool    `json:"useDefaultValue"`
	DefaultValue    string  `json:"defaultValue,omitempty"`
	Skip            bool    `json:"skip"`
}

// Target returns the mapped column name, or "" when the mapping is skipped
// or has no column.
func (m ColumnMapping) Target() string {
	if m.Skip || m.TableColumn == nil {
		return ""
	}
	return strings.TrimSpace(*m.TableColumn)
}

// Mapped reports whether the header contributes a value to a column.
func (m ColumnMapping) Mapped() bool {
	return m.Target() != ""
}

// MapTo returns a mapping of header onto column.
func MapTo(header, column string) ColumnMapping {
	return ColumnMapping{FileHeader: header, TableColumn: &column}
}

// Unmapped returns a mapping that leaves header unassigned.
func Unmapped(header string) ColumnMapping {
	return ColumnMapping{FileHeader: header}
}

// ValidationError is a problem with one cell, or with one submitted row.
type ValidationError struct {
	Row     int    `json:"row"`    // 1-based
	Column  string `json:"column"` // display name
	Message string `json:"error"`
	Value   any    `json:"value"`
}

// PreparedRecord maps target column names to coerced values
// (string, int64, float64 or bool).
type PreparedRecord map[string]any

// ImportResult is the outcome of one import run.
type ImportResult struct {
	Success        bool              `json:"success"`
	TotalRows      int               `json:"totalRows"`
	SuccessfulRows int               `json:"successfulRows"`
	FailedRows     int               `json:"failedRows"`
	Errors         []ValidationError `json:"errors"`
}

// newImportResult builds a result where every row not listed in failed
// counted as a success. failed holds one entry per failed row.
func newImportResult(total int, failed []ValidationError) ImportResult {
	if failed == nil {
		failed = []ValidationError{}
	}
	return ImportResult{
		Success:        len(failed) == 0,
		TotalRows:      total,
		SuccessfulRows: total - len(failed),
		FailedRows:     len(failed),
		Errors:         failed,
	}
}

// SuccessRate returns the share of successful rows as a percentage.
func (r ImportResult) SuccessRate() float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(r.SuccessfulRows) * 100 / float64(r.TotalRows)
}

// AuditLog is the durable record of one import run.
type AuditLog struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	FileName       string            `json:"fileName"`
	FileSize       int64             `json:"fileSize"`
	TableName      string            `json:"tableName"`
	TotalRows      int               `json:"totalRows"`
	SuccessfulRows int               `json:"successfulRows"`
	FailedRows     int               `json:"failedRows"`
	Errors         []ValidationError `json:"errors"`
	DurationMS     int64             `json:"duration"` // milliseconds
	ClientIP       string            `json:"clientIp,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
}

// MappingTemplate is a saved set of mappings for one target table.
type MappingTemplate struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	TableName string          `json:"tableName"`
	Mappings  []ColumnMapping `json:"mappings"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TemplateMatch is a template scored against a file's headers.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"matchScore"`
}

// Phase is the state of an import session.
type Phase string

const (
	PhaseLoaded              Phase = "loaded"
	PhaseMapped              Phase = "mapped"
	PhasePreviewed           Phase = "previewed"
	PhaseImporting           Phase = "importing"
	PhaseCompleted           Phase = "completed"
	PhaseCompletedWithErrors Phase = "completed_with_errors"
)

// Done reports whether the phase is terminal.
func (p Phase) Done() bool {
	return p == PhaseCompleted || p == PhaseCompletedWithErrors
}
