package core

import (
	"errors"
	"regexp"
	"strings"
)

// SystemColumn is the column reported for failures that name no field.
const SystemColumn = "System"

var (
	duplicateEntryPattern = regexp.MustCompile(`Duplicate entry '(.*?)' for key '([^']*)'`)
	cannotBeNullPattern   = regexp.MustCompile(`(?i)cannot be null`)
)

// RejectedError is returned by a Submitter when the endpoint answered with a
// non-2xx status. Message is the decoded response body.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// ClassifySubmissionError turns a failed submission into a per-row error.
// Endpoint rejections go through ClassifyMessage; anything else, such as a
// transport failure, is reported against SystemColumn.
func ClassifySubmissionError(row int, err error) ValidationError {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		column, msg := ClassifyMessage(rejected.Message)
		return ValidationError{Row: row, Column: column, Message: msg}
	}
	return ValidationError{Row: row, Column: SystemColumn, Message: err.Error()}
}

// ClassifyMessage guesses which column a free-text error is about.
//
// Recognized shapes, first match wins:
//
//	Duplicate entry 'x' for key 'table.field'  -> field
//	field: cannot be null / Column 'field' cannot be null -> field, "cannot be null"
//	field: message -> field, message
//
// Anything else is attributed to SystemColumn.
func ClassifyMessage(raw string) (column, message string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SystemColumn, "Unknown error"
	}

	if m := duplicateEntryPattern.FindStringSubmatch(raw); m != nil {
		key := m[2]
		if i := strings.LastIndex(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if key != "" {
			return key, "Duplicate entry '" + m[1] + "'"
		}
	}

	if loc := cannotBeNullPattern.FindStringIndex(raw); loc != nil {
		if field := nullField(raw[:loc[0]]); field != "" {
			return field, "cannot be null"
		}
	}

	if i := strings.Index(raw, ":"); i > 0 {
		column, message = strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
		if column != "" && message != "" {
			return column, message
		}
	}

	return SystemColumn, raw
}

// nullField extracts the field name from the text preceding "cannot be null":
// the part before a colon if there is one, else the last word.
func nullField(prefix string) string {
	if i := strings.Index(prefix, ":"); i >= 0 {
		prefix = prefix[:i]
	}
	words := strings.Fields(prefix)
	if len(words) == 0 {
		return ""
	}
	return strings.Trim(words[len(words)-1], "'\"`")
}
