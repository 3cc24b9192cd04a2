package core

// transform.go turns mapped rows into records ready for submission.
//
// Values are coerced to their column types. Required columns that are still
// absent after mapping are filled from the column default and then from
// SyntheticFallbacks, so the endpoint never sees a record missing one.

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// PlaceholderEmailDomain is the domain of generated email addresses.
const PlaceholderEmailDomain = "placeholder.local"

// now is the clock used for timestamp fallbacks.
var now = time.Now

// FallbackFunc produces a last-resort value for a required column from the
// values already in the record.
type FallbackFunc func(rec PreparedRecord, at time.Time) any

// SyntheticFallbacks fills required columns, by name, that have neither a
// mapped value nor a schema default.
var SyntheticFallbacks = map[string]FallbackFunc{
	"status":     constant("active"),
	"created_at": timestamp,
	"updated_at": timestamp,
	"createdAt":  timestamp,
	"updatedAt":  timestamp,
	"timestamp":  timestamp,
	"email":      placeholderEmail,
	"phone":      constant("000-000-0000"),
	"address":    constant("Not provided"),
	"country":    constant("Unknown"),
	"risk_level": constant("low"),
	"risk_score": constant(0),
}

func constant(v any) FallbackFunc {
	return func(PreparedRecord, time.Time) any { return v }
}

func timestamp(_ PreparedRecord, at time.Time) any {
	return FormatDatetime(at)
}

var nonLocalPart = regexp.MustCompile(`[^a-z0-9]+`)

// placeholderEmail builds first.last@placeholder.local from the name fields,
// or a random user address when there are none.
func placeholderEmail(rec PreparedRecord, _ time.Time) any {
	var parts []string
	for _, key := range []string{"first_name", "last_name"} {
		if s, ok := rec[key].(string); ok {
			if p := strings.Trim(nonLocalPart.ReplaceAllString(strings.ToLower(s), ""), "."); p != "" {
				parts = append(parts, p)
			}
		}
	}
	if len(parts) == 0 {
		return "user-" + uuid.NewString()[:8] + "@" + PlaceholderEmailDomain
	}
	return strings.Join(parts, ".") + "@" + PlaceholderEmailDomain
}

// Prepare converts every row to a PreparedRecord. It does not validate:
// values that fail to coerce are left out of the record.
func Prepare(rows [][]any, mappings []ColumnMapping, columns []schema.Column) []PreparedRecord {
	byName := columnIndex(columns)
	at := now()
	records := make([]PreparedRecord, 0, len(rows))

	for _, row := range rows {
		rec := make(PreparedRecord, len(mappings))

		for i, m := range mappings {
			col, ok := byName[m.Target()]
			if !ok {
				continue
			}

			value := effectiveValue(cellAt(row, i), m, col)
			if isEmpty(value) {
				if !col.Required || !col.HasDefault() {
					continue
				}
				value = col.DefaultValue
			}

			if v := Coerce(value, col); v != nil {
				rec[col.Name] = v
			}
		}

		fillRequired(rec, columns, at)
		records = append(records, rec)
	}

	return records
}

// fillRequired injects values for required columns still absent from rec.
func fillRequired(rec PreparedRecord, columns []schema.Column, at time.Time) {
	for _, col := range columns {
		if !col.Required {
			continue
		}
		if _, ok := rec[col.Name]; ok {
			continue
		}

		if col.HasDefault() {
			if v := Coerce(col.DefaultValue, col); v != nil {
				rec[col.Name] = v
				continue
			}
		}

		fallback, ok := SyntheticFallbacks[col.Name]
		if !ok {
			continue
		}
		raw := fallback(rec, at)
		if v := Coerce(raw, col); v != nil {
			rec[col.Name] = v
		} else {
			rec[col.Name] = raw
		}
	}
}

// Coerce converts an effective value to its column type: int64 for INT,
// float64 for DECIMAL, bool for BOOLEAN, formatted strings for dates and
// trimmed strings otherwise. Returns nil for empty or unparseable values.
func Coerce(value any, col schema.Column) any {
	if isEmpty(value) {
		return nil
	}
	s := strings.TrimSpace(cellString(value))

	switch col.DataType {
	case schema.TypeInt:
		if n, ok := ParseInt(s); ok {
			return n
		}
		return nil
	case schema.TypeDecimal:
		if f, ok := ParseDecimal(s); ok {
			return f
		}
		return nil
	case schema.TypeBoolean:
		switch strings.ToLower(s) {
		case "true", "yes", "1", "y":
			return true
		}
		return false
	case schema.TypeDate:
		if t, ok := ParseDate(s); ok {
			return FormatDate(t)
		}
		return nil
	case schema.TypeDatetime, schema.TypeTimestamp:
		if t, ok := ParseDatetime(s); ok {
			return FormatDatetime(t)
		}
		return nil
	default:
		return s
	}
}
