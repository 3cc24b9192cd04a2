package core

// validation.go checks mapped cells against their target columns.
//
// Validation is exhaustive: every row and every mapped column is checked and
// all problems are returned, so a preview can show them at once. A required
// but empty cell reports only the required error.

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// Validation messages.
const (
	MsgRequired    = "This field is required"
	MsgInvalidInt  = "Must be a whole number"
	MsgInvalidDec  = "Must be a valid number"
	MsgInvalidDate = "Must be a valid date"
	MsgInvalidTime = "Must be a valid date and time"
	MsgInvalidBool = "Must be one of true/false, yes/no, 1/0, y/n"
)

// Validate checks every row against the columns its mappings point at.
// mappings[i] applies to cell i of each row. Row numbers in the result
// are 1-based positions in rows.
func Validate(rows [][]any, mappings []ColumnMapping, columns []schema.Column) []ValidationError {
	byName := columnIndex(columns)
	var errs []ValidationError

	for r, row := range rows {
		for i, m := range mappings {
			col, ok := byName[m.Target()]
			if !ok {
				continue
			}

			value := effectiveValue(cellAt(row, i), m, col)
			if msg := ValidateValue(value, col); msg != "" {
				errs = append(errs, ValidationError{
					Row:     r + 1,
					Column:  col.Label(),
					Message: msg,
					Value:   value,
				})
			}
		}
	}

	return errs
}

// ValidateValue checks one effective value against a column.
// Returns "" when the value is acceptable.
func ValidateValue(value any, col schema.Column) string {
	if isEmpty(value) {
		if col.Required {
			return MsgRequired
		}
		return ""
	}

	s := strings.TrimSpace(cellString(value))

	switch col.DataType {
	case schema.TypeInt:
		if _, ok := ParseInt(s); !ok {
			return MsgInvalidInt
		}
	case schema.TypeDecimal:
		if _, ok := ParseDecimal(s); !ok {
			return MsgInvalidDec
		}
	case schema.TypeDate:
		if _, ok := ParseDate(s); !ok {
			return MsgInvalidDate
		}
	case schema.TypeDatetime, schema.TypeTimestamp:
		if _, ok := ParseDatetime(s); !ok {
			return MsgInvalidTime
		}
	case schema.TypeBoolean:
		if _, ok := ParseBool(s); !ok {
			return MsgInvalidBool
		}
	case schema.TypeVarchar, schema.TypeText:
		if col.MaxLength > 0 && utf8.RuneCountInString(s) > col.MaxLength {
			return fmt.Sprintf("Must be at most %d characters", col.MaxLength)
		}
	}

	return ""
}

// MissingRequired returns the required columns that no mapping feeds and
// that have no schema default. An import cannot start while any remain.
func MissingRequired(mappings []ColumnMapping, table schema.Table) []schema.Column {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Mapped() {
			mapped[m.Target()] = true
		}
	}

	var missing []schema.Column
	for _, c := range table.RequiredColumns() {
		if !mapped[c.Name] && !c.HasDefault() {
			missing = append(missing, c)
		}
	}
	return missing
}

// CheckMappings reports mappings that point at unknown columns or that
// share a column with an earlier mapping.
func CheckMappings(mappings []ColumnMapping, table schema.Table) error {
	seen := make(map[string]string, len(mappings))
	for _, m := range mappings {
		target := m.Target()
		if target == "" {
			continue
		}
		if _, ok := table.Column(target); !ok {
			return fmt.Errorf("%w: column %q is not in table %s", ErrInvalidMapping, target, table.Name)
		}
		if prev, dup := seen[target]; dup {
			return fmt.Errorf("%w: headers %q and %q both map to %s", ErrInvalidMapping, prev, m.FileHeader, target)
		}
		seen[target] = m.FileHeader
	}
	return nil
}

// effectiveValue substitutes a default for an empty cell when the mapping
// asks for it. The mapping's own default wins over the column's.
func effectiveValue(cell any, m ColumnMapping, col schema.Column) any {
	if !isEmpty(cell) || !m.UseDefaultValue {
		return cell
	}
	if m.DefaultValue != "" {
		return m.DefaultValue
	}
	if col.HasDefault() {
		return col.DefaultValue
	}
	return cell
}

func cellAt(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func columnIndex(columns []schema.Column) map[string]schema.Column {
	idx := make(map[string]schema.Column, len(columns))
	for _, c := range columns {
		idx[c.Name] = c
	}
	return idx
}
