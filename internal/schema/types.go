// Package schema is the catalog of target tables an import can write to.
//
// A table is a named, ordered list of typed columns plus the endpoint that
// accepts new records for it. Tables are pure data: the import engine in
// package core reads them but never mutates them.
package schema

import (
	"fmt"
	"strings"
)

// DataType is the declared type of a target column.
type DataType string

const (
	TypeVarchar   DataType = "VARCHAR"
	TypeText      DataType = "TEXT"
	TypeInt       DataType = "INT"
	TypeDecimal   DataType = "DECIMAL"
	TypeBoolean   DataType = "BOOLEAN"
	TypeDate      DataType = "DATE"
	TypeDatetime  DataType = "DATETIME"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeEnum      DataType = "ENUM"
)

var knownTypes = map[DataType]bool{
	TypeVarchar: true, TypeText: true, TypeInt: true, TypeDecimal: true, TypeBoolean: true,
	TypeDate: true, TypeDatetime: true, TypeTimestamp: true, TypeEnum: true,
}

// ParseDataType converts a catalog string to a DataType (case-insensitive).
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToUpper(strings.TrimSpace(s)))
	if !knownTypes[t] {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// IsTextual reports whether values of this type are stored as plain strings.
func (t DataType) IsTextual() bool {
	return t == TypeVarchar || t == TypeText || t == TypeEnum
}

// Column describes one column of a target table.
type Column struct {
	Name         string   `json:"name" yaml:"name"`
	DisplayName  string   `json:"displayName" yaml:"displayName"`
	DataType     DataType `json:"dataType" yaml:"dataType"`
	Required     bool     `json:"required" yaml:"required"`
	MaxLength    int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"` // 0 means unbounded
	DefaultValue string   `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// HasDefault reports whether the schema declares a default for the column.
func (c Column) HasDefault() bool {
	return c.DefaultValue != ""
}

// Label returns the display name, falling back to the column name.
func (c Column) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// Table is a target table of the import.
type Table struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	URLEndpoint string   `json:"urlEndpoint" yaml:"urlEndpoint"` // empty means no submission endpoint configured
	Columns     []Column `json:"columns" yaml:"columns"`
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RequiredColumns returns the required columns in schema order.
func (t Table) RequiredColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks the table invariants: a name, known column types and
// column names unique within the table.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column %d has no name", t.Name, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if !knownTypes[c.DataType] {
			return fmt.Errorf("table %s: column %s has unknown data type %q", t.Name, c.Name, c.DataType)
		}
		if c.MaxLength < 0 {
			return fmt.Errorf("table %s: column %s has negative maxLength", t.Name, c.Name)
		}
	}
	return nil
}
