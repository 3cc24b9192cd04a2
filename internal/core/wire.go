package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WireBool is a boolean that travels as the string "true" or "false".
// Decoding also accepts bare JSON booleans and null.
type WireBool bool

func (b WireBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"true"`), nil
	}
	return []byte(`"false"`), nil
}

func (b *WireBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %s", data)
	}
	*b = WireBool(v)
	return nil
}

// WireMapping is the template API form of a ColumnMapping.
type WireMapping struct {
	FileHeader      string   `json:"fileHeader"`
	TableColumn     *string  `json:"tableColumn"`
	UseDefaultValue WireBool `json:"useDefaultValue"`
	DefaultValue    string   `json:"defaultValue,omitempty"`
	Skip            WireBool `json:"skip"`
}

// WireTemplate is the template API form of a MappingTemplate.
type WireTemplate struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	TableName string        `json:"tableName"`
	Mappings  []WireMapping `json:"mappings"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// ToWireMappings converts mappings to their wire form.
func ToWireMappings(ms []ColumnMapping) []WireMapping {
	out := make([]WireMapping, len(ms))
	for i, m := range ms {
		out[i] = WireMapping{
			FileHeader:      m.FileHeader,
			TableColumn:     m.TableColumn,
			UseDefaultValue: WireBool(m.UseDefaultValue),
			DefaultValue:    m.DefaultValue,
			Skip:            WireBool(m.Skip),
		}
	}
	return out
}

// FromWireMappings converts wire mappings back to ColumnMappings.
// An empty tableColumn is read as unmapped.
func FromWireMappings(ws []WireMapping) []ColumnMapping {
	out := make([]ColumnMapping, len(ws))
	for i, w := range ws {
		col := w.TableColumn
		if col != nil && strings.TrimSpace(*col) == "" {
			col = nil
		}
		out[i] = ColumnMapping{
			FileHeader:      w.FileHeader,
			TableColumn:     col,
			UseDefaultValue: bool(w.UseDefaultValue),
			DefaultValue:    w.DefaultValue,
			Skip:            bool(w.Skip),
		}
	}
	return out
}

// ToWireTemplate converts a template to its wire form.
func ToWireTemplate(t MappingTemplate) WireTemplate {
	return WireTemplate{
		ID:        t.ID,
		Name:      t.Name,
		TableName: t.TableName,
		Mappings:  ToWireMappings(t.Mappings),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// Template converts a wire template back to a MappingTemplate.
func (w WireTemplate) Template() MappingTemplate {
	return MappingTemplate{
		ID:        w.ID,
		Name:      w.Name,
		TableName: w.TableName,
		Mappings:  FromWireMappings(w.Mappings),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
