package fileparse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// parseCSV decodes data as UTF-8, or UTF-16 when it starts with a UTF-16
// byte order mark, and reads it as comma-separated records. Invalid UTF-8
// sequences become U+FFFD.
func parseCSV(data []byte) (core.FileData, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return core.FileData{}, fmt.Errorf("encoding error: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return core.FileData{}, fmt.Errorf("invalid csv: %w", err)
	}

	raw := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = cleanCell(v)
		}
		raw[i] = row
	}
	return table(raw)
}
