package fileparse

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// parseXLSX reads the first worksheet. Cells stored as numbers whose
// displayed text is a plain number become float64; everything else keeps
// its displayed text.
func parseXLSX(data []byte) (core.FileData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return core.FileData{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.FileData{}, fmt.Errorf("%w: workbook has no sheets", ErrEmptyFile)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return core.FileData{}, fmt.Errorf("invalid xlsx: read sheet %s: %w", sheet, err)
	}

	raw := make([][]any, len(rows))
	for r, cells := range rows {
		row := make([]any, len(cells))
		for c, text := range cells {
			row[c] = cellValue(f, sheet, r, c, text)
		}
		raw[r] = row
	}
	return table(raw)
}

func cellValue(f *excelize.File, sheet string, r, c int, text string) any {
	if text == "" {
		return ""
	}
	name, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return text
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil || (typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset) {
		return cleanCell(text)
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return n
	}
	return text
}
