// Package fileparse turns uploaded CSV and XLSX files into core.FileData.
//
// Size and extension are checked before any byte is parsed. Content is
// sniffed so a renamed binary is rejected instead of being read as text.
package fileparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// MaxFileSize is the largest accepted upload (10MB).
var MaxFileSize int64 = 10 * 1024 * 1024

// AllowedExtensions are the file types accepted at the upload boundary.
var AllowedExtensions = []string{".csv", ".xlsx", ".xls"}

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

// Check validates a file's name and size before it is read.
func Check(name string, size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %.1fMB exceeds the %dMB limit",
			ErrFileTooLarge, float64(size)/(1024*1024), MaxFileSize/(1024*1024))
	}
	ext := Ext(name)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	if ext == "" {
		return fmt.Errorf("%w: %s has no extension", ErrUnsupportedType, name)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// Ext returns the lowercased extension of name.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Parse reads a whole upload and parses it by extension.
// size is the declared size; the reader is also capped at MaxFileSize.
func Parse(r io.Reader, name string, size int64) (core.FileData, error) {
	if err := Check(name, size); err != nil {
		return core.FileData{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return core.FileData{}, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > MaxFileSize {
		return core.FileData{}, fmt.Errorf("%w: exceeds the %dMB limit", ErrFileTooLarge, MaxFileSize/(1024*1024))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.FileData{}, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}

	kind := Sniff(data)
	ext := Ext(name)

	var fd core.FileData
	switch ext {
	case ".csv":
		if kind.Binary() {
			return core.FileData{}, fmt.Errorf("%w: %s content is %s, not CSV", ErrUnsupportedType, name, kind)
		}
		fd, err = parseCSV(data)
	case ".xlsx":
		if !kind.Zip() {
			return core.FileData{}, fmt.Errorf("%w: invalid xlsx: %s is not a workbook", ErrUnsupportedType, name)
		}
		fd, err = parseXLSX(data)
	case ".xls":
		return core.FileData{}, fmt.Errorf("%w: legacy .xls workbooks cannot be read, save %s as .xlsx", ErrUnsupportedType, name)
	}
	if err != nil {
		return core.FileData{}, err
	}

	fd.FileName = filepath.Base(name)
	fd.FileType = strings.TrimPrefix(ext, ".")
	fd.FileSize = int64(len(data))
	return fd, nil
}

// ParseFile opens and parses a file from disk.
func ParseFile(path string) (core.FileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.FileData{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.FileData{}, err
	}
	return Parse(f, path, info.Size())
}

// table builds FileData from raw records: the first non-blank record is the
// header, blank rows are dropped and every row is padded or truncated to the
// header width.
func table(records [][]any) (core.FileData, error) {
	start := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return core.FileData{}, fmt.Errorf("%w: no header row", ErrEmptyFile)
	}

	headerRow := records[start]
	for len(headerRow) > 0 && isBlank(headerRow[len(headerRow)-1]) {
		headerRow = headerRow[:len(headerRow)-1]
	}

	headers := make([]string, len(headerRow))
	for i, h := range headerRow {
		s, _ := h.(string)
		if s = cleanHeader(s); s == "" {
			s = fmt.Sprintf("Column %d", i+1)
		}
		headers[i] = s
	}

	rows := make([][]any, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make([]any, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return core.FileData{}, fmt.Errorf("%w: no data rows", ErrEmptyFile)
	}
	return core.FileData{Headers: headers, Rows: rows}, nil
}

// cleanHeader removes common spreadsheet artifacts from a header:
// surrounding space, an Excel formula prefix (="...") and surrounding quotes.
func cleanHeader(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// cleanCell unwraps Excel's ="..." text guard.
func cleanCell(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 3 && strings.HasPrefix(t, "=\"") && strings.HasSuffix(t, "\"") {
		return t[2 : len(t)-1]
	}
	return s
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func isEmptyRow(row []any) bool {
	for _, v := range row {
		if !isBlank(v) {
			return false
		}
	}
	return true
}
