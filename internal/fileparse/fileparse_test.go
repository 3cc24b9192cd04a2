package fileparse

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int64
		wantErr error
	}{
		{"csv", "data.csv", 100, nil},
		{"upper case xlsx", "DATA.XLSX", 100, nil},
		{"xls accepted at boundary", "old.xls", 100, nil},
		{"exactly at limit", "data.csv", MaxFileSize, nil},
		{"too large", "data.csv", MaxFileSize + 1, ErrFileTooLarge},
		{"pdf", "report.pdf", 100, ErrUnsupportedType},
		{"no extension", "data", 100, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.file, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "Check() = %v, want %v", err, tt.wantErr)
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    [][]any
	}{
		{
			name:        "simple",
			input:       "a,b,c\n1,2,3",
			wantHeaders: []string{"a", "b", "c"},
			wantRows:    [][]any{{"1", "2", "3"}},
		},
		{
			name:        "quoted field with comma",
			input:       "name,address\nJohn,\"123 Main St, Apt 4\"",
			wantHeaders: []string{"name", "address"},
			wantRows:    [][]any{{"John", "123 Main St, Apt 4"}},
		},
		{
			name:        "ragged rows padded and truncated",
			input:       "a,b,c\n1,2\nx,y,z,w",
			wantHeaders: []string{"a", "b", "c"},
			wantRows:    [][]any{{"1", "2", nil}, {"x", "y", "z"}},
		},
		{
			name:        "blank rows dropped",
			input:       "\n\na,b\n1,2\n,\n3,4\n",
			wantHeaders: []string{"a", "b"},
			wantRows:    [][]any{{"1", "2"}, {"3", "4"}},
		},
		{
			name:        "utf8 bom stripped",
			input:       "\ufeffemail,name\nx@y.z,X",
			wantHeaders: []string{"email", "name"},
			wantRows:    [][]any{{"x@y.z", "X"}},
		},
		{
			name:        "excel text guard removed",
			input:       "=\"id\",code\n=\"00123\",A",
			wantHeaders: []string{"id", "code"},
			wantRows:    [][]any{{"00123", "A"}},
		},
		{
			name:        "blank header named by position",
			input:       "a,,c\n1,2,3",
			wantHeaders: []string{"a", "Column 2", "c"},
			wantRows:    [][]any{{"1", "2", "3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := Parse(strings.NewReader(tt.input), "people.csv", int64(len(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeaders, fd.Headers)
			assert.Equal(t, tt.wantRows, fd.Rows)
			assert.Equal(t, "people.csv", fd.FileName)
			assert.Equal(t, "csv", fd.FileType)
		})
	}
}

func TestParseCSV_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("name,city\nZoë,Malmö\n"))
	require.NoError(t, err)

	fd, err := Parse(bytes.NewReader(data), "utf16.csv", int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, fd.Headers)
	assert.Equal(t, [][]any{{"Zoë", "Malmö"}}, fd.Rows)
}

func TestParse_Errors(t *testing.T) {
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 64)...)

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"empty csv", "empty.csv", nil, ErrEmptyFile},
		{"whitespace only", "blank.csv", []byte("  \n\n "), ErrEmptyFile},
		{"separator only", "commas.csv", []byte(",,,\n,,\n"), ErrEmptyFile},
		{"header without rows", "header.csv", []byte("email,first_name\n"), ErrEmptyFile},
		{"header then blank rows", "gaps.csv", []byte("email,first_name\n,\n\n"), ErrEmptyFile},
		{"pdf renamed to csv", "fake.csv", pdf, ErrUnsupportedType},
		{"text renamed to xlsx", "fake.xlsx", []byte("a,b\n1,2"), ErrUnsupportedType},
		{"legacy xls", "old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0}, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tt.data), tt.file, int64(len(tt.data)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "Parse() = %v, want %v", err, tt.wantErr)
		})
	}
}

func TestParse_ReaderLongerThanDeclared(t *testing.T) {
	old := MaxFileSize
	MaxFileSize = 16
	defer func() { MaxFileSize = old }()

	data := strings.Repeat("a,b\n", 10)
	_, err := Parse(strings.NewReader(data), "big.csv", 4)
	assert.True(t, errors.Is(err, ErrFileTooLarge), "Parse() = %v, want ErrFileTooLarge", err)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"SKU", "Price", "Code"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"ABC-1", 42.5, "007"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]any{"ABC-2", 10}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data := buf.Bytes()
	fd, err := Parse(bytes.NewReader(data), "products.xlsx", int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, []string{"SKU", "Price", "Code"}, fd.Headers)
	require.Len(t, fd.Rows, 2)
	assert.Equal(t, []any{"ABC-1", 42.5, "007"}, fd.Rows[0])
	assert.Equal(t, []any{"ABC-2", float64(10), nil}, fd.Rows[1])
	assert.Equal(t, "xlsx", fd.FileType)
}

func TestSniff(t *testing.T) {
	assert.False(t, Sniff([]byte("a,b,c\n1,2,3")).Binary())
	assert.True(t, Sniff([]byte("%PDF-1.7 rest")).Binary())
	assert.True(t, Sniff([]byte{'P', 'K', 0x03, 0x04, 0, 0, 0, 0}).Zip())
}
