// Package sheet decodes operator-uploaded tabular files into a grid of cells.
//
// Two encodings are supported: comma-separated text and OOXML spreadsheets
// (xlsx/xlsm). The decoder picks the format from the file name extension,
// falling back to content sniffing on the first bytes. Callers receive a
// plain [][]string grid and never deal with format specifics.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when the file is neither CSV nor xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// xlsxMagic is the ZIP local-file-header signature; xlsx files are ZIP archives.
var xlsxMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// Decode reads an uploaded file and returns its cells as rows of strings.
// The file name is used to pick the decoder; unknown extensions are sniffed.
func Decode(filename string, r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return decodeCSV(data)
	case ".xlsx", ".xlsm":
		return decodeXLSX(data)
	default:
		if bytes.HasPrefix(data, xlsxMagic) {
			return decodeXLSX(data)
		}
		return decodeCSV(data)
	}
}

// decodeCSV parses comma-separated text into a cell grid.
// The reader is wrapped to skip a UTF-8 BOM and sanitize invalid bytes,
// which Windows spreadsheet exports produce routinely.
func decodeCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(wrapCSVReader(bytes.NewReader(data)))
	reader.FieldsPerRecord = -1 // ragged rows are the parser's problem, not ours
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// decodeXLSX parses an OOXML workbook and returns the cells of its first sheet.
func decodeXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
