// Package codec reads and writes the customer ledger as an xlsx workbook.
package codec

import (
	"bytes"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/model"
)

const (
	// MinTableSize is the smallest byte length a real workbook can have.
	MinTableSize = 512
	// MaxColumns bounds the header width accepted on decode.
	MaxColumns = 16
)

// MaxCellChars is the longest cell value, in runes, a workbook stores intact.
const MaxCellChars = excelize.TotalCellChars

// ContentType is the MIME type of an encoded ledger.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columnWidths = []float64{20, 30, 15, 20}

// Encode serialises the ledger into a single-sheet workbook.
func Encode(l *model.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), model.SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	width := len(l.Header)
	if err := f.SetSheetRow(model.SheetName, "A1", toCells(l.Header)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, rec := range l.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(model.SheetName, cell, toCells(rec.Fields(width))); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i := 0; i < width && i < len(columnWidths); i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		// widths are display only
		_ = f.SetColWidth(model.SheetName, col, col, columnWidths[i])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialise workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a workbook produced by Encode. Any structural problem is
// reported as a *appErrors.CorruptionError.
func Decode(data []byte) (*model.Ledger, error) {
	if len(data) < MinTableSize {
		return nil, appErrors.NewCorruptionError(fmt.Sprintf("file too small (%d bytes)", len(data)), nil)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.NewCorruptionError("unreadable workbook", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(model.SheetName)
	if err != nil || idx < 0 {
		return nil, appErrors.NewCorruptionError("sheet "+model.SheetName+" missing", err)
	}

	rows, err := f.GetRows(model.SheetName)
	if err != nil {
		return nil, appErrors.NewCorruptionError("unreadable sheet", err)
	}
	if len(rows) == 0 {
		return nil, appErrors.NewCorruptionError("empty sheet", nil)
	}

	header := rows[0]
	if len(header) > MaxColumns {
		return nil, appErrors.NewCorruptionError(fmt.Sprintf("%d columns exceeds limit of %d", len(header), MaxColumns), nil)
	}
	if !slices.Equal(header, model.Header) && !slices.Equal(header, model.LegacyHeader) {
		return nil, appErrors.NewCorruptionError(fmt.Sprintf("unexpected header %v", header), nil)
	}

	l := &model.Ledger{Header: slices.Clone(header), Rows: make([]model.CustomerRecord, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, appErrors.NewCorruptionError(fmt.Sprintf("row %d has %d cells", i+2, len(row)), nil)
		}
		rec := model.RecordFromFields(row)
		if rec.Name == "" {
			return nil, appErrors.NewCorruptionError(fmt.Sprintf("row %d missing name", i+2), nil)
		}
		l.Rows = append(l.Rows, rec)
	}
	return l, nil
}

// Salvage pulls whatever named rows can still be read from a workbook that
// failed Decode. It returns nil when nothing is readable.
func Salvage(data []byte) []model.CustomerRecord {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer f.Close()

	sheet := model.SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil
	}

	var out []model.CustomerRecord
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if i == 0 && row[0] == model.Header[0] {
			continue
		}
		if len(row) > len(model.Header) {
			row = row[:len(model.Header)]
		}
		out = append(out, model.RecordFromFields(row))
	}
	return out
}

// Encodable reports whether s survives Encode and Decode unchanged: valid
// UTF-8, at most MaxCellChars runes, and only characters XML can carry.
func Encodable(s string) bool {
	if !utf8.ValidString(s) || utf8.RuneCountInString(s) > MaxCellChars {
		return false
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return false
		}
	}
	return true
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func toCells(values []string) *[]interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}
