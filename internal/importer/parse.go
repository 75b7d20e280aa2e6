package importer

import (
	"math"
	"strconv"
	"strings"
)

// Column names accepted in the header row. Matching is case-insensitive
// and whitespace-trimmed, but exact: "sku code" does not match "sku".
const (
	columnSKU      = "sku"
	columnQuantity = "quantity"
	columnQty      = "qty"
)

// ParseGrid converts a decoded cell grid into candidate rows.
//
// The first row is the header; the sku and quantity columns are located by
// normalized name. Data rows with a blank sku or a quantity that is not a
// positive finite number are skipped silently. Surviving rows keep their
// input order.
//
// Returns ErrEmptyFile for a zero-row grid, a MissingColumnsError when a
// required column cannot be located, and ErrNoValidRows when no data row
// survives.
func ParseGrid(grid [][]string) ([]CandidateRow, error) {
	if len(grid) == 0 {
		return nil, ErrEmptyFile
	}

	skuIdx, qtyIdx := -1, -1
	for i, cell := range grid[0] {
		switch normalizeHeader(cell) {
		case columnSKU:
			if skuIdx < 0 {
				skuIdx = i
			}
		case columnQuantity, columnQty:
			if qtyIdx < 0 {
				qtyIdx = i
			}
		}
	}

	var missing []string
	if skuIdx < 0 {
		missing = append(missing, "sku")
	}
	if qtyIdx < 0 {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	rows := make([]CandidateRow, 0, len(grid)-1)
	for _, row := range grid[1:] {
		sku := cellAt(row, skuIdx)
		if sku == "" {
			continue
		}

		qty, ok := parseQuantity(cellAt(row, qtyIdx))
		if !ok {
			continue
		}

		rows = append(rows, CandidateRow{SKU: sku, Quantity: qty})
	}

	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}
	return rows, nil
}

// normalizeHeader lowercases and trims a header cell for column matching.
func normalizeHeader(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}

// cellAt returns the trimmed cell at idx, or "" when the row is too short.
func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseQuantity parses a cell as an order-line quantity.
//
// The cell is parsed as a number so spreadsheet exports like "5.0" are
// accepted; it must be positive and finite. Order lines are integral, so
// the value is truncated toward zero and must still be at least 1.
func parseQuantity(cell string) (int, bool) {
	if cell == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}

	qty := int(f)
	if qty < 1 {
		return 0, false
	}
	return qty, true
}
