package storage

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads a worksheet whose first row holds the column keys.
// An empty sheet name selects the first sheet. Cells are kept as strings.
func LoadXLSX(path, sheet string) (*MemoryStorage, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s has no sheets", path)
		}
		sheet = sheets[0]
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}

	keys := cells[0]
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("sheet %q: header column %d is empty", sheet, i+1)
		}
	}
	rows := make([]Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		r := make(Row, len(keys))
		for i, k := range keys {
			// trailing empty cells are trimmed by excelize
			if i < len(line) {
				r[k] = line[i]
			} else {
				r[k] = ""
			}
		}
		rows = append(rows, r)
	}
	return NewMemoryStorage(keys, rows)
}
