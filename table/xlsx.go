package table

import (
	"github.com/xuri/excelize/v2"

	"github.com/teranos/xalq/errors"
)

// readWorkbook reads the first sheet; the first row is the header
func readWorkbook(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open workbook %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.Wrapf(errors.ErrEmptyDataset, "%s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read sheet %q of %s", sheets[0], path)
	}

	// Leading blank rows are not headers
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, nil, errors.Wrapf(errors.ErrEmptyDataset, "%s has no header row", path)
	}
	return rows[0], rows[1:], nil
}
