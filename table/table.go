// Package table loads tabular client datasets (CSV, XLSX, XLSM) into rows
// keyed by column name, and picks the column that identifies each row.
package table

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teranos/xalq/errors"
)

// Row is one data row. Index is zero-based over data rows (the header is not counted).
type Row struct {
	Index   int
	Columns []string          // header order
	Values  map[string]string // keyed by header as written in the file
}

// Get returns the value of col, matching the header case-insensitively
func (r Row) Get(col string) (string, bool) {
	if v, ok := r.Values[col]; ok {
		return v, true
	}
	for _, c := range r.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(col)) {
			return r.Values[c], true
		}
	}
	return "", false
}

// FirstColumnContaining returns the first header (in file order) whose
// lowercased form contains any of the given fragments.
func (r Row) FirstColumnContaining(fragments ...string) (string, bool) {
	return firstContaining(r.Columns, fragments)
}

// Format renders the row as "column: value" lines in header order.
// This is the block appended to prompts.
func (r Row) Format() string {
	var b strings.Builder
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c)
		b.WriteString(": ")
		b.WriteString(r.Values[c])
	}
	return b.String()
}

// RowSet is a loaded dataset
type RowSet struct {
	Path             string
	Columns          []string
	Rows             []Row
	IdentifierColumn string
}

// Len returns the number of data rows
func (s *RowSet) Len() int {
	return len(s.Rows)
}

// Labels returns "{index}: {identifier value}" for every row, in order
func (s *RowSet) Labels() []string {
	labels := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		labels[i] = fmt.Sprintf("%d: %s", row.Index, row.Values[s.IdentifierColumn])
	}
	return labels
}

// ParseLabel extracts the row index from a label produced by Labels
func ParseLabel(label string) (int, error) {
	head, _, found := strings.Cut(label, ":")
	if !found {
		head = label
	}
	idx, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || idx < 0 {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "invalid row label %q", label)
	}
	return idx, nil
}

// Load reads a dataset by extension. It has no side effects.
func Load(path string) (*RowSet, error) {
	var (
		header  []string
		records [][]string
		err     error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		header, records, err = readCSV(path)
	case ".xlsx", ".xlsm":
		header, records, err = readWorkbook(path)
	default:
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrUnsupportedFormat, "%s", filepath.Base(path)),
			"supported formats are .csv, .xlsx and .xlsm",
		)
	}
	if err != nil {
		return nil, err
	}

	columns := normalizeHeader(header)
	rows := buildRows(columns, records)
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "%s has no data rows", filepath.Base(path))
	}

	return &RowSet{
		Path:             path,
		Columns:          columns,
		Rows:             rows,
		IdentifierColumn: IdentifierColumn(columns),
	}, nil
}

// normalizeHeader trims names, names blank headers "Unnamed: i" and
// disambiguates duplicates as "name.1", "name.2".
func normalizeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

// buildRows skips records whose cells are all blank. Short records are padded.
func buildRows(columns []string, records [][]string) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		values := make(map[string]string, len(columns))
		for i, c := range columns {
			if i < len(rec) {
				values[c] = strings.TrimSpace(rec[i])
			} else {
				values[c] = ""
			}
		}
		rows = append(rows, Row{Index: len(rows), Columns: columns, Values: values})
	}
	return rows
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
