package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/teranos/xalq/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// delimiters in tie-break order
var delimiters = []rune{',', ';', '\t'}

func readCSV(path string) ([]string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1 // ragged rows are padded later
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, errors.Wrapf(errors.ErrEmptyDataset, "%s is empty", path)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse header of %s", path)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return header, records, nil
}

// detectDelimiter counts candidate delimiters on the header line outside
// quotes and picks the most frequent. Comma wins ties and empty headers.
func detectDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, ch := range line {
		if ch == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[ch]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
