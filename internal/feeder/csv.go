package feeder

import (
	"encoding/csv"
	"fmt"
	"os"
)

// CSVFeeder reads rows from a CSV file with a header row.
// The whole file is loaded at construction.
type CSVFeeder struct {
	sliceFeeder
	path string
}

// NewCSVFeeder creates a new CSV feeder from the given file path.
// The first row is treated as the header containing column names. A file with
// a header and no data rows is valid and is exhausted immediately.
func NewCSVFeeder(path string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header := rows[0]
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("CSV header has duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}

	dataRows := rows[1:]
	records := make([]Row, 0, len(dataRows))
	for i, row := range dataRows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}

		record := make(Row, len(header))
		for j, field := range header {
			record[field] = row[j]
		}
		records = append(records, record)
	}

	return &CSVFeeder{
		sliceFeeder: sliceFeeder{columns: header, rows: records},
		path:        path,
	}, nil
}

// Path returns the file the feeder was loaded from.
func (f *CSVFeeder) Path() string {
	return f.path
}
