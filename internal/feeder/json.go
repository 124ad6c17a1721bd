package feeder

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// JSONFeeder reads rows from a JSON file containing an array of objects.
// Columns are the union of object keys in first-seen order.
type JSONFeeder struct {
	sliceFeeder
	path string
}

// NewJSONFeeder creates a new JSON feeder from the given file path.
// The file must contain a JSON array of objects.
func NewJSONFeeder(path string) (*JSONFeeder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array of objects")
	}

	var (
		columns []string
		seen    = map[string]struct{}{}
		rows    []Row
		rowErr  error
	)
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			rowErr = fmt.Errorf("record %d is not an object", len(rows))
			return false
		}
		row := rowFromObject(item)
		item.ForEach(func(key, _ gjson.Result) bool {
			if _, ok := seen[key.String()]; !ok {
				seen[key.String()] = struct{}{}
				columns = append(columns, key.String())
			}
			return true
		})
		rows = append(rows, row)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	// Objects that lack a later-discovered key read it as an empty cell.
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = ""
			}
		}
	}

	return &JSONFeeder{
		sliceFeeder: sliceFeeder{columns: columns, rows: rows},
		path:        path,
	}, nil
}

// Path returns the file the feeder was loaded from.
func (f *JSONFeeder) Path() string {
	return f.path
}

// rowFromObject flattens one JSON object into a Row. Scalars keep their
// textual form, null becomes an empty cell and nested values keep raw JSON.
func rowFromObject(obj gjson.Result) Row {
	row := Row{}
	obj.ForEach(func(key, value gjson.Result) bool {
		row[key.String()] = cellText(value)
		return true
	})
	return row
}

func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return v.Raw
	case gjson.JSON:
		return v.Raw
	default:
		return v.String()
	}
}
