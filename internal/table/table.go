// Package table converts ordered feature rows into a columnar Apache Arrow
// record. Rows keep their input order and columns are the union of feature
// names in first-seen order.
package table

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/torosent/fluvial/internal/record"
)

// TimestampType is the Arrow type used for time columns.
var TimestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

type column struct {
	name  string
	kinds map[record.Kind]int
}

// dataType picks the narrowest Arrow type that holds every non-null cell.
// Columns with no values at all, or with mixed kinds, are strings.
func (c *column) dataType() arrow.DataType {
	switch {
	case len(c.kinds) == 1 && c.kinds[record.KindNumber] > 0:
		return arrow.PrimitiveTypes.Float64
	case len(c.kinds) == 1 && c.kinds[record.KindTime] > 0:
		return TimestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// FromFeatures builds one Arrow record from rows. A cell missing from a row,
// or holding null, is an Arrow null. The caller owns the returned record and
// must Release it. A nil allocator uses the Go allocator.
func FromFeatures(mem memory.Allocator, rows []record.Features) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var columns []*column
	index := make(map[string]int)
	for r, row := range rows {
		seen := make(map[string]bool, len(row))
		for _, field := range row {
			if seen[field.Name] {
				return nil, fmt.Errorf("row %d: duplicate column %q", r, field.Name)
			}
			seen[field.Name] = true

			i, ok := index[field.Name]
			if !ok {
				i = len(columns)
				index[field.Name] = i
				columns = append(columns, &column{name: field.Name, kinds: make(map[record.Kind]int)})
			}
			if !field.Value.IsNull() {
				columns[i].kinds[field.Value.Kind()]++
			}
		}
	}

	fields := make([]arrow.Field, len(columns))
	arrays := make([]arrow.Array, len(columns))
	defer func() {
		for _, arr := range arrays {
			if arr != nil {
				arr.Release()
			}
		}
	}()

	for i, col := range columns {
		dt := col.dataType()
		fields[i] = arrow.Field{Name: col.name, Type: dt, Nullable: true}
		arr, err := buildColumn(mem, dt, col.name, rows)
		if err != nil {
			return nil, err
		}
		arrays[i] = arr
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, int64(len(rows))), nil
}

func buildColumn(mem memory.Allocator, dt arrow.DataType, name string, rows []record.Features) (arrow.Array, error) {
	switch dt {
	case arrow.PrimitiveTypes.Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, row := range rows {
			v, _ := row.Get(name)
			if f, ok := v.Float(); ok {
				b.Append(f)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case TimestampType:
		b := array.NewTimestampBuilder(mem, TimestampType)
		defer b.Release()
		for _, row := range rows {
			v, _ := row.Get(name)
			if ts, ok := v.Timestamp(); ok {
				b.Append(arrow.Timestamp(ts.UnixNano()))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case arrow.BinaryTypes.String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, row := range rows {
			v, ok := row.Get(name)
			if !ok || v.IsNull() {
				b.AppendNull()
				continue
			}
			b.Append(v.String())
		}
		return b.NewArray(), nil
	default:
		return nil, fmt.Errorf("column %q: unsupported type %s", name, dt)
	}
}

// Header returns the column names of rec.
func Header(rec arrow.Record) []string {
	names := make([]string, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		names[i] = f.Name
	}
	return names
}

// Cell renders the value at row i of arr. Nulls render as the empty string.
func Cell(arr arrow.Array, i int) string {
	if arr.IsNull(i) {
		return ""
	}
	switch a := arr.(type) {
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'f', -1, 64)
	case *array.Timestamp:
		return time.Unix(0, int64(a.Value(i))).UTC().Format(time.RFC3339Nano)
	case *array.String:
		return a.Value(i)
	default:
		return fmt.Sprintf("<%s>", arr.DataType())
	}
}

// Rows renders every cell of rec, row by row.
func Rows(rec arrow.Record) [][]string {
	out := make([][]string, rec.NumRows())
	for r := range out {
		row := make([]string, rec.NumCols())
		for c := range row {
			row[c] = Cell(rec.Column(c), r)
		}
		out[r] = row
	}
	return out
}
