package feeder

import (
	"context"

	"github.com/torosent/fluvial/internal/record"
)

// Row is a single raw row keyed by column name. Cells keep their source text;
// typing happens in the generator.
type Row map[string]string

// Feeder is a pull-based source of raw rows with a fixed column schema.
type Feeder interface {
	// Columns returns the source schema in column order.
	Columns() []string

	// Next returns the next row, or record.ErrExhausted when the source has
	// no more rows. It blocks until a row is available or ctx is done.
	Next(ctx context.Context) (Row, error)

	// Close releases any resources held by the feeder. Next returns
	// record.ErrExhausted after Close.
	Close() error

	// Len returns the total number of rows, or -1 for unbounded sources.
	Len() int
}

// sliceFeeder serves rows that are already in memory.
type sliceFeeder struct {
	columns []string
	rows    []Row
	index   int
	closed  bool
}

func (f *sliceFeeder) Columns() []string {
	return append([]string(nil), f.columns...)
}

func (f *sliceFeeder) Next(ctx context.Context) (Row, error) {
	// Check context cancellation first
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if f.closed || f.index >= len(f.rows) {
		return nil, record.ErrExhausted
	}

	row := f.rows[f.index]
	f.index++
	return row, nil
}

func (f *sliceFeeder) Close() error {
	f.closed = true
	return nil
}

func (f *sliceFeeder) Len() int {
	return len(f.rows)
}

// NewSliceFeeder serves the given rows in order. Row keys outside columns are
// ignored by the generator.
func NewSliceFeeder(columns []string, rows []Row) Feeder {
	return &sliceFeeder{columns: append([]string(nil), columns...), rows: rows}
}
