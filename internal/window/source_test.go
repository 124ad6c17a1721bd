package window

import (
	"context"

	"github.com/torosent/fluvial/internal/record"
)

// sliceSource serves a fixed list of records in order.
type sliceSource struct {
	records []record.Record
	index   int
}

func newSliceSource(records []record.Record) *sliceSource {
	return &sliceSource{records: records}
}

func (s *sliceSource) Next(ctx context.Context) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	if s.index >= len(s.records) {
		return record.Record{}, record.ErrExhausted
	}
	rec := s.records[s.index]
	s.index++
	return rec, nil
}

// Pulled returns how many records have been served.
func (s *sliceSource) Pulled() int { return s.index }
