package record

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned when the source has no more records, or when too
	// few records ever arrived to build a window. It is terminal.
	ErrExhausted = errors.New("no more records available")

	// ErrTimeout is returned when no record arrived within the configured bound.
	ErrTimeout = errors.New("timed out waiting for a record")
)

// SchemaError reports a configured column that the source schema lacks.
type SchemaError struct {
	Column string
	Role   string // "target", "feature" or "parse_dates"
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s column %q not found in source schema", e.Role, e.Column)
}

// Status is the outcome class of a pull.
type Status int

const (
	StatusOK Status = iota
	StatusExhausted
	StatusTimeout
	StatusSchema
	StatusCanceled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusExhausted:
		return "exhausted"
	case StatusTimeout:
		return "timeout"
	case StatusSchema:
		return "schema_error"
	case StatusCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Done reports whether the status means the stream has ended. Exhaustion and
// timeout both end iteration.
func (s Status) Done() bool {
	return s == StatusExhausted || s == StatusTimeout
}

// Classify maps an error returned by a Source, generator or batcher onto Status.
func Classify(err error) Status {
	var schemaErr *SchemaError
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrExhausted):
		return StatusExhausted
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.As(err, &schemaErr):
		return StatusSchema
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFailed
	}
}
