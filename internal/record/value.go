package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged scalar: null, number, string or timestamp.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	ts   time.Time
}

func Null() Value { return Value{} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Text returns the string payload and whether v is a string.
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Timestamp returns the time payload and whether v is a timestamp.
func (v Value) Timestamp() (time.Time, bool) { return v.ts, v.kind == KindTime }

// Interface returns the payload as a plain Go value (nil, float64, string or time.Time).
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindTime:
		return v.ts
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindTime:
		return v.ts.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Parse types a raw cell. Empty cells are null. When asTime is set the cell is
// parsed as a timestamp and kept as a string if no date layout matches.
// Anything else becomes a number when it parses as one and a string otherwise.
func Parse(raw string, asTime bool) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null()
	}
	if asTime {
		if ts, err := dateparse.ParseStrict(trimmed); err == nil {
			return Time(ts)
		}
		return String(raw)
	}
	if f, err := cast.ToFloat64E(trimmed); err == nil {
		if math.IsNaN(f) {
			return Null()
		}
		if !math.IsInf(f, 0) {
			return Number(f)
		}
	}
	return String(raw)
}
