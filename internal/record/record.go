package record

import (
	"bytes"
	"context"
	"encoding/json"
)

// Field is one named column value.
type Field struct {
	Name  string
	Value Value
}

// Features is an ordered mapping from column name to value. Order follows the
// configured feature columns.
type Features []Field

// Get returns the value stored under name.
func (f Features) Get(name string) (Value, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Names returns the column names in order.
func (f Features) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}

// Map returns the features as a plain map of Go values.
func (f Features) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(f))
	for _, field := range f {
		m[field.Name] = field.Value.Interface()
	}
	return m
}

// MarshalJSON encodes the features as a JSON object that keeps column order.
func (f Features) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Target is either a bare scalar (single-target mode) or a named mapping of
// scalars (multi-target mode). The mode is fixed when the generator is built.
type Target struct {
	multi  bool
	single Value
	named  Features
}

func SingleTarget(v Value) Target { return Target{single: v} }

func MultiTarget(named Features) Target { return Target{multi: true, named: named} }

func (t Target) IsMulti() bool { return t.multi }

// Value returns the scalar of a single target. It is null in multi-target mode.
func (t Target) Value() Value { return t.single }

// Named returns the per-column values of a multi target. It is nil in
// single-target mode.
func (t Target) Named() Features { return t.named }

func (t Target) MarshalJSON() ([]byte, error) {
	if t.multi {
		return t.named.MarshalJSON()
	}
	return t.single.MarshalJSON()
}

// Record is one (features, target) pair. Records are never mutated after
// they are produced.
type Record struct {
	Features Features `json:"x"`
	Target   Target   `json:"y"`
}

// Source is the pull contract every record producer satisfies. Next returns
// ErrExhausted once no further records can be obtained and ErrTimeout when a
// record did not arrive in time.
type Source interface {
	Next(ctx context.Context) (Record, error)
}
