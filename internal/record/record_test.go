package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		asTime bool
		want   Value
	}{
		{name: "integer", raw: "42", want: Number(42)},
		{name: "float", raw: "10.5", want: Number(10.5)},
		{name: "padded number", raw: " 7 ", want: Number(7)},
		{name: "text", raw: "sunny", want: String("sunny")},
		{name: "empty", raw: "", want: Null()},
		{name: "blank", raw: "   ", want: Null()},
		{name: "nan", raw: "NaN", want: Null()},
		{name: "date", raw: "2024-01-01 00:01", asTime: true, want: Time(time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC))},
		{name: "unparseable date", raw: "soon", asTime: true, want: String("soon")},
		{name: "words", raw: "not a number", want: String("not a number")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, tt.asTime)
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q, %v) = %v (%s), want %v (%s)", tt.raw, tt.asTime, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	if f, ok := Number(3).Float(); !ok || f != 3 {
		t.Errorf("Number(3).Float() = %v, %v", f, ok)
	}
	if _, ok := String("a").Float(); ok {
		t.Error("String.Float() ok = true, want false")
	}
	if s, ok := String("a").Text(); !ok || s != "a" {
		t.Errorf("String(a).Text() = %q, %v", s, ok)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, ok := Time(ts).Timestamp(); !ok || !got.Equal(ts) {
		t.Errorf("Time().Timestamp() = %v, %v", got, ok)
	}
	if !Null().IsNull() || Null().Interface() != nil {
		t.Error("Null() is not null")
	}
	if Number(1).Equal(String("1")) {
		t.Error("Number(1).Equal(String(1)) = true, want false")
	}
}

func TestFeaturesJSONKeepsOrder(t *testing.T) {
	f := Features{
		{Name: "moment", Value: String("t0")},
		{Name: "c2", Value: Number(1)},
		{Name: "c1", Value: Null()},
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"moment":"t0","c2":1,"c1":null}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	if v, ok := f.Get("c2"); !ok || !v.Equal(Number(1)) {
		t.Errorf("Get(c2) = %v, %v", v, ok)
	}
	if _, ok := f.Get("missing"); ok {
		t.Error("Get(missing) ok = true")
	}
	if got := f.Names(); len(got) != 3 || got[0] != "moment" || got[2] != "c1" {
		t.Errorf("Names() = %v", got)
	}
}

func TestTargetJSON(t *testing.T) {
	single, err := json.Marshal(SingleTarget(Number(4)))
	if err != nil {
		t.Fatalf("Marshal(single) error = %v", err)
	}
	if string(single) != "4" {
		t.Errorf("single target JSON = %s, want 4", single)
	}

	multi := MultiTarget(Features{{Name: "target1", Value: Number(1)}, {Name: "target2", Value: Number(10)}})
	data, err := json.Marshal(multi)
	if err != nil {
		t.Fatalf("Marshal(multi) error = %v", err)
	}
	if string(data) != `{"target1":1,"target2":10}` {
		t.Errorf("multi target JSON = %s", data)
	}
	if !multi.IsMulti() || multi.Named() == nil {
		t.Error("multi target lost its mode")
	}
	if SingleTarget(Number(1)).Named() != nil {
		t.Error("single target has named values")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{ErrExhausted, StatusExhausted},
		{fmt.Errorf("pull: %w", ErrExhausted), StatusExhausted},
		{ErrTimeout, StatusTimeout},
		{&SchemaError{Column: "x", Role: "feature"}, StatusSchema},
		{fmt.Errorf("build: %w", &SchemaError{Column: "x", Role: "target"}), StatusSchema},
		{context.Canceled, StatusCanceled},
		{errors.New("disk on fire"), StatusFailed},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if !StatusTimeout.Done() || !StatusExhausted.Done() || StatusFailed.Done() {
		t.Error("Done() misclassifies terminal statuses")
	}
}
