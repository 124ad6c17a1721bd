package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/torosent/fluvial/internal/feeder"
	"github.com/torosent/fluvial/internal/record"
)

type closeCounter struct {
	feeder.Feeder
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.Feeder.Close()
}

func bikeFeeder() *closeCounter {
	return &closeCounter{Feeder: feeder.NewSliceFeeder(
		[]string{"moment", "cnt", "t1", "weather"},
		[]feeder.Row{
			{"moment": "2024-01-01 00:00", "cnt": "182", "t1": "3.0", "weather": "clear"},
			{"moment": "2024-01-01 01:00", "cnt": "138", "t1": "", "weather": "rain"},
		},
	)}
}

func TestNewSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Options
		col  string
		role string
	}{
		{name: "unknown target", opt: Options{Targets: []string{"count"}}, col: "count", role: "target"},
		{name: "unknown multi target", opt: Options{Targets: []string{"cnt", "t9"}, MultiTarget: true}, col: "t9", role: "target"},
		{name: "unknown feature", opt: Options{Targets: []string{"cnt"}, Features: []string{"t1", "hum"}}, col: "hum", role: "feature"},
		{name: "unknown date column", opt: Options{Targets: []string{"cnt"}, ParseDates: []string{"when"}}, col: "when", role: "parse_dates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(bikeFeeder(), tt.opt)
			var schemaErr *record.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("New() error = %v, want *record.SchemaError", err)
			}
			if schemaErr.Column != tt.col || schemaErr.Role != tt.role {
				t.Errorf("SchemaError = %+v, want column %q role %q", schemaErr, tt.col, tt.role)
			}
			if record.Classify(err) != record.StatusSchema {
				t.Errorf("Classify() = %s, want schema_error", record.Classify(err))
			}
		})
	}
}

func TestNewTargetArity(t *testing.T) {
	if _, err := New(bikeFeeder(), Options{}); err == nil {
		t.Fatal("New() without targets error = nil")
	}
	if _, err := New(bikeFeeder(), Options{Targets: []string{"cnt", "t1"}}); err == nil {
		t.Fatal("New() with two single targets error = nil")
	}
}

func TestDefaultFeaturesExcludeTargets(t *testing.T) {
	g, err := New(bikeFeeder(), Options{Targets: []string{"cnt"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if diff := cmp.Diff([]string{"moment", "t1", "weather"}, g.Features()); diff != "" {
		t.Errorf("Features() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextSingleTarget(t *testing.T) {
	src := bikeFeeder()
	g, err := New(src, Options{
		Targets:    []string{"cnt"},
		Features:   []string{"t1", "moment"},
		ParseDates: []string{"moment"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	rec, err := g.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if rec.Target.IsMulti() {
		t.Fatal("single-target record carries a mapping")
	}
	if !rec.Target.Value().Equal(record.Number(182)) {
		t.Errorf("target = %v, want 182", rec.Target.Value())
	}
	if diff := cmp.Diff([]string{"t1", "moment"}, rec.Features.Names()); diff != "" {
		t.Errorf("feature order mismatch (-want +got):\n%s", diff)
	}
	moment, _ := rec.Features.Get("moment")
	if ts, ok := moment.Timestamp(); !ok || !ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("moment = %v, want parsed timestamp", moment)
	}

	rec, err = g.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if v, _ := rec.Features.Get("t1"); !v.IsNull() {
		t.Errorf("empty cell = %v, want null", v)
	}
	if g.Count() != 2 {
		t.Errorf("Count() = %d, want 2", g.Count())
	}

	if _, err := g.Next(ctx); !errors.Is(err, record.ErrExhausted) {
		t.Fatalf("Next() error = %v, want ErrExhausted", err)
	}
	if !g.Stopped() || src.closes != 1 {
		t.Fatalf("Stopped() = %v, closes = %d; want stopped and closed once", g.Stopped(), src.closes)
	}
	if _, err := g.Next(ctx); !errors.Is(err, record.ErrExhausted) {
		t.Fatalf("Next() after stop error = %v, want ErrExhausted", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if src.closes != 1 {
		t.Errorf("feeder closed %d times, want 1", src.closes)
	}
	if g.Count() != 2 {
		t.Errorf("Count() after exhaustion = %d, want 2", g.Count())
	}
}

func TestNextMultiTarget(t *testing.T) {
	g, err := New(bikeFeeder(), Options{Targets: []string{"cnt", "weather"}, MultiTarget: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec, err := g.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !rec.Target.IsMulti() {
		t.Fatal("multi-target record lost its mapping")
	}
	want := record.Features{
		{Name: "cnt", Value: record.Number(182)},
		{Name: "weather", Value: record.String("clear")},
	}
	got := rec.Target.Named()
	if len(got) != len(want) {
		t.Fatalf("Named() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i].Name || !got[i].Value.Equal(want[i].Value) {
			t.Errorf("Named()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if diff := cmp.Diff([]string{"moment", "t1"}, rec.Features.Names()); diff != "" {
		t.Errorf("feature names mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiTargetListOfOne(t *testing.T) {
	g, err := New(bikeFeeder(), Options{Targets: []string{"cnt"}, MultiTarget: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec, err := g.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !rec.Target.IsMulti() || len(rec.Target.Named()) != 1 {
		t.Fatalf("target = %+v, want one-entry mapping", rec.Target)
	}
}

func TestNextPassesThroughOtherErrors(t *testing.T) {
	src := bikeFeeder()
	g, err := New(src, Options{Targets: []string{"cnt"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next() error = %v, want context.Canceled", err)
	}
	if g.Stopped() {
		t.Fatal("generator stopped on caller cancellation")
	}
	if _, err := g.Next(context.Background()); err != nil {
		t.Fatalf("Next() after cancellation error = %v", err)
	}
}
