package metrics_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/torosent/fluvial/internal/metrics"
	"github.com/torosent/fluvial/internal/record"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	c.RecordPull(10*time.Millisecond, nil)
	c.RecordPull(20*time.Millisecond, nil)
	c.RecordPull(30*time.Millisecond, nil)
	c.RecordPull(40*time.Millisecond, nil)
	c.RecordPull(50*time.Millisecond, nil)

	stats := c.Stats(0)

	if stats.Records != 5 {
		t.Errorf("expected records 5, got %d", stats.Records)
	}
	if stats.Failures != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordPull(time.Duration(i)*time.Millisecond, nil)
	}
	stats := c.Stats(time.Second)

	within := func(got, want time.Duration) bool {
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		return diff <= time.Millisecond
	}
	if !within(stats.P50Latency, 50*time.Millisecond) {
		t.Errorf("P50 = %s, want ~50ms", stats.P50Latency)
	}
	if !within(stats.P90Latency, 90*time.Millisecond) {
		t.Errorf("P90 = %s, want ~90ms", stats.P90Latency)
	}
	if !within(stats.P99Latency, 99*time.Millisecond) {
		t.Errorf("P99 = %s, want ~99ms", stats.P99Latency)
	}
	if stats.RecordsPerSec != 100 {
		t.Errorf("RecordsPerSec = %.2f, want 100", stats.RecordsPerSec)
	}
}

func TestCollectorOutcomes(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordPull(time.Millisecond, nil)
	c.RecordPull(time.Millisecond, fmt.Errorf("%w after 1s", record.ErrTimeout))
	c.RecordPull(0, record.ErrExhausted)
	c.RecordPull(time.Millisecond, errors.New("boom"))
	c.RecordInstance()
	c.RecordInstance()

	stats := c.Stats(2 * time.Second)
	if stats.Records != 1 {
		t.Errorf("Records = %d, want 1", stats.Records)
	}
	if stats.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", stats.Timeouts)
	}
	if stats.Failures != 2 {
		t.Errorf("Failures = %d, want 2", stats.Failures)
	}
	if stats.Exhausted != 1 {
		t.Errorf("Exhausted = %d, want 1", stats.Exhausted)
	}
	if stats.Instances != 2 {
		t.Errorf("Instances = %d, want 2", stats.Instances)
	}
	if stats.InstancesPerSec != 1 {
		t.Errorf("InstancesPerSec = %.2f, want 1", stats.InstancesPerSec)
	}
	if stats.Errors["Timeout"] != 1 {
		t.Errorf("Errors[Timeout] = %d, want 1 (errors: %v)", stats.Errors["Timeout"], stats.Errors)
	}
}

func TestStatsJSON(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordPull(2*time.Millisecond, nil)
	c.RecordInstance()

	data, err := json.Marshal(c.Stats(time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"records", "instances", "p99_pull_latency_ms", "duration_ms"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing key %q: %s", key, data)
		}
	}
	if _, ok := decoded["errors"]; ok {
		t.Errorf("JSON has errors key with no failures: %s", data)
	}
}

func TestCollectorConcurrentReads(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.RecordPull(time.Microsecond, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = c.Stats(time.Second)
		}
	}()
	wg.Wait()
	if got := c.Stats(time.Second).Records; got != 500 {
		t.Errorf("Records = %d, want 500", got)
	}
}

func TestFriendlyErrorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"*csv.ParseError", "Parse Error (csv)"},
		{"*errors.errorString", "Error String"},
		{"main.customErr", "Custom Err"},
		{"", "Unknown error"},
		{"*github.com/x/y.JSONDecodeError", "JSON Decode Error (y)"},
	}
	for _, tt := range tests {
		if got := metrics.FriendlyErrorName(tt.in); got != tt.want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
