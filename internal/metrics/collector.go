package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/fluvial/internal/record"
)

// Collector records per-pull metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	records      int64
	failures     int64
	timeouts     int64
	exhausted    int64
	instances    int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByKind map[string]int64
	start        time.Time
}

// Stats represents aggregated metrics.
type Stats struct {
	Records         int64         `json:"records"`
	Instances       int64         `json:"instances"`
	Failures        int64         `json:"failures"`
	Timeouts        int64         `json:"timeouts"`
	Exhausted       int64         `json:"exhausted"`
	MinLatency      time.Duration `json:"-"`
	MaxLatency      time.Duration `json:"-"`
	MeanLatency     time.Duration `json:"-"`
	P50Latency      time.Duration `json:"-"`
	P90Latency      time.Duration `json:"-"`
	P99Latency      time.Duration `json:"-"`
	Duration        time.Duration `json:"-"`
	RecordsPerSec   float64       `json:"records_per_sec"`
	InstancesPerSec float64       `json:"instances_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64          `json:"min_pull_latency_ms"`
	MaxLatencyMs  float64          `json:"max_pull_latency_ms"`
	MeanLatencyMs float64          `json:"mean_pull_latency_ms"`
	P50LatencyMs  float64          `json:"p50_pull_latency_ms"`
	P90LatencyMs  float64          `json:"p90_pull_latency_ms"`
	P99LatencyMs  float64          `json:"p99_pull_latency_ms"`
	DurationMs    float64          `json:"duration_ms"`
	Errors        map[string]int64 `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByKind: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the run for rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordPull records the latency and outcome of one pull from the source.
// Reaching the end of the stream is counted but is not a failure.
func (c *Collector) RecordPull(latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := record.Classify(err)
	if status == record.StatusExhausted {
		c.exhausted++
		return
	}

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	switch status {
	case record.StatusOK:
		c.records++
	case record.StatusTimeout:
		c.timeouts++
		c.failures++
		c.errorsByKind[ErrorLabel(err)]++
	default:
		c.failures++
		c.errorsByKind[ErrorLabel(err)]++
	}
}

// RecordInstance counts one emitted instance.
func (c *Collector) RecordInstance() {
	c.mu.Lock()
	c.instances++
	c.mu.Unlock()
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	pulls := c.records + c.failures
	stats := Stats{
		Records:    c.records,
		Instances:  c.instances,
		Failures:   c.failures,
		Timeouts:   c.timeouts,
		Exhausted:  c.exhausted,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if pulls > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / pulls)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 {
		stats.RecordsPerSec = float64(c.records) / elapsed.Seconds()
		stats.InstancesPerSec = float64(c.instances) / elapsed.Seconds()
	}

	if len(c.errorsByKind) > 0 {
		stats.Errors = make(map[string]int64, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			stats.Errors[k] = v
		}
	}

	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
