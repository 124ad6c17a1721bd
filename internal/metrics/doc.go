// Package metrics collects pull and emission statistics for a streaming run.
//
// The [Collector] records one sample per pull from the record source (latency
// and outcome) and one count per emitted instance:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	collector.RecordPull(latency, err)
//	collector.RecordInstance()
//
//	stats := collector.Stats(elapsed)
//
// # Statistics
//
// [Stats] reports:
//   - Record counts (pulled, failed pulls, timeouts, end-of-stream)
//   - Emitted instance count
//   - Pull latency percentiles (P50, P90, P99) from an HDR histogram
//   - Records and instances per second
//   - Failed pulls grouped by error kind
//
// # Thread Safety
//
// The Collector guards its state with a mutex. A progress reporter may read
// Stats while the stream is being consumed.
package metrics
