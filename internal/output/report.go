package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/fluvial/internal/metrics"
	"github.com/torosent/fluvial/internal/threshold"
)

// Report is the JSON form of a run summary.
type Report struct {
	metrics.Stats
	Thresholds *ThresholdSummary `json:"thresholds,omitempty"`
}

// ThresholdSummary counts passed and failed assertions.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats, results []threshold.Result) {
	fmt.Fprintln(w, "\n--- Stream Results ---")
	fmt.Fprintf(w, "Records:           %d\n", stats.Records)
	fmt.Fprintf(w, "Instances:         %d\n", stats.Instances)
	fmt.Fprintf(w, "Failed pulls:      %d\n", stats.Failures)
	fmt.Fprintf(w, "Timeouts:          %d\n", stats.Timeouts)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Records/sec:       %.2f\n", stats.RecordsPerSec)
	fmt.Fprintf(w, "Instances/sec:     %.2f\n", stats.InstancesPerSec)
	fmt.Fprintln(w, "\nPull latency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		kinds := make([]string, 0, len(stats.Errors))
		for kind := range stats.Errors {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if stats.Errors[kinds[i]] != stats.Errors[kinds[j]] {
				return stats.Errors[kinds[i]] > stats.Errors[kinds[j]]
			}
			return kinds[i] < kinds[j]
		})
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, stats.Errors[kind])
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range results {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Stats: stats, Thresholds: summarize(results)})
}

func summarize(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}
