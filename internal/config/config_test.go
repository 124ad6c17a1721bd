package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/torosent/fluvial/internal/config"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadNoArgsRequestsHelp(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{}); !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadFlagDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--file", "bikes.csv", "--target", "cnt"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.ResolvedType() != config.SourceCSV {
		t.Errorf("ResolvedType() = %q, want csv", cfg.Source.ResolvedType())
	}
	if diff := cmp.Diff([]string{"cnt"}, cfg.Targets); diff != "" {
		t.Errorf("Targets mismatch (-want +got):\n%s", diff)
	}
	if cfg.MultiTarget {
		t.Error("MultiTarget = true for --target")
	}
	if cfg.PastSize != 3 || cfg.ForecastSize != 0 {
		t.Errorf("window = %d/%d, want 3/0", cfg.PastSize, cfg.ForecastSize)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.StreamPeriod != 0 {
		t.Errorf("StreamPeriod = %s, want 0", cfg.StreamPeriod)
	}
	if cfg.Mode != config.ModeWindow || cfg.Output.Format != config.FormatJSON {
		t.Errorf("Mode = %q, Format = %q", cfg.Mode, cfg.Output.Format)
	}
	if cfg.Arrival.Model != config.ArrivalModelUniform {
		t.Errorf("Arrival.Model = %q, want uniform", cfg.Arrival.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeConfig(t, "fluvial.yaml", `
filepath: data/multi.csv
target_column: [target1, target2]
feature_columns: [moment, c1]
parse_dates: [moment]
stream_period: 25
timeout: 2000
past_size: 5
forecast_size: 2
limit: 10
arrival:
  model: poisson
  seed: 42
output:
  format: table
  path: out.txt
thresholds:
  - "instances:count >= 1"
tracing:
  endpoint: localhost:4317
  sample_rate: 0.5
log_level: DEBUG
`)

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Path != "data/multi.csv" {
		t.Errorf("Source.Path = %q", cfg.Source.Path)
	}
	if !cfg.MultiTarget {
		t.Error("list target_column did not select multi-target mode")
	}
	if diff := cmp.Diff([]string{"target1", "target2"}, cfg.Targets); diff != "" {
		t.Errorf("Targets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"moment", "c1"}, cfg.Features); diff != "" {
		t.Errorf("Features mismatch (-want +got):\n%s", diff)
	}
	if cfg.StreamPeriod != 25*time.Millisecond || cfg.Timeout != 2*time.Second {
		t.Errorf("StreamPeriod = %s, Timeout = %s", cfg.StreamPeriod, cfg.Timeout)
	}
	if cfg.PastSize != 5 || cfg.ForecastSize != 2 || cfg.Limit != 10 {
		t.Errorf("window = %d/%d limit %d", cfg.PastSize, cfg.ForecastSize, cfg.Limit)
	}
	if cfg.Arrival.Model != config.ArrivalModelPoisson || cfg.Arrival.RandomSeed != 42 {
		t.Errorf("Arrival = %+v", cfg.Arrival)
	}
	if cfg.Output.Format != config.FormatTable || cfg.Output.Path != "out.txt" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "fluvial.json", `{
		"source": {"type": "csv", "path": "a.csv"},
		"target_column": "cnt",
		"past_size": 7
	}`)

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--past-size", "2", "--file", "b.csv"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PastSize != 2 {
		t.Errorf("PastSize = %d, want flag value 2", cfg.PastSize)
	}
	if cfg.Source.Path != "b.csv" || cfg.Source.Type != config.SourceCSV {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.MultiTarget {
		t.Error("string target_column selected multi-target mode")
	}
}

func TestLoadNATSSource(t *testing.T) {
	path := writeConfig(t, "live.yaml", `
source:
  type: nats
  nats:
    url: nats://127.0.0.1:4222
    subject: sensors
    columns: [moment, value]
target_column: value
`)
	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.ResolvedType() != config.SourceNATS {
		t.Fatalf("ResolvedType() = %q, want nats", cfg.Source.ResolvedType())
	}
	if diff := cmp.Diff([]string{"moment", "value"}, cfg.Source.NATS.Columns); diff != "" {
		t.Errorf("NATS.Columns mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "past_size: [1, 2]\n")
	if _, err := config.NewLoader().Load([]string{"--config", path}); err == nil {
		t.Fatal("Load() with list past_size error = nil")
	}
	if _, err := config.NewLoader().Load([]string{"--config", "/nonexistent/fluvial.yaml"}); err == nil {
		t.Fatal("Load() with missing config error = nil")
	}
}

func TestValidateReportsAllIssues(t *testing.T) {
	cfg := config.Defaults()
	cfg.PastSize = -1
	cfg.ForecastSize = -1
	cfg.Limit = -5
	cfg.Mode = "batch"
	cfg.Output.Format = "xml"
	cfg.Arrival.Model = "bursty"

	err := cfg.Validate()
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	want := []string{"source", "target_column", "past_size", "forecast_size", "limit", "mode", "output format", "arrival model"}
	joined := strings.Join(verr.Issues(), "\n")
	for _, fragment := range want {
		if !strings.Contains(joined, fragment) {
			t.Errorf("issues missing %q:\n%s", fragment, joined)
		}
	}
}

func TestValidateSources(t *testing.T) {
	tests := []struct {
		name    string
		source  config.SourceConfig
		wantErr string
	}{
		{name: "json by extension", source: config.SourceConfig{Path: "rows.JSON"}},
		{name: "unknown extension", source: config.SourceConfig{Path: "rows.parquet"}, wantErr: "cannot infer type"},
		{name: "csv without path", source: config.SourceConfig{Type: config.SourceCSV}, wantErr: "filepath is required"},
		{name: "nats missing subject", source: config.SourceConfig{Type: config.SourceNATS, NATS: config.NATSConfig{URL: "nats://x", Columns: []string{"a"}}}, wantErr: "subject"},
		{name: "unknown type", source: config.SourceConfig{Type: "kafka"}, wantErr: "type must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Targets = []string{"y"}
			cfg.Source = tt.source
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDumpedConfigKeepsTargetMode(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		multi bool
	}{
		{"single", []string{"--file", "bikes.csv", "--target", "cnt"}, false},
		{"multi of one", []string{"--file", "bikes.csv", "--targets", "cnt"}, true},
		{"multi", []string{"--file", "bikes.csv", "--targets", "cnt,temp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.NewLoader().Load(tt.args)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				t.Fatalf("yaml.Marshal() error = %v", err)
			}

			path := writeConfig(t, "dump.yaml", string(data))
			reloaded, err := config.NewLoader().Load([]string{"--config", path})
			if err != nil {
				t.Fatalf("Load(--config) error = %v\n%s", err, data)
			}
			if reloaded.MultiTarget != tt.multi {
				t.Errorf("reloaded MultiTarget = %v, want %v\n%s", reloaded.MultiTarget, tt.multi, data)
			}
			if diff := cmp.Diff(cfg.Targets, reloaded.Targets); diff != "" {
				t.Errorf("reloaded Targets mismatch (-want +got):\n%s", diff)
			}
			if reloaded.Timeout != cfg.Timeout || reloaded.PastSize != cfg.PastSize {
				t.Errorf("reloaded Timeout/PastSize = %s/%d, want %s/%d", reloaded.Timeout, reloaded.PastSize, cfg.Timeout, cfg.PastSize)
			}
		})
	}
}

func TestDumpWritesSingleTargetAsScalar(t *testing.T) {
	cfg := config.Defaults()
	cfg.Targets = []string{"cnt"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	var dumped map[string]interface{}
	if err := yaml.Unmarshal(data, &dumped); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if dumped["target_column"] != "cnt" {
		t.Errorf("target_column = %#v, want \"cnt\"", dumped["target_column"])
	}
	if dumped["multi_target"] != false {
		t.Errorf("multi_target = %#v, want false", dumped["multi_target"])
	}
}

func TestLoadMultiTargetKey(t *testing.T) {
	path := writeConfig(t, "multi.yaml", "filepath: bikes.csv\ntarget_column: cnt\nmulti_target: true\n")

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.MultiTarget {
		t.Error("multi_target: true did not select multi-target mode")
	}
	if diff := cmp.Diff([]string{"cnt"}, cfg.Targets); diff != "" {
		t.Errorf("Targets mismatch (-want +got):\n%s", diff)
	}
}
