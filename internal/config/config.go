package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type SourceType string

const (
	SourceCSV  SourceType = "csv"
	SourceJSON SourceType = "json"
	SourceNATS SourceType = "nats"
)

type Mode string

const (
	ModeWindow Mode = "window"
	ModeFlat   Mode = "flat"
)

type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPastSize     = 3
	DefaultForecastSize = 0
)

type Config struct {
	Source       SourceConfig  `mapstructure:"source" yaml:"source"`
	Targets      []string      `mapstructure:"target_column" yaml:"-"`
	MultiTarget  bool          `mapstructure:"-" yaml:"multi_target"`
	Features     []string      `mapstructure:"feature_columns" yaml:"feature_columns,omitempty"`
	ParseDates   []string      `mapstructure:"parse_dates" yaml:"parse_dates,omitempty"`
	StreamPeriod time.Duration `mapstructure:"stream_period" yaml:"stream_period"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Arrival      ArrivalConfig `mapstructure:"arrival" yaml:"arrival"`
	Mode         Mode          `mapstructure:"mode" yaml:"mode"`
	PastSize     int           `mapstructure:"past_size" yaml:"past_size"`
	ForecastSize int           `mapstructure:"forecast_size" yaml:"forecast_size"`
	Limit        int           `mapstructure:"limit" yaml:"limit"`
	Output       OutputConfig  `mapstructure:"output" yaml:"output"`
	JSONReport   bool          `mapstructure:"json_report" yaml:"json_report"`
	Progress     bool          `mapstructure:"progress" yaml:"progress"`
	Thresholds   []string      `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
	Tracing      TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	ConfigFile   string        `mapstructure:"-" yaml:"-"`
	PrintConfig  bool          `mapstructure:"-" yaml:"-"`
}

type plainConfig Config

type configDump struct {
	TargetColumn interface{} `yaml:"target_column"`
	plainConfig  `yaml:",inline"`
}

// MarshalYAML writes target_column as a bare name in single-target mode so a
// dumped config loads back in the same mode.
func (c Config) MarshalYAML() (interface{}, error) {
	var target interface{} = c.Targets
	if !c.MultiTarget && len(c.Targets) == 1 {
		target = c.Targets[0]
	}
	return configDump{TargetColumn: target, plainConfig: plainConfig(c)}, nil
}

type SourceConfig struct {
	Type SourceType `mapstructure:"type" yaml:"type"`
	Path string     `mapstructure:"path" yaml:"path,omitempty"`
	NATS NATSConfig `mapstructure:"nats" yaml:"nats,omitempty"`
}

// ResolvedType returns the configured source type, inferring csv or json from
// the file extension when none is set.
func (s SourceConfig) ResolvedType() SourceType {
	if s.Type != "" {
		return s.Type
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv":
		return SourceCSV
	case ".json":
		return SourceJSON
	}
	return ""
}

type NATSConfig struct {
	URL        string   `mapstructure:"url" yaml:"url,omitempty"`
	Subject    string   `mapstructure:"subject" yaml:"subject,omitempty"`
	Queue      string   `mapstructure:"queue" yaml:"queue,omitempty"`
	Columns    []string `mapstructure:"columns" yaml:"columns,omitempty"`
	BufferSize int      `mapstructure:"buffer_size" yaml:"buffer_size,omitempty"`
}

type ArrivalConfig struct {
	Model      ArrivalModel `mapstructure:"model" yaml:"model"`
	RandomSeed int64        `mapstructure:"seed" yaml:"seed,omitempty"`
}

type OutputConfig struct {
	Format OutputFormat `mapstructure:"format" yaml:"format"`
	Path   string       `mapstructure:"path" yaml:"path,omitempty"`
}

// TracingConfig configures OTLP span export. Tracing is enabled when an
// endpoint is set here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure,omitempty"`
}

func (t TracingConfig) Enabled() bool {
	return t.Endpoint != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateSource(c.Source)...)

	if len(c.Targets) == 0 {
		issues = append(issues, "target_column is required (use --help for usage information)")
	}
	for i, col := range c.Targets {
		if strings.TrimSpace(col) == "" {
			issues = append(issues, fmt.Sprintf("target_column[%d]: name cannot be empty", i))
		}
	}
	if !c.MultiTarget && len(c.Targets) > 1 {
		issues = append(issues, "a single target_column accepts one name; use a list for multi-target mode")
	}

	if c.PastSize < 0 {
		issues = append(issues, "past_size must be >= 0")
	}
	if c.ForecastSize < 0 {
		issues = append(issues, "forecast_size must be >= 0")
	}
	if c.Limit < 0 {
		issues = append(issues, "limit must be >= 0")
	}
	if c.StreamPeriod < 0 {
		issues = append(issues, "stream_period must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.Mode {
	case "", ModeWindow, ModeFlat:
	default:
		issues = append(issues, fmt.Sprintf("mode must be 'window' or 'flat', got %q", c.Mode))
	}
	switch c.Output.Format {
	case "", FormatJSON, FormatTable:
	default:
		issues = append(issues, fmt.Sprintf("output format must be 'json' or 'table', got %q", c.Output.Format))
	}
	switch c.Arrival.Model {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model must be 'uniform' or 'poisson', got %q", c.Arrival.Model))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateSource(src SourceConfig) []string {
	var issues []string
	switch src.ResolvedType() {
	case SourceCSV, SourceJSON:
		if strings.TrimSpace(src.Path) == "" {
			issues = append(issues, "source: filepath is required for csv and json sources")
		}
	case SourceNATS:
		if src.NATS.URL == "" {
			issues = append(issues, "source: nats url is required")
		}
		if src.NATS.Subject == "" {
			issues = append(issues, "source: nats subject is required")
		}
		if len(src.NATS.Columns) == 0 {
			issues = append(issues, "source: nats columns are required to declare the schema")
		}
		if src.NATS.BufferSize < 0 {
			issues = append(issues, "source: nats buffer_size must be >= 0")
		}
	case "":
		if strings.TrimSpace(src.Path) == "" {
			issues = append(issues, "source: filepath is required (use --help for usage information)")
		} else {
			issues = append(issues, fmt.Sprintf("source: cannot infer type from %q; set source.type to 'csv' or 'json'", src.Path))
		}
	default:
		issues = append(issues, fmt.Sprintf("source: type must be 'csv', 'json' or 'nats', got %q", src.Type))
	}
	return issues
}
