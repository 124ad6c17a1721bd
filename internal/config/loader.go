package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag applies.
func Defaults() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		Arrival:      ArrivalConfig{Model: ArrivalModelUniform},
		Mode:         ModeWindow,
		PastSize:     DefaultPastSize,
		ForecastSize: DefaultForecastSize,
		Output:       OutputConfig{Format: FormatJSON},
		Tracing:      TracingConfig{SampleRate: 1.0},
		LogLevel:     "info",
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Source.Path = strings.TrimSpace(cfg.Source.Path)
	cfg.Source.Type = SourceType(strings.ToLower(string(cfg.Source.Type)))
	cfg.Output.Path = strings.TrimSpace(cfg.Output.Path)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "source"); ok {
		if err := applySource(&cfg.Source, raw); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "filepath", "file_path", "file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("filepath: %w", err)
		}
		cfg.Source.Path = val
	}

	if raw, ok := lookupSetting(settings, "target_column", "target_columns", "target"); ok {
		targets, multi, err := asTargets(raw)
		if err != nil {
			return fmt.Errorf("target_column: %w", err)
		}
		cfg.Targets = targets
		cfg.MultiTarget = multi
	}

	if raw, ok := lookupSetting(settings, "multi_target"); ok {
		multi, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("multi_target: %w", err)
		}
		cfg.MultiTarget = multi
	}

	if raw, ok := lookupSetting(settings, "feature_columns", "features"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("feature_columns: %w", err)
		}
		cfg.Features = val
	}

	if raw, ok := lookupSetting(settings, "parse_dates"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("parse_dates: %w", err)
		}
		cfg.ParseDates = val
	}

	if raw, ok := lookupSetting(settings, "stream_period"); ok {
		dur, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("stream_period: %w", err)
		}
		cfg.StreamPeriod = dur
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrival_model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival_model: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "past_size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("past_size: %w", err)
		}
		cfg.PastSize = val
	}

	if raw, ok := lookupSetting(settings, "forecast_size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("forecast_size: %w", err)
		}
		cfg.ForecastSize = val
	}

	if raw, ok := lookupSetting(settings, "limit"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		cfg.Limit = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		if err := applyOutput(&cfg.Output, raw); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "json_report"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_report: %w", err)
		}
		cfg.JSONReport = val
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	if raw, ok := lookupSetting(settings, "log_level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	return nil
}

// applySource accepts either a bare type ("csv") or a source table.
func applySource(src *SourceConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	if v, ok := value.(string); ok {
		src.Type = SourceType(strings.ToLower(strings.TrimSpace(v)))
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
		src.Type = SourceType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "path", "filepath"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		src.Path = val
	}
	if raw, ok := lookupSetting(settings, "nats"); ok {
		nats, err := parseNATS(raw)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		src.NATS = nats
	}
	return nil
}

func parseNATS(value interface{}) (NATSConfig, error) {
	var nats NATSConfig
	if value == nil {
		return nats, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return nats, err
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return nats, fmt.Errorf("url: %w", err)
		}
		nats.URL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "subject"); ok {
		val, err := asString(raw)
		if err != nil {
			return nats, fmt.Errorf("subject: %w", err)
		}
		nats.Subject = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "queue"); ok {
		val, err := asString(raw)
		if err != nil {
			return nats, fmt.Errorf("queue: %w", err)
		}
		nats.Queue = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "columns"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return nats, fmt.Errorf("columns: %w", err)
		}
		nats.Columns = val
	}
	if raw, ok := lookupSetting(settings, "buffer_size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return nats, fmt.Errorf("buffer_size: %w", err)
		}
		nats.BufferSize = val
	}
	return nats, nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		var arrival ArrivalConfig
		raw, ok := lookupSetting(entry, "model")
		if !ok {
			return ArrivalConfig{}, fmt.Errorf("model field is required")
		}
		val, err := asString(raw)
		if err != nil {
			return ArrivalConfig{}, fmt.Errorf("model: %w", err)
		}
		arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
		if raw, ok := lookupSetting(entry, "seed"); ok {
			seed, err := asInt(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("seed: %w", err)
			}
			arrival.RandomSeed = int64(seed)
		}
		return arrival, nil
	}
}

// applyOutput accepts either a bare format ("table") or an output table.
func applyOutput(out *OutputConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	if v, ok := value.(string); ok {
		out.Format = OutputFormat(strings.ToLower(strings.TrimSpace(v)))
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		out.Format = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		out.Path = val
	}
	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	tracing := base
	if value == nil {
		return tracing, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return tracing, err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "service_name"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "sample_rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return tracing, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return tracing, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	return tracing, nil
}
