package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fluvial",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Source flags
	flags.String("source", "", "Record source: 'csv', 'json' or 'nats' (inferred from --file when unset)")
	flags.StringP("file", "f", "", "Path to the CSV or JSON file")
	flags.String("nats-url", "", "NATS server URL for a live source")
	flags.String("nats-subject", "", "NATS subject carrying JSON row messages")
	flags.String("nats-queue", "", "Optional NATS queue group")
	flags.StringSlice("nats-columns", nil, "Declared column names of NATS messages")

	// Column flags
	flags.String("target", "", "Target column (single-target mode)")
	flags.StringSlice("targets", nil, "Target columns (multi-target mode)")
	flags.StringSlice("features", nil, "Feature columns (default: all non-target columns)")
	flags.StringSlice("parse-dates", nil, "Columns to parse as timestamps")

	// Timing flags
	flags.Int("stream-period", 0, "Milliseconds between records (0 means no delay)")
	flags.Int("timeout", int(DefaultTimeout.Milliseconds()), "Milliseconds to wait for a record before giving up")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model used for pacing (uniform or poisson)")
	flags.Int64("arrival-seed", 0, "Random seed for poisson pacing")

	// Window flags
	flags.String("mode", string(ModeWindow), "Output mode: 'window' (sliding windows) or 'flat' (one record per line)")
	flags.Int("past-size", DefaultPastSize, "Records per past window")
	flags.Int("forecast-size", DefaultForecastSize, "Extra steps between the window and the target")
	flags.IntP("limit", "n", 0, "Stop after this many items (0 means until exhausted)")

	// Output flags
	flags.String("format", string(FormatJSON), "Output format: 'json' (JSON lines) or 'table'")
	flags.StringP("output", "o", "", "Write items to this file instead of stdout")
	flags.Bool("json-report", false, "Emit the run report as JSON on stderr")
	flags.Bool("progress", false, "Show a live progress line on stderr")
	flags.StringSlice("threshold", nil, "Run assertions (repeatable, e.g., 'instances:count >= 10')")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("print-config", false, "Print the resolved configuration as YAML and exit")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of windows to trace (0.0-1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("source") {
		val, err := fs.GetString("source")
		if err != nil {
			return err
		}
		cfg.Source.Type = SourceType(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("file") {
		val, err := fs.GetString("file")
		if err != nil {
			return err
		}
		cfg.Source.Path = val
	}
	if fs.Changed("nats-url") {
		val, err := fs.GetString("nats-url")
		if err != nil {
			return err
		}
		cfg.Source.NATS.URL = strings.TrimSpace(val)
	}
	if fs.Changed("nats-subject") {
		val, err := fs.GetString("nats-subject")
		if err != nil {
			return err
		}
		cfg.Source.NATS.Subject = strings.TrimSpace(val)
	}
	if fs.Changed("nats-queue") {
		val, err := fs.GetString("nats-queue")
		if err != nil {
			return err
		}
		cfg.Source.NATS.Queue = strings.TrimSpace(val)
	}
	if fs.Changed("nats-columns") {
		val, err := fs.GetStringSlice("nats-columns")
		if err != nil {
			return err
		}
		cfg.Source.NATS.Columns = trimAll(val)
	}

	if fs.Changed("target") && fs.Changed("targets") {
		return fmt.Errorf("--target and --targets are mutually exclusive")
	}
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.Targets, cfg.MultiTarget, _ = asTargets(val)
	}
	if fs.Changed("targets") {
		val, err := fs.GetStringSlice("targets")
		if err != nil {
			return err
		}
		cfg.Targets = trimAll(val)
		cfg.MultiTarget = true
	}
	if fs.Changed("features") {
		val, err := fs.GetStringSlice("features")
		if err != nil {
			return err
		}
		cfg.Features = trimAll(val)
	}
	if fs.Changed("parse-dates") {
		val, err := fs.GetStringSlice("parse-dates")
		if err != nil {
			return err
		}
		cfg.ParseDates = trimAll(val)
	}

	if fs.Changed("stream-period") {
		val, err := fs.GetInt("stream-period")
		if err != nil {
			return err
		}
		cfg.StreamPeriod, _ = asMillis(val)
	}
	if fs.Changed("timeout") {
		val, err := fs.GetInt("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout, _ = asMillis(val)
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("arrival-seed") {
		val, err := fs.GetInt64("arrival-seed")
		if err != nil {
			return err
		}
		cfg.Arrival.RandomSeed = val
	}

	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("past-size") {
		val, err := fs.GetInt("past-size")
		if err != nil {
			return err
		}
		cfg.PastSize = val
	}
	if fs.Changed("forecast-size") {
		val, err := fs.GetInt("forecast-size")
		if err != nil {
			return err
		}
		cfg.ForecastSize = val
	}
	if fs.Changed("limit") {
		val, err := fs.GetInt("limit")
		if err != nil {
			return err
		}
		cfg.Limit = val
	}

	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Output.Format = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output.Path = val
	}
	if fs.Changed("json-report") {
		val, err := fs.GetBool("json-report")
		if err != nil {
			return err
		}
		cfg.JSONReport = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("print-config") {
		val, err := fs.GetBool("print-config")
		if err != nil {
			return err
		}
		cfg.PrintConfig = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
