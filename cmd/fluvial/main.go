package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/torosent/fluvial/internal/config"
	"github.com/torosent/fluvial/internal/generator"
	"github.com/torosent/fluvial/internal/harness"
	"github.com/torosent/fluvial/internal/logging"
	"github.com/torosent/fluvial/internal/metrics"
	"github.com/torosent/fluvial/internal/output"
	"github.com/torosent/fluvial/internal/record"
	"github.com/torosent/fluvial/internal/threshold"
	"github.com/torosent/fluvial/internal/tracing"
	"github.com/torosent/fluvial/internal/window"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.PrintConfig {
		enc := yaml.NewEncoder(stdout)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx = logging.WithLogger(ctx, logger)

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("Failed to flush traces", zap.Error(err))
		}
	}()

	src, err := openFeeder(cfg, logger)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	paced := harness.Wrap(src, harness.Options{
		StreamPeriod: cfg.StreamPeriod,
		Timeout:      cfg.Timeout,
		ArrivalModel: toHarnessArrivalModel(cfg.Arrival.Model),
		RandomSeed:   cfg.Arrival.RandomSeed,
		Collector:    collector,
		Logger:       logger,
	})

	gen, err := generator.New(paced, generator.Options{
		Targets:     cfg.Targets,
		MultiTarget: cfg.MultiTarget,
		Features:    cfg.Features,
		ParseDates:  cfg.ParseDates,
		Logger:      logger,
	})
	if err != nil {
		_ = paced.Close()
		return err
	}
	defer func() {
		if err := gen.Stop(); err != nil {
			logger.Warnw("Failed to close source", zap.Error(err))
		}
	}()

	sink, err := openOutput(cfg.Output.Path, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warnw("Failed to close output", "path", cfg.Output.Path, zap.Error(err))
		}
	}()

	writer, err := output.NewWriter(string(cfg.Output.Format), sink)
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	logger.Infow("Streaming started",
		"source", cfg.Source.ResolvedType(),
		"mode", modeOf(cfg),
		"targets", gen.Targets(),
		"features", gen.Features(),
	)

	collector.Start()
	s := &streamer{
		gen:       gen,
		writer:    writer,
		collector: collector,
		tracer:    provider.Tracer(),
		limit:     cfg.Limit,
	}
	if modeOf(cfg) == config.ModeFlat {
		err = s.flat(ctx)
	} else {
		err = s.windows(ctx, window.Options{PastSize: cfg.PastSize, ForecastSize: cfg.ForecastSize})
	}
	if ferr := writer.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	stats := collector.Stats(collector.Elapsed())

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}
	logger.Infow("Streaming finished", "records", stats.Records, "instances", stats.Instances, "failures", stats.Failures)

	if err != nil {
		logger.Errorw("Streaming failed", zap.Error(err))
		return err
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	if cfg.JSONReport {
		if err := output.PrintJSONReport(stderr, stats, results); err != nil {
			return err
		}
	} else {
		output.PrintReport(stderr, stats, results)
	}

	if !threshold.AllPassed(results) {
		failed := 0
		for _, r := range results {
			if !r.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

func modeOf(cfg *config.Config) config.Mode {
	if cfg.Mode == "" {
		return config.ModeWindow
	}
	return cfg.Mode
}

// streamer drains a generator into a writer, either directly or through a
// sliding window batcher. It logs through the logger carried by ctx.
type streamer struct {
	gen       *generator.Generator
	writer    output.Writer
	collector *metrics.Collector
	tracer    trace.Tracer
	limit     int
}

func (s *streamer) windows(ctx context.Context, opt window.Options) error {
	logger := logging.FromContext(ctx)
	batcher, err := window.New(s.gen, opt,
		window.WithLogger(logger),
		window.WithCollector(s.collector),
		window.WithTracer(s.tracer),
	)
	if err != nil {
		return err
	}

	for inst, err := range batcher.All(ctx) {
		if err != nil {
			return ignoreCanceled(err)
		}
		if err := s.writer.WriteInstance(inst); err != nil {
			return err
		}
		if s.limit > 0 && inst.Seq >= int64(s.limit) {
			logger.Debugw("Limit reached", "instances", inst.Seq)
			break
		}
	}
	if reason := batcher.Err(); reason != nil && record.Classify(reason) == record.StatusTimeout {
		logger.Warnw("Source timed out", zap.Error(reason))
	}
	return nil
}

func (s *streamer) flat(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	for n := 0; s.limit <= 0 || n < s.limit; n++ {
		rec, err := s.nextRecord(ctx)
		if err != nil {
			status := record.Classify(err)
			if status == record.StatusTimeout {
				logger.Warnw("Source timed out", zap.Error(err))
			}
			if status.Done() {
				return nil
			}
			return ignoreCanceled(err)
		}
		s.collector.RecordInstance()
		if err := s.writer.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *streamer) nextRecord(ctx context.Context) (rec record.Record, err error) {
	ctx, span := tracing.StartPullSpan(ctx, s.tracer, "generator")
	defer func() { tracing.EndSpan(span, err) }()
	return s.gen.Next(ctx)
}

// ignoreCanceled treats an interrupted run as a normal end of stream.
func ignoreCanceled(err error) error {
	if record.Classify(err) == record.StatusCanceled {
		return nil
	}
	return err
}
