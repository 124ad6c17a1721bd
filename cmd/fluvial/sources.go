package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/torosent/fluvial/internal/config"
	"github.com/torosent/fluvial/internal/feeder"
	"github.com/torosent/fluvial/internal/harness"
)

func openFeeder(cfg *config.Config, logger *zap.SugaredLogger) (feeder.Feeder, error) {
	switch cfg.Source.ResolvedType() {
	case config.SourceCSV:
		f, err := feeder.NewCSVFeeder(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.SourceJSON:
		f, err := feeder.NewJSONFeeder(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.SourceNATS:
		n := cfg.Source.NATS
		f, err := feeder.NewNATSFeeder(feeder.NATSOptions{
			URL:        n.URL,
			Subject:    n.Subject,
			Queue:      n.Queue,
			Columns:    n.Columns,
			BufferSize: n.BufferSize,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q", cfg.Source.Type)
	}
}

func toHarnessArrivalModel(model config.ArrivalModel) harness.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return harness.ArrivalModelPoisson
	default:
		return harness.ArrivalModelUniform
	}
}

// outputSink is where items are written: stdout, or a file held under an
// exclusive advisory lock for the whole run.
type outputSink struct {
	io.Writer
	file *os.File
	lock *flock.Flock
}

func openOutput(path string, stdout io.Writer) (*outputSink, error) {
	if path == "" || path == "-" {
		return &outputSink{Writer: stdout}, nil
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("output %s is in use by another process", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &outputSink{Writer: f, file: f, lock: lock}, nil
}

// Close closes the file and releases the lock. Stdout is left open.
func (s *outputSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
