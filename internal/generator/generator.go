// Package generator turns raw feeder rows into typed (features, target)
// records. It validates the configured columns against the feeder schema once,
// at construction, and never during iteration.
package generator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/torosent/fluvial/internal/feeder"
	"github.com/torosent/fluvial/internal/record"
)

// Options select the columns a Generator reads.
type Options struct {
	// Targets lists the target columns. With MultiTarget unset exactly one
	// column is allowed and records carry a bare scalar target.
	Targets     []string
	MultiTarget bool
	// Features lists the feature columns in output order. Empty means every
	// non-target column in schema order.
	Features   []string
	ParseDates []string
	Logger     *zap.SugaredLogger
}

// Generator pulls one row at a time from a feeder and exposes it as a
// record.Record. It satisfies record.Source.
type Generator struct {
	src      feeder.Feeder
	targets  []string
	multi    bool
	features []string
	dates    map[string]bool
	logger   *zap.SugaredLogger

	count    int64
	stopped  bool
	stopOnce sync.Once
}

var _ record.Source = (*Generator)(nil)

// New validates opt against the feeder schema. An unknown column fails with a
// *record.SchemaError and no generator is returned.
func New(src feeder.Feeder, opt Options) (*Generator, error) {
	if len(opt.Targets) == 0 {
		return nil, errors.New("at least one target column is required")
	}
	if !opt.MultiTarget && len(opt.Targets) > 1 {
		return nil, errors.New("single-target mode accepts exactly one target column")
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	columns := src.Columns()
	schema := make(map[string]bool, len(columns))
	for _, col := range columns {
		schema[col] = true
	}

	targetSet := make(map[string]bool, len(opt.Targets))
	for _, col := range opt.Targets {
		if !schema[col] {
			return nil, &record.SchemaError{Column: col, Role: "target"}
		}
		targetSet[col] = true
	}

	features := opt.Features
	if len(features) == 0 {
		features = make([]string, 0, len(columns))
		for _, col := range columns {
			if !targetSet[col] {
				features = append(features, col)
			}
		}
		logger.Debugw("Defaulted feature columns", "features", features)
	} else {
		for _, col := range features {
			if !schema[col] {
				return nil, &record.SchemaError{Column: col, Role: "feature"}
			}
		}
	}

	dates := make(map[string]bool, len(opt.ParseDates))
	for _, col := range opt.ParseDates {
		if !schema[col] {
			return nil, &record.SchemaError{Column: col, Role: "parse_dates"}
		}
		dates[col] = true
	}

	return &Generator{
		src:      src,
		targets:  append([]string(nil), opt.Targets...),
		multi:    opt.MultiTarget,
		features: append([]string(nil), features...),
		dates:    dates,
		logger:   logger,
	}, nil
}

// Next returns the next record. Exhaustion and timeout stop the generator:
// the feeder is closed and every later call returns record.ErrExhausted.
func (g *Generator) Next(ctx context.Context) (record.Record, error) {
	if g.stopped {
		return record.Record{}, record.ErrExhausted
	}

	row, err := g.src.Next(ctx)
	if err != nil {
		if status := record.Classify(err); status.Done() {
			g.logger.Debugw("Generator stopped", "reason", status.String(), "records", g.count)
			if cerr := g.Stop(); cerr != nil {
				g.logger.Warnw("Failed to close feeder", zap.Error(cerr))
			}
		}
		return record.Record{}, err
	}

	rec := record.Record{
		Features: make(record.Features, len(g.features)),
		Target:   g.target(row),
	}
	for i, col := range g.features {
		rec.Features[i] = record.Field{Name: col, Value: g.cell(row, col)}
	}
	g.count++
	return rec, nil
}

func (g *Generator) target(row feeder.Row) record.Target {
	if !g.multi {
		return record.SingleTarget(g.cell(row, g.targets[0]))
	}
	named := make(record.Features, len(g.targets))
	for i, col := range g.targets {
		named[i] = record.Field{Name: col, Value: g.cell(row, col)}
	}
	return record.MultiTarget(named)
}

func (g *Generator) cell(row feeder.Row, col string) record.Value {
	return record.Parse(row[col], g.dates[col])
}

// Stop closes the underlying feeder. It is safe to call more than once.
func (g *Generator) Stop() error {
	var err error
	g.stopOnce.Do(func() {
		g.stopped = true
		err = g.src.Close()
	})
	return err
}

// Stopped reports whether the generator has ended.
func (g *Generator) Stopped() bool { return g.stopped }

// Count returns the number of records produced so far.
func (g *Generator) Count() int64 { return g.count }

// Features returns the resolved feature columns in output order.
func (g *Generator) Features() []string { return append([]string(nil), g.features...) }

// Targets returns the configured target columns.
func (g *Generator) Targets() []string { return append([]string(nil), g.targets...) }

// MultiTarget reports whether records carry a named target mapping.
func (g *Generator) MultiTarget() bool { return g.multi }
