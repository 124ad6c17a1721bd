// Package window implements the sliding past/forecast batcher. It pulls flat
// records from a record.Source, keeps at most past+forecast+1 of them in a
// ring buffer and emits one windowed Instance per call, sliding by a single
// record each time.
package window

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/fluvial/internal/metrics"
	"github.com/torosent/fluvial/internal/record"
	"github.com/torosent/fluvial/internal/tracing"
)

// Options fix the window geometry for the lifetime of a Batcher.
type Options struct {
	PastSize     int // historical records per window
	ForecastSize int // extra steps past the window before the target is read
}

// DefaultOptions returns a three-record window with next-step forecasting.
func DefaultOptions() Options {
	return Options{PastSize: 3, ForecastSize: 0}
}

// Required is the buffer length needed to emit one instance.
func (o Options) Required() int {
	return o.PastSize + o.ForecastSize + 1
}

func (o Options) validate() error {
	var errs []error
	if o.PastSize < 0 {
		errs = append(errs, fmt.Errorf("past size must be >= 0, got %d", o.PastSize))
	}
	if o.ForecastSize < 0 {
		errs = append(errs, fmt.Errorf("forecast size must be >= 0, got %d", o.ForecastSize))
	}
	return errors.Join(errs...)
}

// Instance is one windowed example: the features of PastSize consecutive
// records and the target read ForecastSize records after them.
type Instance struct {
	ID      ulid.ULID         `json:"id"`
	Seq     int64             `json:"seq"`
	Past    []record.Features `json:"past"`
	Target  record.Target     `json:"target"`
	Current record.Record     `json:"current"` // most recently pulled record
}

// Option customises a Batcher.
type Option func(*Batcher)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(b *Batcher) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCollector counts emitted instances on c.
func WithCollector(c *metrics.Collector) Option {
	return func(b *Batcher) { b.collector = c }
}

// WithTracer wraps every Next call in a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Batcher) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// WithEntropy replaces the randomness used for instance IDs.
func WithEntropy(r io.Reader) Option {
	return func(b *Batcher) { b.entropy = ulid.Monotonic(r, 0) }
}

// stopper is implemented by sources that hold a releasable iteration handle.
type stopper interface {
	Stop() error
}

// Batcher emits sliding windows over a record.Source. It is single-use: once
// it has stopped every call returns record.ErrExhausted. A Batcher is not
// safe for concurrent use.
type Batcher struct {
	src  record.Source
	opt  Options
	buf  *ring
	last record.Record

	records   int64
	instances int64
	stopped   bool
	stopErr   error

	entropy   *ulid.MonotonicEntropy
	logger    *zap.SugaredLogger
	collector *metrics.Collector
	tracer    trace.Tracer
}

// New creates a batcher with an empty buffer.
func New(src record.Source, opt Options, opts ...Option) (*Batcher, error) {
	if src == nil {
		return nil, errors.New("window: nil record source")
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	b := &Batcher{
		src:     src,
		opt:     opt,
		buf:     newRing(opt.Required()),
		entropy: ulid.Monotonic(crand.Reader, 0),
		logger:  zap.NewNop().Sugar(),
		tracer:  tracing.NoopTracer(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Next pulls until the buffer holds a full window, then emits it and evicts
// the oldest record. Exhaustion and timeout of the source stop the batcher
// and are returned as is. Any other error, including cancellation of ctx,
// leaves the buffer untouched so the call can be repeated.
func (b *Batcher) Next(ctx context.Context) (inst Instance, err error) {
	if b.stopped {
		return Instance{}, record.ErrExhausted
	}

	ctx, span := tracing.StartPullSpan(ctx, b.tracer, "window")
	defer func() {
		tracing.EndSpan(span, err,
			attribute.Int64("fluvial.instance.seq", inst.Seq),
			attribute.Int("fluvial.window.buffered", b.buf.Len()),
		)
	}()

	required := b.opt.Required()
	for b.buf.Len() < required {
		rec, err := b.src.Next(ctx)
		if err != nil {
			if record.Classify(err).Done() {
				b.stop(err)
			}
			return Instance{}, err
		}
		b.buf.Push(rec)
		b.last = rec
		b.records++
	}

	target, ok := b.buf.At(b.opt.PastSize + b.opt.ForecastSize)
	if !ok {
		err := fmt.Errorf("window: target position %d outside buffer of %d: %w",
			b.opt.PastSize+b.opt.ForecastSize, b.buf.Len(), record.ErrExhausted)
		b.stop(err)
		return Instance{}, err
	}
	past := make([]record.Features, b.opt.PastSize)
	for i := range past {
		rec, _ := b.buf.At(i)
		past[i] = rec.Features
	}
	b.buf.PopFront()
	b.instances++
	if b.collector != nil {
		b.collector.RecordInstance()
	}

	return Instance{
		ID:      b.newID(),
		Seq:     b.instances,
		Past:    past,
		Target:  target.Target,
		Current: b.last,
	}, nil
}

// All iterates over the remaining instances. Iteration ends quietly at
// exhaustion or timeout; any other error is yielded once and ends it.
func (b *Batcher) All(ctx context.Context) iter.Seq2[Instance, error] {
	return func(yield func(Instance, error) bool) {
		for {
			inst, err := b.Next(ctx)
			if err != nil {
				if !record.Classify(err).Done() {
					yield(Instance{}, err)
				}
				return
			}
			if !yield(inst, nil) {
				return
			}
		}
	}
}

func (b *Batcher) stop(reason error) {
	if b.stopped {
		return
	}
	b.stopped = true
	b.stopErr = reason
	b.logger.Debugw("Batcher stopped",
		"reason", record.Classify(reason).String(),
		"records", b.records,
		"instances", b.instances,
		"buffered", b.buf.Len(),
	)
	if s, ok := b.src.(stopper); ok {
		if err := s.Stop(); err != nil {
			b.logger.Warnw("Failed to stop record source", zap.Error(err))
		}
	}
}

func (b *Batcher) newID() ulid.ULID {
	id, err := ulid.New(ulid.Timestamp(time.Now()), b.entropy)
	if err != nil {
		// Monotonic entropy overflowed within one millisecond.
		return ulid.Make()
	}
	return id
}

// Stopped reports whether the batcher has ended.
func (b *Batcher) Stopped() bool { return b.stopped }

// Err returns the error that stopped the batcher, or nil while it is running.
func (b *Batcher) Err() error { return b.stopErr }

// InstanceCount returns the number of instances emitted.
func (b *Batcher) InstanceCount() int64 { return b.instances }

// RecordCount returns the number of records pulled from the source.
func (b *Batcher) RecordCount() int64 { return b.records }

// Buffered returns the current buffer length.
func (b *Batcher) Buffered() int { return b.buf.Len() }

// Options returns the window geometry.
func (b *Batcher) Options() Options { return b.opt }
