package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/torosent/fluvial/internal/feeder"
	"github.com/torosent/fluvial/internal/record"
)

// Harness wraps a Feeder with pacing and a per-pull timeout. It satisfies
// feeder.Feeder itself, so it can be placed anywhere a feeder is expected.
// A Harness serves one consumer at a time.
type Harness struct {
	src     feeder.Feeder
	opt     Options
	arrival arrivalController

	stopOnce sync.Once
	stopped  bool
	pulls    int64
}

var _ feeder.Feeder = (*Harness)(nil)

// Wrap decorates src with the timing behaviour described by opt.
func Wrap(src feeder.Feeder, opt Options) *Harness {
	opt.normalize()
	return &Harness{
		src:     src,
		opt:     opt,
		arrival: newArrivalController(opt),
	}
}

func (h *Harness) Columns() []string {
	return h.src.Columns()
}

func (h *Harness) Len() int {
	return h.src.Len()
}

// Next waits for the pacing slot, then pulls one row within the timeout.
func (h *Harness) Next(ctx context.Context) (feeder.Row, error) {
	if h.stopped {
		return nil, record.ErrExhausted
	}

	if err := h.arrival.Wait(ctx); err != nil {
		return nil, err
	}

	pullCtx := ctx
	if h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		pullCtx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	start := time.Now()
	row, err := h.src.Next(pullCtx)
	latency := time.Since(start)

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s", record.ErrTimeout, h.opt.Timeout)
	}
	if h.opt.Collector != nil {
		h.opt.Collector.RecordPull(latency, err)
	}
	if err != nil {
		if record.Classify(err).Done() {
			h.opt.Logger.Debugw("Stopping harness", "reason", record.Classify(err).String(), "pulls", h.pulls)
			h.stop()
		}
		return nil, err
	}

	h.pulls++
	return row, nil
}

// Close stops the harness and closes the wrapped feeder once.
func (h *Harness) Close() error {
	return h.stop()
}

// Stopped reports whether the harness has observed the end of the stream.
func (h *Harness) Stopped() bool {
	return h.stopped
}

// Pulls returns the number of rows successfully pulled.
func (h *Harness) Pulls() int64 {
	return h.pulls
}

func (h *Harness) stop() error {
	var err error
	h.stopOnce.Do(func() {
		h.stopped = true
		err = h.src.Close()
	})
	return err
}
