// Package harness paces and bounds pulls from a raw row source.
//
// A [Harness] decorates a [feeder.Feeder] and adds the timing behaviour of a
// live feed:
//   - Stream period: a delay between consecutive pulls (0 means none)
//   - Arrival models: fixed spacing ([ArrivalModelUniform]) or exponentially
//     distributed gaps with the same mean ([ArrivalModelPoisson])
//   - Timeout: the longest a single pull may wait for the source
//
// # Basic Usage
//
//	src, _ := feeder.NewCSVFeeder("bikes.csv")
//	h := harness.Wrap(src, harness.Options{
//		StreamPeriod: 100 * time.Millisecond,
//		Timeout:      30 * time.Second,
//	})
//	row, err := h.Next(ctx)
//
// # Failure Signals
//
// A pull that waits longer than the timeout fails with [record.ErrTimeout];
// an empty source fails with [record.ErrExhausted]. Either one stops the
// harness: the source is closed and every later call fails with
// [record.ErrExhausted] without touching it again. Cancellation of the
// caller's context is returned unchanged and does not stop the harness.
package harness
