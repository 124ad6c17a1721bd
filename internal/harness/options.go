package harness

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/fluvial/internal/metrics"
)

// ArrivalModel selects how pulls are spaced in time.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Harness.
type Options struct {
	StreamPeriod   time.Duration                            // delay between pulls (0 means no delay)
	Timeout        time.Duration                            // bound on a single pull (0 means unbounded)
	ArrivalModel   ArrivalModel                             // uniform by default
	RandomSeed     int64                                    // seed for poisson sampling
	PoissonSampler func() float64                           // optional injection for tests; unit-mean exponential samples
	LimiterFactory func(period time.Duration) *rate.Limiter // optional injection for tests
	Collector      *metrics.Collector                       // optional pull metrics
	Logger         *zap.SugaredLogger
}

func (o *Options) normalize() {
	if o.StreamPeriod < 0 {
		o.StreamPeriod = 0
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(period time.Duration) *rate.Limiter {
			if period <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one: the first pull is immediate, later pulls are spaced.
			return rate.NewLimiter(rate.Every(period), 1)
		}
	}
}
