// Package coordinator fans probes out over a bounded worker pool and
// collects exactly one result per endpoint, regardless of completion order.
package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/suprohub/novaprox/internal/model"
)

// Prober runs one liveness probe. Implementations must honor ctx.
type Prober interface {
	Probe(ctx context.Context, e *model.Endpoint) model.ProbeResult
}

type Option func(*Coordinator)

// WithSpawnInterval paces probe launches so runtime processes do not all
// start at the same instant. Zero disables pacing.
func WithSpawnInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithObserver registers a callback invoked once per completed probe,
// in completion order.
func WithObserver(fn func(model.ProbeResult)) Option {
	return func(c *Coordinator) {
		c.observer = fn
	}
}

type Coordinator struct {
	prober   Prober
	limiter  *rate.Limiter
	observer func(model.ProbeResult)
}

func New(p Prober, opts ...Option) *Coordinator {
	c := &Coordinator{prober: p}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run probes every endpoint with at most `workers` in flight and a per-probe
// budget of `timeout`. The returned batch always holds len(endpoints)
// results; an empty input yields an empty batch, never an error. Cancelling
// ctx drains promptly: unfinished endpoints are recorded as timeouts and
// their subprocess resources reclaimed by the prober's scoped cleanup.
func (c *Coordinator) Run(ctx context.Context, endpoints []*model.Endpoint, workers int, timeout time.Duration) model.ProbeBatch {
	if len(endpoints) == 0 {
		return model.ProbeBatch{}
	}
	if workers < 1 {
		workers = 1
	}

	slog.Info("starting probes", "count", len(endpoints), "workers", workers, "timeout", timeout)

	pool, _ := ants.NewPool(workers, ants.WithNonblocking(false))
	defer pool.Release()

	results := make(chan model.ProbeResult, len(endpoints))

	var wg sync.WaitGroup
	wg.Add(len(endpoints))

	for i, e := range endpoints {
		seq, endpoint := i, e

		submit := func() {
			defer wg.Done()

			res := c.probeOne(ctx, endpoint, timeout)
			res.Seq = seq
			results <- res
		}

		if err := pool.Submit(submit); err != nil {
			// Pool released mid-run only happens on shutdown; still
			// account for the endpoint.
			go submit()
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	batch := make(model.ProbeBatch, 0, len(endpoints))
	for res := range results {
		if c.observer != nil {
			c.observer(res)
		}
		batch = append(batch, res)
	}

	// Completion order is meaningless; hand the batch over in
	// submission order.
	sort.Slice(batch, func(i, j int) bool { return batch[i].Seq < batch[j].Seq })

	slog.Info("probes completed", "count", len(batch))
	return batch
}

func (c *Coordinator) probeOne(ctx context.Context, e *model.Endpoint, timeout time.Duration) model.ProbeResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.ProbeResult{Endpoint: e, Reason: model.FailureTimeout, At: time.Now()}
		}
	}
	if ctx.Err() != nil {
		return model.ProbeResult{Endpoint: e, Reason: model.FailureTimeout, At: time.Now()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.prober.Probe(probeCtx, e)
}
