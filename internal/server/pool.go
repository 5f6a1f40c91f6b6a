package server

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"cohortaudit/internal/api"
	"cohortaudit/internal/observability"
)

// pool bounds concurrent CPU-bound jobs and coalesces identical analyses.
type pool struct {
	size    int
	sem     *semaphore.Weighted
	group   singleflight.Group
	metrics *observability.Metrics
}

func newPool(size int, metrics *observability.Metrics) *pool {
	if size < 1 {
		size = 1
	}
	return &pool{size: size, sem: semaphore.NewWeighted(int64(size)), metrics: metrics}
}

// run executes fn once a worker slot is free. Waiting honours ctx.
func (p *pool) run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	if p.metrics != nil {
		p.metrics.WorkersBusy.Inc()
		defer p.metrics.WorkersBusy.Dec()
	}
	return fn()
}

// analyze runs compute under key, sharing the result with concurrent callers
// of the same key. The computation itself is detached from any single caller
// and bounded by timeout; each caller stops waiting when its own ctx ends.
func (p *pool) analyze(ctx context.Context, key string, timeout time.Duration, compute func(context.Context) (*api.AnalyticsResponse, error)) (*api.AnalyticsResponse, error) {
	leader := false
	ch := p.group.DoChan(key, func() (any, error) {
		leader = true
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var resp *api.AnalyticsResponse
		started := time.Now()
		err := p.run(workCtx, func() error {
			var err error
			resp, err = compute(workCtx)
			return err
		})
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailure
		}
		p.metrics.ObserveAnalysis(outcome, time.Since(started))
		return resp, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if !leader {
			p.metrics.ObserveAnalysis(observability.OutcomeShared, 0)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*api.AnalyticsResponse), nil
	}
}
