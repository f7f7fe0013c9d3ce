// Package concurrent applies author updates through a bounded worker pool.
// Each record update is independent, so updates may run in parallel when the
// host store accepts concurrent writes; one worker keeps them sequential.
package concurrent

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"authormigrate/internal/filter"
)

// MaxWorkers caps the worker pool.
const MaxWorkers = 16

// Updater writes a new author onto a content record.
type Updater interface {
	UpdateAuthor(ctx context.Context, recordID, authorID int64) error
}

// CacheInvalidator drops read-side caches for a record after it changed.
// Stores without caches simply do not implement it.
type CacheInvalidator interface {
	InvalidateRecord(ctx context.Context, recordID int64) error
}

// UpdateJob is a single record update task.
type UpdateJob struct {
	Record      filter.Record
	NewAuthorID int64
}

// UpdateResult is the outcome of one UpdateJob. Applied is false for dry
// runs and failed writes. CacheError reports an invalidation failure after
// a successful write.
type UpdateResult struct {
	Job        UpdateJob
	Applied    bool
	Error      error
	CacheError error
}

// Options configures a Processor.
type Options struct {
	Workers int
	// Rate limits writes per second across all workers; zero disables it.
	Rate   float64
	DryRun bool
}

// Processor applies update jobs with a pool of workers.
type Processor struct {
	updater     Updater
	invalidator CacheInvalidator
	limiter     *rate.Limiter
	workerCount int
	dryRun      bool
}

// NewProcessor creates a Processor. The updater is also used for cache
// invalidation when it implements CacheInvalidator.
func NewProcessor(updater Updater, opts Options) *Processor {
	workerCount := opts.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > MaxWorkers {
		workerCount = MaxWorkers
	}

	p := &Processor{
		updater:     updater,
		workerCount: workerCount,
		dryRun:      opts.DryRun,
	}

	if invalidator, ok := updater.(CacheInvalidator); ok {
		p.invalidator = invalidator
	}

	if opts.Rate > 0 {
		burst := int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	return p
}

// WorkerCount returns the effective pool size.
func (p *Processor) WorkerCount() int {
	return p.workerCount
}

// ApplyUpdates runs every job and streams the results. The channel is
// closed once all workers have finished or ctx is cancelled.
func (p *Processor) ApplyUpdates(ctx context.Context, jobs []UpdateJob) <-chan UpdateResult {
	queue := make(chan UpdateJob, len(jobs))
	results := make(chan UpdateResult, len(jobs))

	var wg sync.WaitGroup

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, queue, results)
		}()
	}

	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Processor) worker(ctx context.Context, jobs <-chan UpdateJob, results chan<- UpdateResult) {
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			result := p.apply(ctx, job)
			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) apply(ctx context.Context, job UpdateJob) UpdateResult {
	result := UpdateResult{Job: job}

	if p.dryRun {
		return result
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}
	}

	if err := p.updater.UpdateAuthor(ctx, job.Record.ID, job.NewAuthorID); err != nil {
		result.Error = err
		return result
	}
	result.Applied = true

	if p.invalidator != nil {
		result.CacheError = p.invalidator.InvalidateRecord(ctx, job.Record.ID)
	}

	return result
}
