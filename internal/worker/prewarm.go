// Package worker runs background jobs that keep feed caches warm.
package worker

import (
	"context"
	"sync"
	"time"

	"reviewfeed/internal/featureflags"
	"reviewfeed/internal/observability"
)

const (
	defaultWorkers = 2
	defaultQueue   = 256
	jobTimeout     = 30 * time.Second
)

// WarmFunc fills the caches of one product.
type WarmFunc func(ctx context.Context, productID uint) error

// Prewarmer fills per-product feedback caches in the background. Scheduling
// never blocks: a product already queued is skipped and a full queue drops
// the job.
type Prewarmer struct {
	warm    WarmFunc
	flags   *featureflags.Manager
	workers int

	queue   chan uint
	pending map[uint]bool
	mu      sync.Mutex

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPrewarmer creates a Prewarmer. Non-positive sizes fall back to defaults.
func NewPrewarmer(warm WarmFunc, flags *featureflags.Manager, workers, queueSize int) *Prewarmer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueue
	}
	return &Prewarmer{
		warm:    warm,
		flags:   flags,
		workers: workers,
		queue:   make(chan uint, queueSize),
		pending: make(map[uint]bool),
	}
}

// Start launches the workers. They stop when ctx is done or Stop is called.
func (p *Prewarmer) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
}

// Stop cancels the workers and waits for running jobs to return. Queued
// jobs are abandoned.
func (p *Prewarmer) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Schedule queues a product for warming.
func (p *Prewarmer) Schedule(productID uint) {
	if !p.flags.EnabledOr(featureflags.PrewarmFeedbacks, 0, true) {
		return
	}

	p.mu.Lock()
	if p.pending[productID] {
		p.mu.Unlock()
		observability.PrewarmJobs.WithLabelValues("deduplicated").Inc()
		return
	}
	p.pending[productID] = true
	p.mu.Unlock()

	select {
	case p.queue <- productID:
		observability.PrewarmJobs.WithLabelValues("scheduled").Inc()
	default:
		p.done(productID)
		observability.PrewarmJobs.WithLabelValues("dropped").Inc()
		observability.Logger.Warn("prewarm queue full, dropping job", "product_id", productID)
	}
}

// Pending reports how many products are queued or being warmed.
func (p *Prewarmer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Prewarmer) done(productID uint) {
	p.mu.Lock()
	delete(p.pending, productID)
	p.mu.Unlock()
}

func (p *Prewarmer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case productID := <-p.queue:
			p.process(ctx, productID)
		}
	}
}

func (p *Prewarmer) process(ctx context.Context, productID uint) {
	defer p.done(productID)

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	ctx, job := observability.StartJob(ctx, "prewarm_feedbacks", "product_id", productID)
	if err := p.warm(ctx, productID); err != nil {
		observability.PrewarmJobs.WithLabelValues("failed").Inc()
		job.Fail(ctx, err)
		return
	}
	observability.PrewarmJobs.WithLabelValues("done").Inc()
	job.Done(ctx)
}
