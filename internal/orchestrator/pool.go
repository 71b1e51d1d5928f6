package orchestrator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/observability"
)

// scorePool is a fixed-size worker pool for CPU-bound scoring fan-out.
// Lifetime is explicit: Stop closes the queue and waits for workers to
// drain, so nothing leaks past shutdown. A panicking task is logged and
// dropped without taking a worker down.
type scorePool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *zap.Logger

	stopOnce sync.Once
}

func newScorePool(workers, queueSize int, logger *zap.Logger) *scorePool {
	p := &scorePool{
		tasks:  make(chan func(), queueSize),
		logger: logger,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *scorePool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
		observability.ScoringQueueDepth.Dec()
	}
}

func (p *scorePool) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("scoring task panic", zap.Any("panic", rec))
			observability.BatchScoringSkips.Inc()
		}
	}()
	task()
}

// Submit blocks when the queue is full; backpressure is the bound.
func (p *scorePool) Submit(task func()) {
	observability.ScoringQueueDepth.Inc()
	p.tasks <- task
}

// Stop drains the queue and joins the workers. Safe to call twice.
func (p *scorePool) Stop() {
	p.stopOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
