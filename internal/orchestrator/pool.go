package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc processes a single voucher-kind sync task.
type TaskFunc func(ctx context.Context, task SyncTask) TaskResult

// SyncTask is one unit of fan-out work: sync one voucher kind for one
// tenant. The pool itself is domain-agnostic; Run just carries whatever
// the caller's TaskFunc needs.
type SyncTask struct {
	CompanyName string
	VoucherKind string
	FromDate    string // YYYYMMDD, used only by the snapshot branch
	ToDate      string // YYYYMMDD
}

// TaskResult is the outcome of running a SyncTask.
type TaskResult struct {
	Task           SyncTask
	Summary        any // a model.SyncRunSummary value when set by the Orchestrator's TaskFunc
	Err            error
	ProcessingTime time.Duration
}

// worker pulls tasks off the shared input channel until it closes.
type worker struct {
	id     int
	fn     TaskFunc
	input  <-chan SyncTask
	output chan<- TaskResult
	logger *zap.Logger
	wg     *sync.WaitGroup
}

func (w *worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-w.input:
			if !ok {
				return
			}
			start := time.Now()
			result := w.fn(ctx, task)
			result.Task = task
			result.ProcessingTime = time.Since(start)
			if result.Err != nil {
				w.logger.Warn("voucher kind sync failed",
					zap.Int("worker", w.id),
					zap.String("company", task.CompanyName),
					zap.String("voucher_kind", task.VoucherKind),
					zap.Error(result.Err))
			} else {
				w.logger.Debug("voucher kind sync completed",
					zap.Int("worker", w.id),
					zap.String("company", task.CompanyName),
					zap.String("voucher_kind", task.VoucherKind),
					zap.Duration("elapsed", result.ProcessingTime))
			}
			select {
			case w.output <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// PoolConfig configures the bounded worker pool. Workers defaults to 8.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// ApplyDefaults fills unset fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = c.Workers * 2
	}
}

// Pool fans SyncTasks out across a fixed number of goroutines so a
// single tenant's eight voucher kinds sync concurrently without
// unbounded goroutine growth across tenants.
type Pool struct {
	workers    int
	input      chan SyncTask
	output     chan TaskResult
	wg         sync.WaitGroup
	logger     *zap.Logger
	workerList []*worker
}

// NewPool builds a pool bound to fn; call Start to launch its workers.
func NewPool(cfg PoolConfig, fn TaskFunc, logger *zap.Logger) *Pool {
	cfg.ApplyDefaults()
	p := &Pool{
		workers: cfg.Workers,
		input:   make(chan SyncTask, cfg.QueueSize),
		output:  make(chan TaskResult, cfg.QueueSize),
		logger:  logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.workerList = append(p.workerList, &worker{id: i, fn: fn, input: p.input, output: p.output, logger: logger, wg: &p.wg})
	}
	return p
}

// Start launches all workers against ctx; cancelling ctx stops them
// without waiting for the input queue to drain.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(len(p.workerList))
	for _, w := range p.workerList {
		go w.run(ctx)
	}
}

// Submit enqueues a task, blocking if the queue is full.
func (p *Pool) Submit(ctx context.Context, task SyncTask) error {
	select {
	case p.input <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the channel of completed task results.
func (p *Pool) Results() <-chan TaskResult {
	return p.output
}

// Shutdown closes the input queue, waits for in-flight tasks to drain,
// and closes the output channel.
func (p *Pool) Shutdown() {
	close(p.input)
	p.wg.Wait()
	close(p.output)
}

// WorkerCount reports the pool's fixed worker count.
func (p *Pool) WorkerCount() int {
	return p.workers
}
