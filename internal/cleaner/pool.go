package cleaner

import (
	"context"
	"fmt"
	"sync"

	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/telegram"
)

// Task is one unit of work for a pool: either a dialog target or a
// batch of contacts, depending on the pool's action category.
type Task struct {
	Target   *Target
	Contacts []telegram.Contact
}

// Executor performs one action category against one task and returns
// the terminal records for it. A dialog task yields exactly one record;
// a contact batch yields one record per contact.
type Executor func(ctx context.Context, task Task) []ActionRecord

// Pool runs executor invocations with a fixed concurrency ceiling. The
// categories (leave, delete history, delete contacts) each get their
// own pool so a stall in one never throttles another.
type Pool struct {
	name    string
	workers int
	queue   chan Task
	results chan ActionRecord
	wg      sync.WaitGroup
	logger  *logger.Logger
}

// NewPool creates a pool for one action category.
func NewPool(name string, workers, buffer int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		name:    name,
		workers: workers,
		queue:   make(chan Task, buffer),
		results: make(chan ActionRecord, buffer),
		logger:  log,
	}
}

// Start launches the worker set. Results are delivered on Results()
// until every submitted task is terminal and Close has been called;
// the results channel is then closed.
func (p *Pool) Start(ctx context.Context, exec Executor) {
	p.logger.Debug("starting pool",
		logger.Field{Key: "pool", Value: p.name},
		logger.Field{Key: "workers", Value: p.workers})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, exec)
	}

	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Submit queues a task. It blocks when the queue is full.
func (p *Pool) Submit(task Task) {
	p.queue <- task
}

// Close signals that no more tasks will be submitted. Workers exit once
// the queue drains.
func (p *Pool) Close() {
	close(p.queue)
}

// Results returns the terminal record stream for this pool.
func (p *Pool) Results() <-chan ActionRecord {
	return p.results
}

// worker drains the queue. After cancellation, queued tasks are skipped
// without execution: their targets stay in the pending state so the
// final report can list them as not attempted. In-flight executions are
// never interrupted mid-call.
func (p *Pool) worker(ctx context.Context, id int, exec Executor) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool worker panic recovered",
				fmt.Errorf("panic: %v", r),
				logger.Field{Key: "pool", Value: p.name},
				logger.Field{Key: "worker_id", Value: id})
		}
	}()

	for task := range p.queue {
		if ctx.Err() != nil {
			continue
		}
		for _, rec := range exec(ctx, task) {
			p.results <- rec
		}
	}

	p.logger.Debug("pool worker stopped",
		logger.Field{Key: "pool", Value: p.name},
		logger.Field{Key: "worker_id", Value: id})
}
