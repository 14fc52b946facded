// Package jobs runs independent feature-build steps on a bounded
// in-memory queue with a worker pool. Parallelism is an execution detail:
// results are collected and handed back in job-name order, so the merged
// output is identical whatever the worker count.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/pkg/logger"
	"github.com/okian/featable/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 64
)

// Job is one named feature-build step producing one table.
type Job struct {
	Name string
	Run  func(ctx context.Context) (*frame.Table, error)
}

// Result pairs a job's name with its output or failure.
type Result struct {
	Name  string
	Table *frame.Table
	Err   error
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics
// for feature-build jobs.
type Queue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a bounded in-memory job queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateJobQueueCapacity(q.capacity)
	metrics.UpdateJobQueueSize(0)

	return q
}

// Enqueue adds a job to the queue. It reports false if the queue is
// closed, full, or the context is done.
func (q *Queue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.jobs <- j:
		metrics.UpdateJobQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		return false
	default:
		return false // queue is full
	}
}

// Dequeue returns the channel workers receive jobs from. It is closed
// when the queue closes and drains.
func (q *Queue) Dequeue() <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops the queue. Queued jobs still drain to the workers.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Pool executes jobs from a queue with a fixed number of workers.
type Pool struct {
	queue   *Queue
	workers int
	log     logger.Logger

	mu      sync.Mutex
	results []Result
	wg      sync.WaitGroup
}

// NewPool creates a worker pool over the queue.
func NewPool(queue *Queue, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:   queue,
		workers: 1,
		log:     logger.Get().Named("jobs"),
	}
	for _, opt := range opts {
		opt(p)
	}

	metrics.UpdateWorkerCount(p.workers)

	return p
}

// Start launches the workers. Call Wait to collect results.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue.Dequeue():
			if !ok {
				return
			}
			p.execute(ctx, id, job)
			metrics.UpdateJobQueueSize(p.queue.Len())
		}
	}
}

func (p *Pool) execute(ctx context.Context, id int, job Job) {
	tbl, err := job.Run(ctx)
	if err != nil {
		metrics.RecordJobFailure()
		p.log.Error(ctx, "feature job failed",
			logger.String("job", job.Name),
			logger.Int("worker", id),
			logger.Error(err),
		)
	} else {
		metrics.RecordJobSuccess()
	}

	p.mu.Lock()
	p.results = append(p.results, Result{Name: job.Name, Table: tbl, Err: err})
	p.mu.Unlock()
}

// Wait blocks until every worker has drained the queue and returns the
// results sorted by job name.
func (p *Pool) Wait() []Result {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.Slice(p.results, func(a, b int) bool { return p.results[a].Name < p.results[b].Name })
	return append([]Result(nil), p.results...)
}

// RunAll is the common batch path: enqueue every job, run the pool, and
// return the tables keyed by job name. Any job failure fails the batch,
// with every failure joined into the returned error.
func RunAll(ctx context.Context, workers int, jobs []Job) (map[string]*frame.Table, error) {
	queue := NewQueue(WithCapacity(len(jobs)))
	for _, j := range jobs {
		if !queue.Enqueue(ctx, j) {
			queue.Close()
			return nil, fmt.Errorf("%w: %s", ErrEnqueueFailed, j.Name)
		}
	}
	queue.Close()

	pool := NewPool(queue, WithWorkers(workers))
	pool.Start(ctx)

	out := make(map[string]*frame.Table, len(jobs))
	var errs []error
	results := pool.Wait()
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", r.Name, r.Err))
			continue
		}
		out[r.Name] = r.Table
	}
	// A cancelled context lets workers exit before the queue drains; a
	// partial result map must fail the batch, not flow downstream.
	if len(results) != len(jobs) {
		errs = append(errs, fmt.Errorf("%w: %d of %d ran", ErrBatchIncomplete, len(results), len(jobs)))
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
