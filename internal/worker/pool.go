package worker

import (
	"context"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zkid-sh/zkauth/internal/debug"
)

// Default limits. QueueCapacity is sized generously relative to Workers
// since a modular exponentiation over the 1536-bit group typically
// completes in about a millisecond; the queue exists to absorb
// bursts, not to become the steady-state home for verify traffic.
const (
	DefaultQueueCapacity = 100000
)

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Workers       int // number of goroutines draining the queue
	QueueCapacity int // max tasks buffered ahead of the workers
}

// DefaultPoolConfig returns sensible defaults: one worker per CPU and a
// deep queue, matching the CPU-bound-offload requirement in §5 of the
// service's design without needing the caller to tune anything.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:       runtime.NumCPU(),
		QueueCapacity: DefaultQueueCapacity,
	}
}

// Task is a single unit of CPU-bound work submitted to the pool: a
// modular exponentiation computed off the HTTP goroutine. It returns a
// *big.Int rather than an interface{} since the pool exists for
// exactly one kind of work.
type Task func(ctx context.Context) (*big.Int, error)

// internalJob pairs a Task with the channel its result is delivered on.
type internalJob struct {
	ctx    context.Context
	task   Task
	result chan<- jobResult
}

type jobResult struct {
	val *big.Int
	err error
}

// Pool is a bounded pool of goroutines dedicated to modular
// exponentiation, kept separate from the HTTP server's own goroutines
// so a burst of verify requests applies back-pressure on the queue
// instead of spawning unbounded CPU work alongside request handling.
type Pool struct {
	config PoolConfig

	queue chan internalJob
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	tasksTotal  atomic.Int64
	tasksFailed atomic.Int64
}

// NewPool starts cfg.Workers goroutines draining a queue of depth
// cfg.QueueCapacity. A zero-value field is replaced with its default.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}

	p := &Pool{
		config: cfg,
		queue:  make(chan internalJob, cfg.QueueCapacity),
		done:   make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	debug.Log("worker", "pool started: %d workers, queue capacity %d", cfg.Workers, cfg.QueueCapacity)

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(job)
		case <-p.done:
			return
		}
	}
}

func (p *Pool) runJob(job internalJob) {
	p.tasksTotal.Add(1)

	val, err := job.task(job.ctx)
	if err != nil {
		p.tasksFailed.Add(1)
	}

	select {
	case job.result <- jobResult{val: val, err: err}:
	case <-job.ctx.Done():
		// Caller already gave up; drop the result on the floor.
	}
}

// Submit enqueues task and blocks until it completes, ctx is
// cancelled, or the queue is full (ErrQueueFull, returned immediately
// without blocking on the queue itself — a full queue means the pool
// is saturated and the caller should shed load rather than pile on).
func (p *Pool) Submit(ctx context.Context, task Task) (*big.Int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	result := make(chan jobResult, 1)
	job := internalJob{ctx: ctx, task: task, result: result}

	select {
	case p.queue <- job:
	default:
		return nil, ErrQueueFull
	}

	select {
	case r := <-result:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrPoolClosed
	}
}

// Close stops accepting new work and waits for in-flight tasks to
// finish. It is safe to call once; a second call is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	return nil
}
