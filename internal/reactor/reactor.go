// Package reactor dispatches submitted work onto a fixed set of worker
// goroutines, leasing one of a bounded number of slots per job.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const defaultQueueSize = 1024

var (
	// ErrShutdown is returned by Submit once the reactor has been shut down.
	ErrShutdown = errors.New("reactor: shut down")
	// ErrQueueFull is returned by Submit when the pending queue is at capacity.
	ErrQueueFull = errors.New("reactor: queue full")
)

// Job is a unit of work. Run is called on its own goroutine after a lease is
// acquired and must call release exactly once when the lease can be returned.
// Abort is called instead of Run when a lease could not be acquired.
type Job interface {
	Context() context.Context
	Run(release func())
	Abort(err error)
}

// Config sizes the reactor.
type Config struct {
	// Workers is the number of dispatcher goroutines. Zero means runtime.NumCPU().
	Workers int
	// QueueSize bounds pending submissions. Zero means 1024.
	QueueSize int
	// MaxLeases bounds concurrently running jobs. Must be positive.
	MaxLeases int
}

// Stats is a point-in-time view of the reactor.
type Stats struct {
	Workers   int
	MaxLeases int
	Leased    int
	Pending   int
}

// Reactor is a started dispatcher.
type Reactor struct {
	cfg     Config
	jobs    chan Job
	slots   *semaphore.Weighted
	leased  atomic.Int64
	waiting atomic.Int64

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	running sync.WaitGroup

	shutdownOnce sync.Once
}

// New validates cfg and starts the worker goroutines.
func New(cfg Config) (*Reactor, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("reactor: workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("reactor: queue size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.MaxLeases <= 0 {
		return nil, fmt.Errorf("reactor: max leases must be positive, got %d", cfg.MaxLeases)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}

	r := &Reactor{
		cfg:   cfg,
		jobs:  make(chan Job, cfg.QueueSize),
		slots: semaphore.NewWeighted(int64(cfg.MaxLeases)),
	}
	r.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.loop()
	}
	return r, nil
}

// Submit enqueues a job without blocking.
func (r *Reactor) Submit(job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrShutdown
	}
	select {
	case r.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats reports worker count, lease usage, and pending work.
func (r *Reactor) Stats() Stats {
	return Stats{
		Workers:   r.cfg.Workers,
		MaxLeases: r.cfg.MaxLeases,
		Leased:    int(r.leased.Load()),
		Pending:   len(r.jobs) + int(r.waiting.Load()),
	}
}

// Shutdown stops accepting work and waits for queued and running jobs to
// finish or ctx to expire. Calling it more than once is a no-op.
func (r *Reactor) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.jobs)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		r.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reactor) loop() {
	defer r.workers.Done()
	for job := range r.jobs {
		r.dispatch(job)
	}
}

func (r *Reactor) dispatch(job Job) {
	ctx := job.Context()
	if err := ctx.Err(); err != nil {
		job.Abort(err)
		return
	}

	r.waiting.Add(1)
	err := r.slots.Acquire(ctx, 1)
	r.waiting.Add(-1)
	if err != nil {
		job.Abort(err)
		return
	}

	r.leased.Add(1)
	var once sync.Once
	release := func() {
		once.Do(func() {
			r.leased.Add(-1)
			r.slots.Release(1)
		})
	}

	r.running.Add(1)
	go func() {
		defer r.running.Done()
		job.Run(release)
	}()
}
