package taskgraph

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultWorkersPerTag = 3

// Option configures an Executor.
type Option func(*Executor)

// WithWorkersPerTag overrides the default pool size (3) applied to
// every tag's worker pool.
func WithWorkersPerTag(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workersPerTag = n
		}
	}
}

// WithLogger installs a logger the Executor uses for dispatch/shutdown
// tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Executor pulls ready units from a Scheduler and dispatches each to
// the bounded worker pool keyed by the unit's tag, creating pools on
// demand (spec.md §4.3). The pool map is touched only by the goroutine
// that calls Run, so it needs no locking of its own (spec.md §5).
type Executor struct {
	scheduler     *Scheduler
	workersPerTag int
	logger        *zap.Logger

	pools map[string]*pool
}

// NewExecutor constructs an Executor bound to s. Default workersPerTag is 3.
func NewExecutor(s *Scheduler, opts ...Option) *Executor {
	e := &Executor{
		scheduler:     s,
		workersPerTag: defaultWorkersPerTag,
		logger:        zap.NewNop(),
		pools:         make(map[string]*pool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives execution to completion: it iterates the scheduler's ready
// sequence, dispatching every yielded unit to its tag's pool, and shuts
// down every pool it created once the sequence ends (spec.md §4.3).
//
// Dispatch itself never blocks the iteration loop — each submission
// runs on its own goroutine — so an overloaded tag's pool filling up
// cannot stall dispatch to another tag's pool (spec.md §4.3's rationale
// for per-tag isolation would otherwise be defeated by a synchronous,
// blocking submit).
//
// Run returns the scheduler's structural error if the registered graph
// turned out to be cyclic (mirroring taskforge's executor.py, which
// never catches the SchedulingException ready_tasks raises); otherwise
// ctx.Err() if ctx was canceled before the graph drained, otherwise
// nil. A failed unit never makes Run itself return an error (spec.md §7
// policy).
func (e *Executor) Run(ctx context.Context) error {
	var submitWG sync.WaitGroup

	for u := range e.scheduler.Ready(ctx) {
		p := e.poolFor(u.Tag())
		base, ok := asBaseUnit(u)
		if !ok {
			e.logger.Error("unit does not embed *BaseUnit; skipping dispatch")
			continue
		}
		submitWG.Add(1)
		go func(u Unit, base *BaseUnit, p *pool) {
			defer submitWG.Done()
			p.submit(func() {
				base.RunOnce(ctx, u)
			})
		}(u, base, p)
	}

	// Every submission must have handed its job to a pool before we
	// shut those pools down, or shutdown could close a pool's channel
	// while a submit is still in flight for it.
	submitWG.Wait()

	e.Shutdown(true)

	if err := e.scheduler.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// poolFor returns the pool for tag, creating it if this is the first
// unit seen for that tag.
func (e *Executor) poolFor(tag string) *pool {
	if p, ok := e.pools[tag]; ok {
		return p
	}
	p := newPool(e.workersPerTag)
	e.pools[tag] = p
	e.logger.Debug("created worker pool", zap.String("tag", tag), zap.Int("workers", e.workersPerTag))
	return p
}

// Shutdown shuts down every pool the Executor has created so far, in
// map-iteration (unspecified) order, per spec.md §4.3. Safe to call
// more than once, but only from the same goroutine that calls Run (or
// after Run has returned) — pools is unsynchronized, per the Executor
// field comment.
func (e *Executor) Shutdown(wait bool) {
	for tag, p := range e.pools {
		e.logger.Debug("shutting down worker pool", zap.String("tag", tag))
		p.shutdown(wait)
	}
}
