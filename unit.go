package taskgraph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a Unit.
//
// A Unit moves monotonically toward a terminal state:
//
//	PENDING -> SCHEDULED -> RUNNING -> COMPLETED | FAILED
//	PENDING -> SCHEDULED -> CANCELED
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether s is one of COMPLETED, FAILED, or CANCELED.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Unit is the polymorphism point a caller implements to supply work to
// the engine. Perform carries out the work; Tag picks the worker pool
// the Executor dispatches the unit to; Prerequisites declares the units
// that must reach a terminal state before this one is eligible to run.
//
// The Scheduler never calls Perform directly; it only ever sees
// RunOnce, installed on the embedded *BaseUnit.
type Unit interface {
	ID() string
	Tag() string
	Prerequisites() []Unit
	Perform(ctx context.Context) (any, error)
}

// Hooks are the three scheduler-installed callbacks fired on a unit's
// terminal transition. They are set exactly once, during
// Scheduler.Schedule, and never by user code.
type Hooks struct {
	OnCompleted func(Unit)
	OnFailed    func(Unit)
	OnCanceled  func(Unit)
}

// BaseUnit is an embeddable struct giving a concrete user Unit its
// identity, status, result, and cancellation plumbing. A user type
// embeds *BaseUnit and supplies Perform (and, optionally, overrides Tag
// and Prerequisites):
//
//	type PrintUnit struct {
//	    *taskgraph.BaseUnit
//	    Message string
//	}
//
//	func (u *PrintUnit) Perform(ctx context.Context) (any, error) {
//	    fmt.Println(u.Message)
//	    return u.Message, nil
//	}
type BaseUnit struct {
	id              string
	tag             string
	prerequisites   []Unit
	cancelRequested atomic.Bool

	mu     sync.Mutex
	status Status
	result any
	err    error
	hooks  Hooks

	logger *zap.Logger
}

// NewBaseUnit constructs a BaseUnit. id may be empty, in which case a
// random UUID is assigned (taskforge's task_id behavior, task.py
// __init__). tag defaults to "default" when empty, matching spec.md's
// Unit.tag().
func NewBaseUnit(id string, tag string, prerequisites []Unit) *BaseUnit {
	if id == "" {
		id = uuid.NewString()
	}
	if tag == "" {
		tag = "default"
	}
	return &BaseUnit{
		id:            id,
		tag:           tag,
		prerequisites: prerequisites,
		status:        StatusPending,
		logger:        zap.NewNop(),
	}
}

// SetLogger installs a logger used for lifecycle tracing. Scheduler.Schedule
// calls this with its own logger so unit-level logs share the run's
// sink; callers rarely need to call it directly.
func (b *BaseUnit) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// base satisfies the unexported baser interface Scheduler uses to reach
// into a concrete Unit's embedded *BaseUnit regardless of what the
// user's outer type looks like.
func (b *BaseUnit) base() *BaseUnit { return b }

func (b *BaseUnit) ID() string { return b.id }

func (b *BaseUnit) Tag() string { return b.tag }

func (b *BaseUnit) Prerequisites() []Unit {
	out := make([]Unit, len(b.prerequisites))
	copy(out, b.prerequisites)
	return out
}

// SetPrerequisites replaces the prerequisite list. It exists for
// loaders (graphyaml.go) that build a name-addressable graph in two
// passes — construct every node, then resolve each node's named
// dependencies into Unit references — and must not be called once the
// unit has been passed to Scheduler.Schedule.
func (b *BaseUnit) SetPrerequisites(prerequisites []Unit) {
	b.prerequisites = prerequisites
}

// Status returns the unit's current lifecycle state.
func (b *BaseUnit) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Result returns the value Perform returned on success, or nil.
func (b *BaseUnit) Result() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Err returns the error Perform raised on failure, or nil.
func (b *BaseUnit) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// RequestCancel sets the cancel flag. Idempotent; safe to call from any
// goroutine at any time. Does not interrupt a Perform already running;
// it only prevents one that has not yet started (spec.md §4.1).
func (b *BaseUnit) RequestCancel() {
	b.cancelRequested.Store(true)
}

// installHooks is called by Scheduler.Schedule exactly once per unit.
func (b *BaseUnit) installHooks(h Hooks) {
	b.mu.Lock()
	b.hooks = h
	b.mu.Unlock()
}

// markScheduled transitions PENDING -> SCHEDULED. Called by the
// Scheduler's ready iterator, never by a worker.
func (b *BaseUnit) markScheduled() {
	b.mu.Lock()
	b.status = StatusScheduled
	b.mu.Unlock()
}

// RunOnce is the driver a worker invokes. It never returns an error:
// failures are captured on the unit itself and observed through Err()
// and the failed hook (spec.md §4.1 "runOnce never itself fails").
//
// self is the concrete Unit RunOnce is embedded into; it is passed
// separately because Go has no way for BaseUnit to observe the
// subclass's overridden Perform/Tag through embedding alone.
func (b *BaseUnit) RunOnce(ctx context.Context, self Unit) {
	if b.cancelRequested.Load() {
		b.mu.Lock()
		b.status = StatusCanceled
		hook := b.hooks.OnCanceled
		b.mu.Unlock()
		b.logger.Debug("unit canceled before start", zap.String("unit", b.id))
		if hook != nil {
			hook(self)
		}
		return
	}

	b.mu.Lock()
	b.status = StatusRunning
	b.mu.Unlock()
	b.logger.Info("unit running", zap.String("unit", b.id), zap.String("tag", b.tag))

	result, err := b.invoke(ctx, self)

	b.mu.Lock()
	if err != nil {
		b.err = err
		b.status = StatusFailed
	} else {
		b.result = result
		b.status = StatusCompleted
	}
	hooks := b.hooks
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("unit failed", zap.String("unit", b.id), zap.Error(err))
		if hooks.OnFailed != nil {
			hooks.OnFailed(self)
		}
		return
	}
	b.logger.Info("unit completed", zap.String("unit", b.id))
	if hooks.OnCompleted != nil {
		hooks.OnCompleted(self)
	}
}

// invoke calls self.Perform, converting a panic into a FAILED result
// (spec.md §4.3: "defense in depth" — RunOnce must never let a user
// Perform escape as a crash).
func (b *BaseUnit) invoke(ctx context.Context, self Unit) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in unit %s: %v", b.id, r)
		}
	}()
	return self.Perform(ctx)
}

// String renders diagnostic detail about the unit: id, status, result
// or error, and prerequisite ids. Mirrors taskforge's Task.__repr__.
func (b *BaseUnit) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, len(b.prerequisites))
	for i, p := range b.prerequisites {
		ids[i] = p.ID()
	}
	var payload any = b.result
	if b.err != nil {
		payload = b.err
	}
	return fmt.Sprintf("Unit(id=%q, status=%q, result=%v, prerequisites=%v)", b.id, b.status, payload, ids)
}
