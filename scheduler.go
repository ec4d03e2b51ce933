package taskgraph

import (
	"context"
	"iter"
	"sync"

	"go.uber.org/zap"
)

// Scheduler holds the bidirectional dependency graph between registered
// units and exposes the blocking readiness sequence described in
// spec.md §4.2. It is the direct translation of taskforge's
// scheduler.py Scheduler class: deps/dependents maps plus a single
// mutex paired with a condition variable.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	units      map[string]Unit
	deps       map[string][]string // unit id -> prerequisite ids
	dependents map[string][]string // unit id -> dependent ids

	cycleChecked bool
	cycleErr     error

	logger *zap.Logger
}

// NewScheduler constructs a Scheduler, optionally pre-registering units
// (taskforge's Scheduler(tasks=None) constructor). A nil logger falls
// back to zap.NewNop().
func NewScheduler(logger *zap.Logger, units ...Unit) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		units:      make(map[string]Unit),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
		logger:     logger,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, u := range units {
		if err := s.Schedule(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Schedule registers a unit with the scheduler. It fails with a
// SchedulingError only if the unit is already registered. A prerequisite
// does not need to be registered yet — units may be scheduled in any
// order, exactly as taskforge's scheduler.py builds its dependency maps
// from whatever Task objects a Task.dependencies happens to reference,
// regardless of registration order. A prerequisite that is never
// scheduled at all leaves its dependent permanently unready: checkCycles
// cannot distinguish "missing node" from "true cycle" (the in-degree
// contributed by that prerequisite can never be decremented), so both
// surface identically as a SchedulingError from the first call to Ready.
func (s *Scheduler) Schedule(u Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := u.ID()
	if _, exists := s.units[id]; exists {
		return newSchedulingError("unit " + id + " is already registered")
	}

	prereqs := u.Prerequisites()
	prereqIDs := make([]string, 0, len(prereqs))
	for _, p := range prereqs {
		prereqIDs = append(prereqIDs, p.ID())
	}

	if base, ok := asBaseUnit(u); ok {
		base.SetLogger(s.logger)
		base.installHooks(Hooks{
			OnCompleted: s.onCompleted,
			OnFailed:    s.onFailed,
			OnCanceled:  s.onCanceled,
		})
	}

	s.units[id] = u
	s.deps[id] = prereqIDs
	if _, ok := s.dependents[id]; !ok {
		s.dependents[id] = nil
	}
	for _, pid := range prereqIDs {
		s.dependents[pid] = append(s.dependents[pid], id)
	}
	return nil
}

// asBaseUnit extracts the *BaseUnit a concrete Unit embeds, if any.
// Units that do not embed *BaseUnit (a hand-rolled Unit implementation)
// simply never receive hook installation or lifecycle transitions from
// RunOnce — that is the caller's responsibility in that case.
func asBaseUnit(u Unit) (*BaseUnit, bool) {
	type baser interface{ base() *BaseUnit }
	if b, ok := u.(baser); ok {
		return b.base(), true
	}
	return nil, false
}

func (s *Scheduler) onCompleted(u Unit) {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Scheduler) onFailed(u Unit) {
	s.mu.Lock()
	for _, depID := range s.dependents[u.ID()] {
		if dep, ok := s.units[depID]; ok {
			if b, ok := asBaseUnit(dep); ok {
				b.RequestCancel()
			}
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Scheduler) onCanceled(u Unit) {
	s.mu.Lock()
	for _, depID := range s.dependents[u.ID()] {
		if dep, ok := s.units[depID]; ok {
			if b, ok := asBaseUnit(dep); ok {
				b.RequestCancel()
			}
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Ready returns a blocking lazy sequence of units that have become
// ready: PENDING units whose every prerequisite is in a terminal state
// (spec.md §4.2). The sequence blocks the iterating goroutine when no
// unit is currently ready but some remain pending, and ends once no
// unit is PENDING.
//
// Per the resolved open question in SPEC_FULL.md, readiness does not
// require prerequisites to be COMPLETED — FAILED or CANCELED also
// count, so a dependent of a failed unit is yielded SCHEDULED and only
// becomes CANCELED once RunOnce observes its cancel flag.
//
// ctx, if canceled, unblocks a parked call and ends the sequence early
// without altering any unit's status.
//
// If the dependency graph contains a cycle, the sequence ends empty on
// its very first use, exactly as it does once every unit has drained —
// iter.Seq[Unit] has no room to carry an error of its own. Callers must
// check Err() after the sequence ends to tell the two apart, the same
// way Executor.Run does.
func (s *Scheduler) Ready(ctx context.Context) iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		if err := s.checkCycles(); err != nil {
			return
		}

		// A goroutine parked in cond.Wait() does not observe ctx.Done;
		// this watcher broadcasts once the context is canceled so the
		// wait loop below can re-check and exit.
		stopWatch := make(chan struct{})
		defer close(stopWatch)
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-stopWatch:
			}
		}()

		s.mu.Lock()
		defer s.mu.Unlock()
		for {
			if ctx.Err() != nil {
				return
			}
			if !s.hasPendingLocked() {
				return
			}

			ready := s.collectReadyLocked()
			if len(ready) == 0 {
				s.cond.Wait()
				continue
			}

			for _, u := range ready {
				if b, ok := asBaseUnit(u); ok {
					b.markScheduled()
				}
				s.mu.Unlock()
				cont := yield(u)
				s.mu.Lock()
				if !cont {
					return
				}
			}
		}
	}
}

func (s *Scheduler) hasPendingLocked() bool {
	for id := range s.units {
		if b, ok := asBaseUnit(s.units[id]); ok && b.Status() == StatusPending {
			return true
		}
	}
	return false
}

func (s *Scheduler) collectReadyLocked() []Unit {
	var ready []Unit
	for id, u := range s.units {
		b, ok := asBaseUnit(u)
		if !ok || b.Status() != StatusPending {
			continue
		}
		allTerminal := true
		for _, depID := range s.deps[id] {
			depUnit, ok := s.units[depID]
			if !ok {
				continue
			}
			depBase, ok := asBaseUnit(depUnit)
			if !ok || !depBase.Status().Terminal() {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			ready = append(ready, u)
		}
	}
	return ready
}

// Err reports the structural error found by the first call to Ready, if
// the registered graph contains a cycle (spec.md §4.2/§7: "the iterator
// fails with a Scheduling error on first use"). It returns nil before
// Ready has ever been called and nil for an acyclic graph. Mirrors
// taskforge's scheduler.py raising SchedulingException out of
// ready_tasks, which Go's iter.Seq[Unit] has no channel to carry itself.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleErr
}

// checkCycles runs Kahn's algorithm once, lazily, on the first call to
// Ready, and caches the result for subsequent calls (spec.md §4.2:
// "On first use it runs cycle detection").
func (s *Scheduler) checkCycles() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleChecked {
		return s.cycleErr
	}
	s.cycleChecked = true

	inDegree := make(map[string]int, len(s.units))
	for id, prereqs := range s.deps {
		inDegree[id] = len(prereqs)
	}

	queue := make([]string, 0, len(s.units))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, depID := range s.dependents[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if processed != len(s.units) {
		s.cycleErr = newSchedulingError("dependency graph contains circular dependencies")
	}
	return s.cycleErr
}
