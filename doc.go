// Package taskgraph is a dependency-aware task execution engine. Units
// of work declare prerequisites; a Scheduler derives readiness from the
// resulting graph and enforces cascade semantics on failure or
// cancellation; an Executor drives the scheduler against a set of
// bounded, tag-partitioned worker pools so independent resource domains
// (I/O-bound vs CPU-bound, say) never contend for the same goroutines.
//
// # Core concepts
//
//   - Unit: a single piece of user-supplied work with an id, a tag, a
//     set of prerequisite units, and a Perform method. Implement Unit by
//     embedding *BaseUnit and supplying Perform:
//
//     type ShellUnit struct {
//     *taskgraph.BaseUnit
//     Command string
//     }
//
//     func (u *ShellUnit) Perform(ctx context.Context) (any, error) {
//     return exec.CommandContext(ctx, "sh", "-c", u.Command).CombinedOutput()
//     }
//
//   - Scheduler: holds the dependency graph and exposes Ready, a
//     blocking sequence of units that have become eligible to run.
//
//   - Executor: pulls ready units off a Scheduler and dispatches them to
//     per-tag worker pools.
//
// # Minimal usage
//
//	sched, _ := taskgraph.NewScheduler(logger)
//	a := &ShellUnit{BaseUnit: taskgraph.NewBaseUnit("a", "default", nil), Command: "true"}
//	b := &ShellUnit{BaseUnit: taskgraph.NewBaseUnit("b", "default", []taskgraph.Unit{a}), Command: "true"}
//	sched.Schedule(a)
//	sched.Schedule(b)
//	exec := taskgraph.NewExecutor(sched, taskgraph.WithWorkersPerTag(4))
//	if err := exec.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Declarative graphs
//
// The graphyaml.go file loads a dependency graph of shell-command units
// from YAML; see LoadGraphFromYAML and the cmd/taskgraph CLI.
//
// # Non-goals
//
// No persistence of graph or results, no distributed execution, no
// priority scheduling beyond readiness order, no dynamic re-planning
// once Ready has been called once, no per-unit timeouts enforced by the
// engine itself.
package taskgraph
