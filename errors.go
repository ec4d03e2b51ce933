package taskgraph

import (
	"fmt"

	"github.com/pkg/errors"
)

// SchedulingError reports a structural problem with the dependency
// graph: duplicate registration or a cycle. A prerequisite that is never
// registered is reported as a cycle, since cycle detection cannot tell
// the two apart. Schedule returns it for a duplicate; a cycle is recorded
// by the first use of Ready and returned by Scheduler.Err (spec.md §7.1).
type SchedulingError struct {
	msg   string
	cause error
}

func (e *SchedulingError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *SchedulingError) Unwrap() error { return e.cause }

func newSchedulingError(msg string) error {
	return &SchedulingError{msg: msg}
}

func wrapSchedulingError(msg string, cause error) error {
	return &SchedulingError{msg: msg, cause: errors.Wrap(cause, msg)}
}

// ExecutionError wraps a unit failure with the identity of the unit and
// tag it ran under. The engine never propagates a unit's Perform error
// up through Executor.Run (spec.md §7 policy: one failed unit does not
// abort the run) — ExecutionError exists purely as an observable,
// structured view of Unit.Err() for callers that want one.
type ExecutionError struct {
	UnitID string
	Tag    string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("unit %s (tag %s) failed: %v", e.UnitID, e.Tag, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
