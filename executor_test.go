package taskgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func taggedSleepUnit(id, tag string, d time.Duration) *funcUnit {
	return &funcUnit{
		BaseUnit: NewBaseUnit(id, tag, nil),
		fn: func(ctx context.Context) (any, error) {
			time.Sleep(d)
			return nil, nil
		},
	}
}

// TestExecutor_TagPartitioning_S3 is spec.md §8's S3: six 100ms units
// split across two tags, three workers per tag. Each tag's three units
// run concurrently, so the wall clock stays close to one sleep's
// duration rather than growing with the unit count.
func TestExecutor_TagPartitioning_S3(t *testing.T) {
	var units []Unit
	for i := 0; i < 3; i++ {
		units = append(units, taggedSleepUnit(string(rune('a'+i)), "alpha", 100*time.Millisecond))
	}
	for i := 0; i < 3; i++ {
		units = append(units, taggedSleepUnit(string(rune('x'+i)), "beta", 100*time.Millisecond))
	}

	sched, err := NewScheduler(zap.NewNop(), units...)
	require.NoError(t, err)

	exec := NewExecutor(sched, WithWorkersPerTag(3))

	start := time.Now()
	require.NoError(t, exec.Run(context.Background()))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond)
	for _, u := range units {
		assert.Equal(t, StatusCompleted, u.(*funcUnit).Status())
	}
}

// TestExecutor_BoundedConcurrency verifies a tag's pool never runs more
// than workersPerTag units simultaneously.
func TestExecutor_BoundedConcurrency(t *testing.T) {
	const workers = 2
	const unitCount = 8

	var current, max int32
	var mu sync.Mutex
	observe := func() {
		n := atomic.AddInt32(&current, 1)
		mu.Lock()
		if n > int32(max) {
			max = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	}

	var units []Unit
	for i := 0; i < unitCount; i++ {
		id := string(rune('a' + i))
		u := &funcUnit{
			BaseUnit: NewBaseUnit(id, "shared", nil),
			fn: func(ctx context.Context) (any, error) {
				observe()
				return nil, nil
			},
		}
		units = append(units, u)
	}

	sched, err := NewScheduler(zap.NewNop(), units...)
	require.NoError(t, err)

	exec := NewExecutor(sched, WithWorkersPerTag(workers))
	require.NoError(t, exec.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, int(max), workers)
	assert.EqualValues(t, workers, max, "pool should saturate to its configured size")
}

func TestExecutor_FailureDoesNotAbortRun(t *testing.T) {
	a := succeedUnit("a", nil)
	b := failUnit("b", nil)
	c := succeedUnit("c", nil)

	sched, err := NewScheduler(zap.NewNop(), a, b, c)
	require.NoError(t, err)

	exec := NewExecutor(sched)
	require.NoError(t, exec.Run(context.Background()))

	assert.Equal(t, StatusCompleted, a.Status())
	assert.Equal(t, StatusFailed, b.Status())
	assert.Equal(t, StatusCompleted, c.Status())
}

func TestExecutor_ContextCancellation(t *testing.T) {
	a := sleepUnit("a", nil, 50*time.Millisecond)
	b := succeedUnit("b", []Unit{a})

	sched, err := NewScheduler(zap.NewNop(), a, b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	exec := NewExecutor(sched)
	err = exec.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestExecutor_Run_CyclicGraph is spec.md §8's S5 observed through the
// executor: a cyclic graph must make Run itself return the scheduling
// error, not silently succeed having dispatched nothing.
func TestExecutor_Run_CyclicGraph(t *testing.T) {
	a := succeedUnit("a", nil)
	b := succeedUnit("b", []Unit{a})
	a.SetPrerequisites([]Unit{b})

	sched, err := NewScheduler(zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sched.Schedule(b))
	require.NoError(t, sched.Schedule(a))

	exec := NewExecutor(sched)
	err = exec.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependencies")
	var schedErr *SchedulingError
	assert.ErrorAs(t, err, &schedErr)
}

func TestExecutor_ShutdownIdempotent(t *testing.T) {
	a := succeedUnit("a", nil)
	sched, err := NewScheduler(zap.NewNop(), a)
	require.NoError(t, err)

	exec := NewExecutor(sched)
	require.NoError(t, exec.Run(context.Background()))

	assert.NotPanics(t, func() {
		exec.Shutdown(true)
		exec.Shutdown(true)
	})
}
