// Package lane implements the kernel's command lane queue: bounded
// concurrency per work class, backed by an independent semaphore per
// lane, via golang.org/x/sync/semaphore.
package lane

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Lane names a concurrency class.
type Lane int

const (
	Main Lane = iota
	Cron
	Subagent
)

func (l Lane) String() string {
	switch l {
	case Main:
		return "main"
	case Cron:
		return "cron"
	case Subagent:
		return "subagent"
	default:
		return "unknown"
	}
}

// Occupancy is a point-in-time snapshot of one lane.
type Occupancy struct {
	Lane     Lane
	Active   int64
	Capacity int64
}

type laneSem struct {
	sem      *semaphore.Weighted
	capacity int64
}

// Queue holds three independently-capacitied lanes. Lanes never
// rebalance or steal permits from each other: work submitted to Main
// never affects Cron's or Subagent's available capacity.
type Queue struct {
	lanes  map[Lane]*laneSem
	closed atomic.Bool
}

// New constructs a Queue with the spec's default capacities: Main=1,
// Cron=2, Subagent=3.
func New() *Queue {
	return WithCapacities(1, 2, 3)
}

// WithCapacities constructs a Queue with explicit per-lane capacities.
func WithCapacities(mainCap, cronCap, subagentCap int64) *Queue {
	return &Queue{
		lanes: map[Lane]*laneSem{
			Main:     {sem: semaphore.NewWeighted(mainCap), capacity: mainCap},
			Cron:     {sem: semaphore.NewWeighted(cronCap), capacity: cronCap},
			Subagent: {sem: semaphore.NewWeighted(subagentCap), capacity: subagentCap},
		},
	}
}

// ErrLaneClosed is returned by Submit once the queue has been closed
// (post-shutdown); TrySubmit reports a closed queue as ok=false.
type ErrLaneClosed struct{ Lane Lane }

func (e *ErrLaneClosed) Error() string { return fmt.Sprintf("lane %s is closed", e.Lane) }

// Close marks the queue closed; subsequent Submit/TrySubmit calls
// fail immediately rather than acquiring a permit.
func (q *Queue) Close() { q.closed.Store(true) }

// Submit acquires a permit for lane, runs work while holding it, and
// releases the permit before returning. It blocks until a permit is
// available or ctx is done.
func Submit[T any](ctx context.Context, q *Queue, l Lane, work func(context.Context) (T, error)) (T, error) {
	var zero T
	if q.closed.Load() {
		return zero, &ErrLaneClosed{Lane: l}
	}
	ls := q.lanes[l]
	if err := ls.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer ls.sem.Release(1)
	return work(ctx)
}

// TrySubmit attempts to acquire a permit without blocking. ok is false
// if the lane was full (or closed).
func TrySubmit[T any](q *Queue, l Lane, work func() (T, error)) (result T, ok bool, err error) {
	if q.closed.Load() {
		return result, false, nil
	}
	ls := q.lanes[l]
	if !ls.sem.TryAcquire(1) {
		return result, false, nil
	}
	defer ls.sem.Release(1)
	result, err = work()
	return result, true, err
}

// Occupancy returns the current (active, capacity) snapshot for every
// lane. Active is computed from whether the semaphore currently has
// free weight, approximated here via a non-blocking probe-and-release.
func (q *Queue) Occupancy() []Occupancy {
	out := make([]Occupancy, 0, len(q.lanes))
	for _, l := range []Lane{Main, Cron, Subagent} {
		ls := q.lanes[l]
		active := ls.capacity - ls.availableEstimate()
		out = append(out, Occupancy{Lane: l, Active: active, Capacity: ls.capacity})
	}
	return out
}

// availableEstimate probes how much weight is currently acquirable
// without blocking. golang.org/x/sync/semaphore does not expose a
// direct "available" getter, so this drains every free unit with
// TryAcquire(1) and immediately releases them — correct for the
// common case of no concurrent acquire/release racing the probe
// itself, which is the only use (metrics/occupancy reporting, not
// scheduling decisions).
func (ls *laneSem) availableEstimate() int64 {
	var acquired int64
	for ls.sem.TryAcquire(1) {
		acquired++
	}
	if acquired > 0 {
		ls.sem.Release(acquired)
	}
	return acquired
}
