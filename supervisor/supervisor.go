// Package supervisor owns the kernel's shutdown watch and panic /
// restart accounting.
package supervisor

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Health is a point-in-time snapshot.
type Health struct {
	IsShuttingDown bool
	PanicCount     uint64
	RestartCount   uint64
}

// Supervisor tracks shutdown state and restart/panic counters. The
// shutdown flag is monotonic: once set, Shutdown is idempotent and
// IsShuttingDown never reverts to false.
type Supervisor struct {
	shuttingDown atomic.Bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	panicCount   atomic.Uint64
	restartCount atomic.Uint64

	mu             sync.Mutex
	agentRestarts  map[string]uint32
}

// New constructs a running Supervisor.
func New() *Supervisor {
	return &Supervisor{
		shutdownCh:    make(chan struct{}),
		agentRestarts: make(map[string]uint32),
	}
}

// Shutdown flips the shutdown flag and wakes every subscriber of Done.
// Safe to call more than once.
func (s *Supervisor) Shutdown() {
	s.shuttingDown.Store(true)
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Done returns a channel closed once Shutdown has been called — the
// watch every long-running task polls at its natural suspension
// points.
func (s *Supervisor) Done() <-chan struct{} { return s.shutdownCh }

func (s *Supervisor) IsShuttingDown() bool { return s.shuttingDown.Load() }

// RecordPanic increments the panic counter. Called at every task
// boundary that recovers from a panic.
func (s *Supervisor) RecordPanic() {
	s.panicCount.Add(1)
}

// RecordRestart increments the total restart counter.
func (s *Supervisor) RecordRestart() {
	s.restartCount.Add(1)
}

// RestartDenied is returned by RecordAgentRestart when an agent has
// exhausted its restart budget.
type RestartDenied struct {
	AgentID string
	Count   uint32
	Max     uint32
}

func (e *RestartDenied) Error() string {
	return fmt.Sprintf("agent %s exceeded restart budget: %d > max %d", e.AgentID, e.Count, e.Max)
}

// RecordAgentRestart increments agentID's restart count and the
// global restart count. If max > 0 and the new count exceeds max, it
// returns *RestartDenied (the caller should escalate the agent to
// Crashed+Terminated); max == 0 means unlimited restarts.
func (s *Supervisor) RecordAgentRestart(agentID string, max uint32) (uint32, error) {
	s.mu.Lock()
	s.agentRestarts[agentID]++
	count := s.agentRestarts[agentID]
	s.mu.Unlock()

	s.RecordRestart()

	if max > 0 && count > max {
		return count, &RestartDenied{AgentID: agentID, Count: count, Max: max}
	}
	return count, nil
}

// ResetAgentRestarts zeros agentID's restart counter (manual
// intervention).
func (s *Supervisor) ResetAgentRestarts(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agentRestarts, agentID)
}

func (s *Supervisor) AgentRestartCount(agentID string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentRestarts[agentID]
}

func (s *Supervisor) HealthSnapshot() Health {
	return Health{
		IsShuttingDown: s.IsShuttingDown(),
		PanicCount:     s.panicCount.Load(),
		RestartCount:   s.restartCount.Load(),
	}
}
