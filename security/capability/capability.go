// Package capability implements the kernel's capability manager: a
// grant table mapping agent identities to the operations they are
// authorized to perform.
package capability

import (
	"fmt"
	"strings"
	"sync"
)

// Kind tags the class of authority a Capability grants.
type Kind int

const (
	ToolInvoke Kind = iota
	NetConnect
	FileRead
	FileWrite
	ShellExec
	SpawnAgent
	MemoryAccess
)

func (k Kind) String() string {
	switch k {
	case ToolInvoke:
		return "ToolInvoke"
	case NetConnect:
		return "NetConnect"
	case FileRead:
		return "FileRead"
	case FileWrite:
		return "FileWrite"
	case ShellExec:
		return "ShellExec"
	case SpawnAgent:
		return "SpawnAgent"
	case MemoryAccess:
		return "MemoryAccess"
	default:
		return "Unknown"
	}
}

// Capability is a tagged variant: SpawnAgent carries no pattern, every
// other kind is parameterized by a string pattern matched with
// trailing-* glob semantics (or exact equality with no trailing *).
type Capability struct {
	Kind    Kind
	Pattern string
}

func (c Capability) String() string {
	if c.Kind == SpawnAgent {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Pattern)
}

// patternMatches implements the glob semantics spec'd for capability
// matching: a trailing "*" in the grant matches any suffix, otherwise
// the grant and the required pattern must be exactly equal.
func patternMatches(grantPattern, required string) bool {
	if strings.HasSuffix(grantPattern, "*") {
		prefix := strings.TrimSuffix(grantPattern, "*")
		return strings.HasPrefix(required, prefix)
	}
	return grantPattern == required
}

// Matches reports whether grant authorizes required: the Kind must
// match exactly, and (for parameterized kinds) the grant's pattern
// must glob-match the required pattern.
func Matches(grant, required Capability) bool {
	if grant.Kind != required.Kind {
		return false
	}
	if grant.Kind == SpawnAgent {
		return true
	}
	return patternMatches(grant.Pattern, required.Pattern)
}

// CheckResult is the outcome of a capability check.
type CheckResult struct {
	Granted bool
	Reason  string // populated when !Granted
}

// Manager is the capability grant table: AgentId -> ordered grant
// list. A single RWMutex guards the whole map; grant lists themselves
// are replaced wholesale on Grant, never mutated in place, so readers
// holding a List() result never observe a torn write.
type Manager struct {
	mu     sync.RWMutex
	grants map[string][]Capability
}

// NewManager constructs an empty capability manager.
func NewManager() *Manager {
	return &Manager{grants: make(map[string][]Capability)}
}

// Grant replaces the entire grant list for agentID.
func (m *Manager) Grant(agentID string, caps []Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Capability, len(caps))
	copy(cp, caps)
	m.grants[agentID] = cp
}

// Check returns Granted if required matches any capability granted to
// agentID, evaluated in grant order (first match wins, though all
// matches are equivalent since Kind+pattern-match is all that's
// checked). An agent with no grants registered is Denied.
func (m *Manager) Check(agentID string, required Capability) CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grants, ok := m.grants[agentID]
	if !ok {
		return CheckResult{Granted: false, Reason: fmt.Sprintf("no capabilities registered for agent %s", agentID)}
	}
	for _, g := range grants {
		if Matches(g, required) {
			return CheckResult{Granted: true}
		}
	}
	return CheckResult{Granted: false, Reason: fmt.Sprintf("agent %s lacks capability %s", agentID, required)}
}

// List returns the capabilities granted to agentID.
func (m *Manager) List(agentID string) []Capability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grants := m.grants[agentID]
	cp := make([]Capability, len(grants))
	copy(cp, grants)
	return cp
}

// RevokeAll removes every grant for agentID.
func (m *Manager) RevokeAll(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, agentID)
}
