// Package auth implements channel-identity based RBAC: users are
// identified by a (channel_type, platform_id) binding, not by
// credentials presented at request time.
package auth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Role is a totally-ordered lattice: Viewer < User < Admin < Owner.
type Role int

const (
	Viewer Role = iota
	User
	Admin
	Owner
)

func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case User:
		return "user"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return "user"
	}
}

// RoleFromString lowercases s and matches "owner"/"admin"/"viewer";
// anything else (including "user" itself, typos, or empty string)
// defaults to User. An unrecognized role string is not an error —
// config authors get a safe default rather than a boot failure.
func RoleFromString(s string) Role {
	switch strings.ToLower(s) {
	case "owner":
		return Owner
	case "admin":
		return Admin
	case "viewer":
		return Viewer
	default:
		return User
	}
}

// Action is an operation gated by a minimum role.
type Action int

const (
	ChatWithAgent Action = iota
	ViewConfig
	ViewUsage
	SpawnAgent
	KillAgent
	InstallSkill
	ModifyConfig
	ManageUsers
)

// RequiredRole returns the minimum role needed to perform a.
func (a Action) RequiredRole() Role {
	switch a {
	case ChatWithAgent, ViewConfig:
		return User
	case ViewUsage, SpawnAgent, KillAgent, InstallSkill:
		return Admin
	case ModifyConfig, ManageUsers:
		return Owner
	default:
		return Owner
	}
}

func (a Action) String() string {
	switch a {
	case ChatWithAgent:
		return "ChatWithAgent"
	case ViewConfig:
		return "ViewConfig"
	case ViewUsage:
		return "ViewUsage"
	case SpawnAgent:
		return "SpawnAgent"
	case KillAgent:
		return "KillAgent"
	case InstallSkill:
		return "InstallSkill"
	case ModifyConfig:
		return "ModifyConfig"
	case ManageUsers:
		return "ManageUsers"
	default:
		return "Unknown"
	}
}

// UserID is an opaque stable identifier for a configured user.
type UserID string

// Identity is a configured user's resolved record.
type Identity struct {
	ID   UserID
	Name string
	Role Role
}

// UserConfig is the shape read from the `[[users]]` config table (§6).
type UserConfig struct {
	Name            string
	Role            string
	ChannelBindings map[string]string // channel_type -> platform_id
	APIKeyHash      string
}

// Denied is returned by Authorize on refusal.
type Denied struct {
	Reason string
}

func (e *Denied) Error() string { return e.Reason }

// Manager resolves channel identities to users and gates actions by
// role. RBAC is disabled (every request allowed) when zero users are
// configured — by design, for single-user installs (spec §4.10).
type Manager struct {
	mu            sync.RWMutex
	users         map[UserID]Identity
	channelIndex  map[string]UserID // "{channel_type}:{platform_id}" -> UserID
}

// NewManager builds a Manager from the configured users, assigning a
// fresh UserID per entry and indexing every channel binding.
func NewManager(configs []UserConfig) *Manager {
	m := &Manager{
		users:        make(map[UserID]Identity, len(configs)),
		channelIndex: make(map[string]UserID),
	}
	for _, c := range configs {
		id := UserID(uuid.NewString())
		m.users[id] = Identity{ID: id, Name: c.Name, Role: RoleFromString(c.Role)}
		for channelType, platformID := range c.ChannelBindings {
			m.channelIndex[channelKey(channelType, platformID)] = id
		}
	}
	return m
}

func channelKey(channelType, platformID string) string {
	return fmt.Sprintf("%s:%s", channelType, platformID)
}

// IsEnabled reports whether RBAC is active (at least one user
// configured).
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users) > 0
}

// Identify resolves a channel identity to a UserID.
func (m *Manager) Identify(channelType, platformID string) (UserID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.channelIndex[channelKey(channelType, platformID)]
	return id, ok
}

// Authorize checks whether userID may perform action. When RBAC is
// disabled (no users configured) every action is allowed.
func (m *Manager) Authorize(userID UserID, action Action) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.users) == 0 {
		return nil
	}
	identity, ok := m.users[userID]
	if !ok {
		return &Denied{Reason: "unknown user"}
	}
	required := action.RequiredRole()
	if identity.Role < required {
		return &Denied{Reason: fmt.Sprintf("action %s requires role %s or higher, user %s has role %s", action, required, identity.Name, identity.Role)}
	}
	return nil
}

func (m *Manager) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *Manager) ListUsers() []Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Identity, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out
}
