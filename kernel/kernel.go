// Package kernel wires every substrate (security, bus, supervisor,
// lanes, integration) into the bootable, embeddable daemon: spawn,
// kill, list, find, and message agents.
package kernel

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgebound/kernel/agent"
	"github.com/forgebound/kernel/bus"
	"github.com/forgebound/kernel/config"
	"github.com/forgebound/kernel/integration"
	"github.com/forgebound/kernel/kernelerr"
	"github.com/forgebound/kernel/lane"
	"github.com/forgebound/kernel/logger"
	"github.com/forgebound/kernel/registry"
	"github.com/forgebound/kernel/security/audit"
	"github.com/forgebound/kernel/security/auth"
	"github.com/forgebound/kernel/security/capability"
	"github.com/forgebound/kernel/security/signing"
	"github.com/forgebound/kernel/supervisor"
)

// AgentHandle is everything the kernel tracks about one spawned agent.
type AgentHandle struct {
	ID       string
	Runtime  *agent.Runtime
	Manifest signing.SignedManifest
}

func (h *AgentHandle) Name() string { return h.Runtime.Manifest.Name }

// Kernel is the composed runtime: one process, many agents.
type Kernel struct {
	Config *config.Config
	Logger *slog.Logger

	Bus        *bus.Bus
	Supervisor *supervisor.Supervisor
	Lanes      *lane.Queue
	Caps       *capability.Manager
	Audit      *audit.Log
	Auth       *auth.Manager

	agents registry.Registry[*AgentHandle]

	// Drivers/Tools/Memory are the caller-supplied collaborators
	// spawned agents bind to; the kernel itself never speaks an LLM
	// wire protocol or sandboxes tool execution (see agent.Runtime's
	// LLMDriver/ToolExecutor boundary interfaces).
	Drivers map[string]agent.LLMDriver
	Tools   agent.ToolExecutor

	Metrics   *Metrics
	Health    *integration.Monitor
	RateLimit *integration.Limiter

	mu sync.RWMutex
}

// Boot instantiates every singleton from a loaded configuration, in
// dependency order: logging, security substrate, event bus,
// supervisor, lane queue, then an empty agent registry.
func Boot(cfg *config.Config) (*Kernel, error) {
	lvl := logger.ParseLevel(cfg.Global.Logging.Level)
	out, err := resolveLogOutput(cfg.Global.Logging.Output)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Config, err, "failed to open log output")
	}
	logger.Init(lvl, out, cfg.Global.Logging.Format)
	log := logger.Get()

	var auditOpts []audit.Option
	if cfg.Security.Audit.Driver != "" {
		db, dialect, err := openAuditDB(cfg.Security.Audit)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.Config, err, "failed to open audit sink")
		}
		sink, err := audit.NewSQLSink(db, dialect)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.Config, err, "failed to initialize audit sink")
		}
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}

	userConfigs := make([]auth.UserConfig, 0, len(cfg.Security.Users))
	for _, u := range cfg.Security.Users {
		userConfigs = append(userConfigs, auth.UserConfig{
			Name: u.Name, Role: u.Role, ChannelBindings: u.ChannelBindings, APIKeyHash: u.APIKeyHash,
		})
	}

	k := &Kernel{
		Config:     cfg,
		Logger:     log,
		Bus:        bus.New(),
		Supervisor: supervisor.New(),
		Lanes:      lane.WithCapacities(cfg.Global.Lanes.Main, cfg.Global.Lanes.Cron, cfg.Global.Lanes.Subagent),
		Caps:       capability.NewManager(),
		Audit:      audit.NewLog(auditOpts...),
		Auth:       auth.NewManager(userConfigs),
		agents:     registry.NewBaseRegistry[*AgentHandle](),
		Drivers:    make(map[string]agent.LLMDriver),
	}
	k.Metrics = NewMetrics(prometheus.DefaultRegisterer)
	k.Health = integration.NewMonitor()
	registerHealthCheckers(k.Health, cfg.Integration)
	k.RateLimit = rateLimiterFromConfig(cfg.RateLimit)
	return k, nil
}

func registerHealthCheckers(mon *integration.Monitor, services map[string]config.ServiceConfig) {
	for name, svc := range services {
		mon.Register(name, integration.HTTPChecker(svc.BaseURL+svc.HealthCheckPath))
	}
}

func rateLimiterFromConfig(cfg config.RateLimitConfig) *integration.Limiter {
	rules := make([]integration.CostRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, integration.CostRule{Pattern: r.Pattern, Cost: r.Cost})
	}
	rps := float64(cfg.RefillPerMinute) / 60.0
	return integration.NewLimiter(rps, cfg.Burst, integration.CostTable{Rules: rules, DefaultCost: cfg.DefaultCost})
}

// CheckIntegrations runs a one-shot health check against every
// configured integration and mirrors the result into the Prometheus
// integration_health gauge. Used by the doctor CLI command; Boot does
// not call it.
func (k *Kernel) CheckIntegrations(ctx context.Context) []integration.Record {
	var records []integration.Record
	for name := range k.Config.Integration {
		rec := k.Health.CheckOnce(ctx, name)
		k.Metrics.ObserveHealth(name, rec.Status)
		records = append(records, rec)
	}
	return records
}

// ApplyMutableConfig re-registers the health monitor's checkers and
// rebuilds the rate limiter from the integration/rate_limit tables of
// a hot-reloaded config, without touching anything boot-only. Intended
// as the onApply callback for a config.Watcher; see config/watch.go's
// MutableTable for which tables this covers.
func (k *Kernel) ApplyMutableConfig(cfg *config.Config) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Config.Integration = cfg.Integration
	k.Config.RateLimit = cfg.RateLimit
	k.Health = integration.NewMonitor()
	registerHealthCheckers(k.Health, cfg.Integration)
	k.RateLimit = rateLimiterFromConfig(cfg.RateLimit)
}

// capabilitiesFromConfig translates TOML-facing capability entries
// into the capability package's Kind-tagged form.
func capabilitiesFromConfig(entries []config.CapabilityConfig) []capability.Capability {
	out := make([]capability.Capability, 0, len(entries))
	for _, e := range entries {
		var kind capability.Kind
		switch e.Kind {
		case "tool_invoke":
			kind = capability.ToolInvoke
		case "net_connect":
			kind = capability.NetConnect
		case "file_read":
			kind = capability.FileRead
		case "file_write":
			kind = capability.FileWrite
		case "shell_exec":
			kind = capability.ShellExec
		case "spawn_agent":
			kind = capability.SpawnAgent
		case "memory_access":
			kind = capability.MemoryAccess
		default:
			continue
		}
		out = append(out, capability.Capability{Kind: kind, Pattern: e.Pattern})
	}
	return out
}

func resolveLogOutput(output string) (*os.File, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		file, _, err := logger.OpenLogFile(output)
		return file, err
	}
}

// Shutdown begins graceful shutdown: the supervisor's Done channel
// closes so any component select-ing on it unwinds, and the lane
// queue stops accepting new submissions.
func (k *Kernel) Shutdown() {
	k.Supervisor.Shutdown()
	k.Lanes.Close()
}

// SpawnAgent verifies manifest's signature, registers its
// capabilities, builds a runtime, and emits a spawn lifecycle event.
func (k *Kernel) SpawnAgent(ctx context.Context, id string, manifest signing.SignedManifest, caps []capability.Capability) (*AgentHandle, error) {
	if err := signing.Verify(manifest); err != nil {
		k.Audit.Record(id, audit.AgentSpawn, manifest.SignerID, "signature_rejected")
		return nil, kernelerr.Wrap(kernelerr.ManifestParse, err, "manifest signature verification failed")
	}

	k.mu.Lock()
	if _, exists := k.agents.Get(id); exists {
		k.mu.Unlock()
		return nil, kernelerr.New(kernelerr.AgentAlreadyExists, id)
	}
	k.mu.Unlock()

	agentCfg, _ := k.Config.GetAgent(id)
	m := agent.Manifest{Name: id, Tools: nil}
	if agentCfg != nil {
		m.Description = agentCfg.Description
		m.Tags = agentCfg.Tags
		m.Tools = agentCfg.Tools
		m.Model = agentCfg.Model
		m.MaxRestarts = agentCfg.MaxRestarts
		caps = append(caps, capabilitiesFromConfig(agentCfg.Capabilities)...)
	}

	k.Caps.Grant(id, caps)

	rt := agent.NewRuntime(id, m)
	rt.Caps = k.Caps
	rt.Audit = k.Audit
	rt.Hooks = agent.NewHookRegistry(k.Logger)
	rt.Bus = k.Bus
	rt.Lanes = k.Lanes
	rt.Logger = k.Logger
	if m.Model != "" {
		rt.Driver = k.Drivers[m.Model]
	}
	rt.Tools = k.Tools
	rt.OnRetry = func(kind string, attempt uint32) {
		k.Metrics.RetryAttempts.WithLabelValues(kind).Inc()
	}

	handle := &AgentHandle{ID: id, Runtime: rt, Manifest: manifest}
	k.agents.Register(id, handle)

	k.Audit.Record(id, audit.AgentSpawn, m.Name, "ok")
	k.Bus.Publish("kernel", bus.AgentTarget(id), bus.PayloadLifecycle, "spawned")
	k.observeMetrics()
	return handle, nil
}

// observeMetrics snapshots lane occupancy, audit chain length, and bus
// history size into the registered Prometheus collectors.
func (k *Kernel) observeMetrics() {
	if k.Metrics == nil {
		return
	}
	k.Metrics.ObserveLanes(k.Lanes.Occupancy())
	k.Metrics.AuditChainLen.Set(float64(k.Audit.Len()))
	k.Metrics.BusHistorySize.Set(float64(k.Bus.HistoryLen()))
}

// KillAgent transitions an agent to Terminated, revokes its
// capabilities, and unsubscribes it from the event bus.
func (k *Kernel) KillAgent(id string) error {
	handle, ok := k.agents.Get(id)
	if !ok {
		return kernelerr.New(kernelerr.AgentNotFound, id)
	}
	handle.Runtime.Terminate()
	k.Caps.RevokeAll(id)
	k.Bus.UnsubscribeAgent(id)
	k.agents.Remove(id)
	k.Audit.Record(id, audit.AgentKill, "", "ok")
	k.Bus.Publish("kernel", bus.BroadcastTarget(), bus.PayloadLifecycle, "terminated:"+id)
	k.observeMetrics()
	return nil
}

// AgentInfo is the read-only projection List/Find return.
type AgentInfo struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	State       agent.State
}

func (k *Kernel) infoFor(h *AgentHandle) AgentInfo {
	return AgentInfo{
		ID:          h.ID,
		Name:        h.Runtime.Manifest.Name,
		Description: h.Runtime.Manifest.Description,
		Tags:        h.Runtime.Manifest.Tags,
		State:       h.Runtime.State(),
	}
}

// List returns every currently-registered agent.
func (k *Kernel) List() []AgentInfo {
	handles := k.agents.List()
	out := make([]AgentInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, k.infoFor(h))
	}
	return out
}

// Find does a case-insensitive substring match over name,
// description, and tags.
func (k *Kernel) Find(query string) []AgentInfo {
	q := strings.ToLower(query)
	var out []AgentInfo
	for _, h := range k.agents.List() {
		info := k.infoFor(h)
		if strings.Contains(strings.ToLower(info.Name), q) ||
			strings.Contains(strings.ToLower(info.Description), q) ||
			tagsMatch(info.Tags, q) {
			out = append(out, info)
		}
	}
	return out
}

func tagsMatch(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// SendToAgent enqueues input on the Main lane and awaits the agent's
// response.
func (k *Kernel) SendToAgent(ctx context.Context, id, text string) (agent.TurnResult, error) {
	handle, ok := k.agents.Get(id)
	if !ok {
		return agent.TurnResult{}, kernelerr.New(kernelerr.AgentNotFound, id)
	}
	return lane.Submit(ctx, k.Lanes, lane.Main, func(ctx context.Context) (agent.TurnResult, error) {
		return handle.Runtime.ExecuteTurn(ctx, text, nil)
	})
}

// GetAgent looks up a handle by ID.
func (k *Kernel) GetAgent(id string) (*AgentHandle, bool) { return k.agents.Get(id) }
