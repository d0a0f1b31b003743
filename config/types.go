// Package config provides the kernel's configuration types: the TOML
// schema loaded at boot, its validation/defaulting rules, and a
// fsnotify-backed watcher for the subset of tables safe to hot-reload.
package config

import "fmt"

// Config is the complete kernel configuration, the single entry point
// loaded from kernel.toml.
type Config struct {
	Version string `toml:"version,omitempty" mapstructure:"version"`
	Name    string `toml:"name,omitempty" mapstructure:"name"`

	Global      GlobalSettings           `toml:"global,omitempty" mapstructure:"global"`
	Security    SecurityConfig           `toml:"security,omitempty" mapstructure:"security"`
	Agents      map[string]AgentConfig   `toml:"agents,omitempty" mapstructure:"agents"`
	Integration map[string]ServiceConfig `toml:"integration,omitempty" mapstructure:"integration"`
	RateLimit   RateLimitConfig          `toml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}
	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("security config validation failed: %w", err)
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent '%s' validation failed: %w", name, err)
		}
	}
	for name, svc := range c.Integration {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("integration service '%s' validation failed: %w", name, err)
		}
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit validation failed: %w", err)
	}
	return nil
}

func (c *Config) SetDefaults() {
	c.Global.SetDefaults()
	c.Security.SetDefaults()
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	for name := range c.Agents {
		a := c.Agents[name]
		a.SetDefaults()
		c.Agents[name] = a
	}
	if c.Integration == nil {
		c.Integration = make(map[string]ServiceConfig)
	}
	for name := range c.Integration {
		s := c.Integration[name]
		s.SetDefaults()
		c.Integration[name] = s
	}
	c.RateLimit.SetDefaults()
}

// ============================================================================
// GLOBAL SETTINGS (boot-only)
// ============================================================================

// GlobalSettings holds the process-wide settings that require a
// restart to change: home directory layout, logging sinks, and lane
// concurrency caps.
type GlobalSettings struct {
	Home         string        `toml:"home,omitempty" mapstructure:"home"`
	DefaultModel string        `toml:"default_model,omitempty" mapstructure:"default_model"`
	Logging      LoggingConfig `toml:"logging,omitempty" mapstructure:"logging"`
	Tracing      TracingConfig `toml:"tracing,omitempty" mapstructure:"tracing"`
	Lanes        LaneConfig    `toml:"lanes,omitempty" mapstructure:"lanes"`
}

func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config validation failed: %w", err)
	}
	return c.Lanes.Validate()
}

func (c *GlobalSettings) SetDefaults() {
	if c.Home == "" {
		c.Home = "~/.kernel"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-sonnet"
	}
	c.Logging.SetDefaults()
	c.Tracing.SetDefaults()
	c.Lanes.SetDefaults()
}

// LoggingConfig configures the slog-backed logger.
type LoggingConfig struct {
	Level  string `toml:"level,omitempty" mapstructure:"level"`   // debug|info|warn|error
	Format string `toml:"format,omitempty" mapstructure:"format"` // text|json
	Output string `toml:"output,omitempty" mapstructure:"output"` // stderr|stdout|path
}

func (c *LoggingConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Format)
	}
	return nil
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// TracingConfig configures OpenTelemetry span export for the agent
// runtime. Disabled by default, matching the teacher's own
// opt-in tracer wiring.
type TracingConfig struct {
	Enabled      bool    `toml:"enabled,omitempty" mapstructure:"enabled"`
	EndpointURL  string  `toml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	SamplingRate float64 `toml:"sampling_rate,omitempty" mapstructure:"sampling_rate"`
	ServiceName  string  `toml:"service_name,omitempty" mapstructure:"service_name"`
}

func (c *TracingConfig) Validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling_rate must be between 0 and 1")
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "kernel"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
}

// LaneConfig sets the command lane capacities (spec §4.1).
type LaneConfig struct {
	Main     int64 `toml:"main,omitempty" mapstructure:"main"`
	Cron     int64 `toml:"cron,omitempty" mapstructure:"cron"`
	Subagent int64 `toml:"subagent,omitempty" mapstructure:"subagent"`
}

func (c *LaneConfig) Validate() error {
	if c.Main < 0 || c.Cron < 0 || c.Subagent < 0 {
		return fmt.Errorf("lane capacities must be non-negative")
	}
	return nil
}

func (c *LaneConfig) SetDefaults() {
	if c.Main == 0 {
		c.Main = 1
	}
	if c.Cron == 0 {
		c.Cron = 2
	}
	if c.Subagent == 0 {
		c.Subagent = 3
	}
}

// ============================================================================
// SECURITY (boot-only)
// ============================================================================

// SecurityConfig configures the capability/signing/audit/auth
// substrate. Changing the signing key path or audit sink requires a
// restart; the user table is boot-only too, since RBAC identity
// resolution is wired once at startup.
type SecurityConfig struct {
	SigningKeyPath string           `toml:"signing_key_path,omitempty" mapstructure:"signing_key_path"`
	Audit          AuditSinkConfig  `toml:"audit,omitempty" mapstructure:"audit"`
	Users          []UserConfigTOML `toml:"users,omitempty" mapstructure:"users"`
}

func (c *SecurityConfig) Validate() error { return c.Audit.Validate() }

func (c *SecurityConfig) SetDefaults() {
	if c.SigningKeyPath == "" {
		c.SigningKeyPath = "keys/signing.key"
	}
	c.Audit.SetDefaults()
}

// UserConfigTOML mirrors security/auth.UserConfig with TOML tags.
type UserConfigTOML struct {
	Name            string            `toml:"name" mapstructure:"name"`
	Role            string            `toml:"role,omitempty" mapstructure:"role"`
	ChannelBindings map[string]string `toml:"channel_bindings,omitempty" mapstructure:"channel_bindings"`
	APIKeyHash      string            `toml:"api_key_hash,omitempty" mapstructure:"api_key_hash"`
}

// AuditSinkConfig configures the optional SQL persistence sink for the
// audit log (security/audit.SQLSink).
type AuditSinkConfig struct {
	Driver string `toml:"driver,omitempty" mapstructure:"driver"` // "", postgres, mysql, sqlite
	DSN    string `toml:"dsn,omitempty" mapstructure:"dsn"`
}

func (c *AuditSinkConfig) Validate() error {
	switch c.Driver {
	case "", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported audit sink driver: %s", c.Driver)
	}
	if c.Driver != "" && c.DSN == "" {
		return fmt.Errorf("audit sink driver %q requires a dsn", c.Driver)
	}
	return nil
}

func (c *AuditSinkConfig) SetDefaults() {}

// ============================================================================
// AGENTS (boot-only: spawning re-reads the manifest table)
// ============================================================================

// AgentConfig is the TOML-facing mirror of agent.Manifest.
type AgentConfig struct {
	Description  string             `toml:"description,omitempty" mapstructure:"description"`
	Tags         []string           `toml:"tags,omitempty" mapstructure:"tags"`
	Tools        []string           `toml:"tools,omitempty" mapstructure:"tools"`
	Model        string             `toml:"model,omitempty" mapstructure:"model"`
	MaxRestarts  uint32             `toml:"max_restarts,omitempty" mapstructure:"max_restarts"`
	QuotaLimit   uint64             `toml:"quota_limit,omitempty" mapstructure:"quota_limit"`
	Capabilities []CapabilityConfig `toml:"capabilities,omitempty" mapstructure:"capabilities"`
}

func (c *AgentConfig) Validate() error {
	for _, cp := range c.Capabilities {
		if err := cp.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *AgentConfig) SetDefaults() {
	if c.MaxRestarts == 0 {
		c.MaxRestarts = 5
	}
}

// CapabilityConfig is the TOML-facing mirror of capability.Capability.
type CapabilityConfig struct {
	Kind    string `toml:"kind" mapstructure:"kind"`
	Pattern string `toml:"pattern,omitempty" mapstructure:"pattern"`
}

func (c *CapabilityConfig) Validate() error {
	switch c.Kind {
	case "tool_invoke", "net_connect", "file_read", "file_write", "shell_exec", "spawn_agent", "memory_access":
		return nil
	default:
		return fmt.Errorf("unknown capability kind: %s", c.Kind)
	}
}

// ============================================================================
// INTEGRATION (mutable: credentials/health params may hot-reload)
// ============================================================================

// ServiceConfig describes one external integration per spec §4.11/§4.12.
type ServiceConfig struct {
	Kind             string `toml:"kind" mapstructure:"kind"` // mcp_server | llm_provider | channel
	BaseURL          string `toml:"base_url,omitempty" mapstructure:"base_url"`
	CredentialEnvVar string `toml:"credential_env_var,omitempty" mapstructure:"credential_env_var"`
	HealthCheckPath  string `toml:"health_check_path,omitempty" mapstructure:"health_check_path"`
}

func (c *ServiceConfig) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("integration service kind is required")
	}
	return nil
}

func (c *ServiceConfig) SetDefaults() {
	if c.HealthCheckPath == "" {
		c.HealthCheckPath = "/healthz"
	}
}

// ============================================================================
// RATE LIMITING (mutable)
// ============================================================================

// RateLimitConfig configures the token-bucket rate limiter (spec §4.13).
type RateLimitConfig struct {
	RefillPerMinute int             `toml:"refill_per_minute,omitempty" mapstructure:"refill_per_minute"`
	Burst           int             `toml:"burst,omitempty" mapstructure:"burst"`
	DefaultCost     int             `toml:"default_cost,omitempty" mapstructure:"default_cost"`
	Rules           []RateLimitRule `toml:"rules,omitempty" mapstructure:"rules"`
}

// RateLimitRule assigns a cost to actions matching Pattern (trailing-*
// glob, same semantics as capability matching).
type RateLimitRule struct {
	Pattern string `toml:"pattern" mapstructure:"pattern"`
	Cost    int    `toml:"cost" mapstructure:"cost"`
}

func (c *RateLimitConfig) Validate() error {
	if c.DefaultCost < 0 {
		return fmt.Errorf("default_cost must be non-negative")
	}
	if c.RefillPerMinute < 0 {
		return fmt.Errorf("refill_per_minute must be non-negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must be non-negative")
	}
	for _, r := range c.Rules {
		if r.Cost < 0 {
			return fmt.Errorf("rule %q: cost must be non-negative", r.Pattern)
		}
	}
	return nil
}

// SetDefaults applies spec §4.13's default refill of 500 tokens/minute
// per key, with burst capacity equal to one minute's refill.
func (c *RateLimitConfig) SetDefaults() {
	if c.DefaultCost == 0 {
		c.DefaultCost = 5
	}
	if c.RefillPerMinute == 0 {
		c.RefillPerMinute = 500
	}
	if c.Burst == 0 {
		c.Burst = c.RefillPerMinute
	}
}
