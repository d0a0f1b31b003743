// Package config: loading. kernel.toml is parsed with go-toml/v2 into
// a generic map, environment-variable expanded, then decoded into
// Config with mapstructure. A value that cannot be converted to its
// field's type fails the load; a key with no matching field is
// ignored.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the kernel configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return LoadFromBytes(raw)
}

// LoadFromBytes parses TOML content directly, without reading a file.
func LoadFromBytes(raw []byte) (*Config, error) {
	var generic map[string]interface{}
	if err := toml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse toml: %w", err)
	}

	expanded := ExpandEnvVarsInData(generic)

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// GetAgent returns an agent's configuration by name.
func (c *Config) GetAgent(name string) (*AgentConfig, bool) {
	a, ok := c.Agents[name]
	return &a, ok
}

// ListAgents returns every configured agent name.
func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}
