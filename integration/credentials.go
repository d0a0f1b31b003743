package integration

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// CredentialSource is one link in the resolution chain.
type CredentialSource interface {
	Resolve(key string) (string, bool)
}

// ConsulSource resolves secrets from a Consul KV store, used when an
// installation shares secrets across nodes rather than keeping a
// purely local vault: keys are looked up under a configurable prefix
// ("kernel/secrets/" when none is given).
type ConsulSource struct {
	client *consulapi.Client
	prefix string
}

// NewConsulSource connects to the Consul agent at addr. A connection
// failure is not fatal here — Resolve simply reports not-found and the
// chain falls through to the next source.
func NewConsulSource(addr, prefix string) (*ConsulSource, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build consul client: %w", err)
	}
	if prefix == "" {
		prefix = "kernel/secrets/"
	}
	return &ConsulSource{client: client, prefix: prefix}, nil
}

func (v *ConsulSource) Resolve(key string) (string, bool) {
	pair, _, err := v.client.KV().Get(v.prefix+key, nil)
	if err != nil || pair == nil {
		return "", false
	}
	return string(pair.Value), true
}

// DotenvSource resolves from a parsed .env file.
type DotenvSource struct {
	values map[string]string
}

// NewDotenvSource loads path (".env" by convention); a missing file is
// not an error, it just yields an empty source.
func NewDotenvSource(path string) (*DotenvSource, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &DotenvSource{values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &DotenvSource{values: values}, nil
}

func (d *DotenvSource) Resolve(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// EnvSource resolves from the process environment.
type EnvSource struct{}

func (EnvSource) Resolve(key string) (string, bool) { return os.LookupEnv(key) }

// InteractiveSource prompts on the controlling terminal without
// echoing input, the last resort in the chain.
type InteractiveSource struct {
	prompt func(key string) (string, error)
}

// NewInteractiveSource builds a prompt that writes the key label to
// stderr and reads the value from stdin.
func NewInteractiveSource() *InteractiveSource {
	return &InteractiveSource{prompt: promptTerminal}
}

func promptTerminal(key string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", key)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *InteractiveSource) Resolve(key string) (string, bool) {
	val, err := s.prompt(key)
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

// Resolver chains sources in priority order: vault, dotenv, env,
// interactive (spec §4.12). The first source to report a value wins.
type Resolver struct {
	sources []CredentialSource
}

// NewResolver builds a chain from the given sources in priority order.
func NewResolver(sources ...CredentialSource) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve walks the chain, returning the first hit.
func (r *Resolver) Resolve(key string) (string, bool) {
	for _, s := range r.sources {
		if s == nil {
			continue
		}
		if v, ok := s.Resolve(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
