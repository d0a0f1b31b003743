package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// probeTimeout matches the health monitor's own probe timeout (spec
// §5 "health probe: 5s").
const probeTimeout = 5 * time.Second

// LocalProviderKinds are logged distinctly from hosted providers: a
// local provider being unreachable usually means it isn't running yet,
// not a network/credentials problem.
var LocalProviderKinds = map[string]bool{
	"ollama":   true,
	"vllm":     true,
	"lmstudio": true,
}

// ProviderProbe checks whether a configured LLM provider's base URL is
// reachable, independent of and complementary to the MCP tool-server
// health monitor. It never inspects model availability, only that the
// provider endpoint answers.
type ProviderProbe struct {
	client *http.Client
}

func NewProviderProbe() *ProviderProbe {
	return &ProviderProbe{client: &http.Client{Timeout: probeTimeout}}
}

// ProbeResult describes the outcome of a single reachability check.
type ProbeResult struct {
	Provider string
	Local    bool
	Reachable bool
	Err      error
}

// Probe hits the provider's model-listing endpoint: Ollama's
// /api/tags, or an OpenAI-compatible /models for everything else.
func (p *ProviderProbe) Probe(ctx context.Context, providerKind, baseURL string) ProbeResult {
	result := ProbeResult{Provider: providerKind, Local: LocalProviderKinds[providerKind]}

	path := "/models"
	if providerKind == "ollama" {
		path = "/api/tags"
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		result.Err = err
		return result
	}
	resp, err := p.client.Do(req)
	if err != nil {
		result.Err = err
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		result.Err = fmt.Errorf("provider %s responded with status %d", providerKind, resp.StatusCode)
		return result
	}
	result.Reachable = true
	return result
}
