package kernel

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebound/kernel/config"
	"github.com/forgebound/kernel/security/signing"
)

func testConfig() *config.Config {
	cfg := &config.Config{Name: "test-kernel"}
	cfg.SetDefaults()
	return cfg
}

func signedManifest(t *testing.T, text, signerID string) signing.SignedManifest {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return signing.Sign(text, priv, signerID)
}

func TestBootWiresEverySubstrate(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)
	require.NotNil(t, k.Bus)
	require.NotNil(t, k.Supervisor)
	require.NotNil(t, k.Lanes)
	require.NotNil(t, k.Caps)
	require.NotNil(t, k.Audit)
	require.NotNil(t, k.Auth)
	require.NotNil(t, k.Metrics)
	require.NotNil(t, k.Health)
	require.NotNil(t, k.RateLimit)
}

func TestSpawnAgentThenListFind(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	manifest := signedManifest(t, "name = \"helper\"", "test-signer")
	handle, err := k.SpawnAgent(context.Background(), "agent-1", manifest, nil)
	require.NoError(t, err)
	require.Equal(t, "agent-1", handle.ID)

	listed := k.List()
	require.Len(t, listed, 1)
	require.Equal(t, "agent-1", listed[0].ID)

	found := k.Find("agent-1")
	require.Len(t, found, 1)

	require.Empty(t, k.Find("no-such-agent"))
}

func TestSpawnAgentRejectsDuplicateID(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	manifest := signedManifest(t, "name = \"helper\"", "test-signer")
	_, err = k.SpawnAgent(context.Background(), "agent-1", manifest, nil)
	require.NoError(t, err)

	_, err = k.SpawnAgent(context.Background(), "agent-1", manifest, nil)
	require.Error(t, err)
}

func TestSpawnAgentRejectsBadSignature(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	manifest := signedManifest(t, "name = \"helper\"", "test-signer")
	manifest.Manifest = "tampered"

	_, err = k.SpawnAgent(context.Background(), "agent-1", manifest, nil)
	require.Error(t, err)
}

func TestKillAgentRemovesFromRegistryAndRevokesCaps(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	manifest := signedManifest(t, "name = \"helper\"", "test-signer")
	_, err = k.SpawnAgent(context.Background(), "agent-1", manifest, nil)
	require.NoError(t, err)

	require.NoError(t, k.KillAgent("agent-1"))
	require.Empty(t, k.List())

	_, ok := k.GetAgent("agent-1")
	require.False(t, ok)
}

func TestKillAgentReportsUnknownID(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)
	require.Error(t, k.KillAgent("never-spawned"))
}

func TestApplyMutableConfigRebuildsHealthAndRateLimit(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	next := testConfig()
	next.Integration = map[string]config.ServiceConfig{
		"primary-llm": {Kind: "llm_provider", BaseURL: "http://localhost:11434", HealthCheckPath: "/api/tags"},
	}
	next.RateLimit = config.RateLimitConfig{RefillPerMinute: 60, Burst: 5, DefaultCost: 2}

	k.ApplyMutableConfig(next)

	require.Len(t, k.Config.Integration, 1)
	require.Equal(t, 60, k.Config.RateLimit.RefillPerMinute)
	require.NotNil(t, k.RateLimit)
}

func TestCheckIntegrationsReturnsOneRecordPerService(t *testing.T) {
	cfg := testConfig()
	cfg.Integration = map[string]config.ServiceConfig{
		"unreachable-service": {Kind: "mcp_server", BaseURL: "http://127.0.0.1:1", HealthCheckPath: "/health"},
	}
	k, err := Boot(cfg)
	require.NoError(t, err)

	records := k.CheckIntegrations(context.Background())
	require.Len(t, records, 1)
	require.Equal(t, "unreachable-service", records[0].Name)
}
