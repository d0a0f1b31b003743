package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeReachableOllamaServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProviderProbe()
	result := p.Probe(context.Background(), "ollama", srv.URL)
	require.True(t, result.Reachable)
	require.True(t, result.Local)
	require.NoError(t, result.Err)
}

func TestProbeHostedProviderUsesModelsPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProviderProbe()
	result := p.Probe(context.Background(), "openai", srv.URL)
	require.True(t, result.Reachable)
	require.False(t, result.Local)
}

func TestProbeErrorStatusIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProviderProbe()
	result := p.Probe(context.Background(), "vllm", srv.URL)
	require.False(t, result.Reachable)
	require.Error(t, result.Err)
}

func TestProbeConnectionRefusedIsUnreachable(t *testing.T) {
	p := NewProviderProbe()
	result := p.Probe(context.Background(), "lmstudio", "http://127.0.0.1:1")
	require.False(t, result.Reachable)
	require.Error(t, result.Err)
}
