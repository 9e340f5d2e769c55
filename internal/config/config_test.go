package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_BACKENDS", "VECTOR_DIMENSIONS", "LISTEN_ADDR", "PRIMARY_API_KEY", "PRIMARY_MODEL",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoad_RequiresBackends(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ParsesBackendsAndDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BACKENDS", "primary:openai:http://localhost:8000/v1,fallback:anthropic")
	t.Setenv("PRIMARY_API_KEY", "k1")
	t.Setenv("PRIMARY_MODEL", "local-model")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 2)
	require.Equal(t, "primary", cfg.Backends[0].Name)
	require.Equal(t, "openai", cfg.Backends[0].Kind)
	require.Equal(t, "http://localhost:8000/v1", cfg.Backends[0].BaseURL)
	require.Equal(t, "k1", cfg.Backends[0].APIKey)
	require.Equal(t, "fallback", cfg.Backends[1].Name)
	require.Equal(t, "anthropic", cfg.Backends[1].Kind)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 0.7, cfg.SurpriseThreshold)
}

func TestLoad_RejectsBadDimensions(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BACKENDS", "primary:openai")
	t.Setenv("VECTOR_DIMENSIONS", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestSplitPairs(t *testing.T) {
	got := splitPairs("primary=http://localhost:8000/metrics, fallback=http://fb:9090/metrics")
	require.Equal(t, map[string]string{
		"primary":  "http://localhost:8000/metrics",
		"fallback": "http://fb:9090/metrics",
	}, got)

	require.Nil(t, splitPairs(""))
	require.Nil(t, splitPairs("no-equals-sign"))
}
