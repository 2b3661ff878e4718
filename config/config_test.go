package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoEnvOrFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mock", cfg.LLMProvider)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 5, cfg.MaxToolLoops)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("ORCHESTRATOR_LLM_API_KEY", "sk-test-123")
	t.Setenv("ORCHESTRATOR_LLM_PROVIDER", "anthropic")
	t.Setenv("ORCHESTRATOR_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.LLMAPIKey)
	require.Equal(t, "anthropic", cfg.LLMProvider)
	require.Equal(t, 9090, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFileFillsInUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/orchestrator.yaml"
	require.NoError(t, os.WriteFile(path, []byte("vector_store_path: /tmp/custom-store\nport: 9999\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-store", cfg.VectorStorePath)
	require.Equal(t, 9999, cfg.Port)
}

func TestLoad_EnvironmentWinsOverYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/orchestrator.yaml"
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\n"), 0o600))
	t.Setenv("ORCHESTRATOR_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	cfg, err := Load("/nonexistent/path/orchestrator.yaml")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
}

func TestValidate_RejectsMissingAPIKeyForRealProvider(t *testing.T) {
	cfg := &Config{LLMProvider: "anthropic", Port: 8080, MaxToolLoops: 5}
	require.Error(t, cfg.Validate())
}

func TestValidate_MockProviderNeedsNoAPIKey(t *testing.T) {
	cfg := &Config{LLMProvider: "mock", Port: 8080, MaxToolLoops: 5}
	require.NoError(t, cfg.Validate())
}

func TestLoad_ShutdownTimeoutDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
