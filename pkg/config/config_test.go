package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfigYAML marshals the given document into config.yaml in a temp
// working directory and chdirs into it for the duration of the test.
func writeConfigYAML(t *testing.T, doc map[string]any) {
	t.Helper()

	dir := t.TempDir()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644))
	t.Chdir(dir)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")

	cfg, err := Load("test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 25, cfg.Parser.BatchSize)
	assert.Equal(t, "intake_engine", cfg.Database.Database)
}

func TestLoadFromYAML(t *testing.T) {
	writeConfigYAML(t, map[string]any{
		"port": "9000",
		"env":  "staging",
		"auth": map[string]any{"enable_verification": false},
		"ai": map[string]any{
			"provider": "anthropic",
			"model":    "claude-sonnet-4-20250514",
		},
		"parser": map[string]any{"batch_size": 10, "call_delay": "250ms"},
	})

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, 10, cfg.Parser.BatchSize)
}

func TestEnvOverridesYAML(t *testing.T) {
	writeConfigYAML(t, map[string]any{
		"port": "9000",
		"auth": map[string]any{"enable_verification": false},
	})
	t.Setenv("PORT", "9100")
	t.Setenv("PGDATABASE", "intake_test")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "intake_test", cfg.Database.Database)
}

func TestSecretsComeFromEnvOnly(t *testing.T) {
	writeConfigYAML(t, map[string]any{
		"auth": map[string]any{"enable_verification": false},
	})
	t.Setenv("PGPASSWORD", "s3cret")
	t.Setenv("AI_API_KEY", "sk-test")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Contains(t, cfg.Database.ConnectionString(), "password=s3cret")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	writeConfigYAML(t, map[string]any{
		"auth": map[string]any{"enable_verification": false},
		"ai":   map[string]any{"provider": "bedrock"},
	})

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown AI provider")
}

func TestLoadRequiresJWKSWhenVerifying(t *testing.T) {
	writeConfigYAML(t, map[string]any{
		"auth": map[string]any{"enable_verification": true},
	})

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwks_url")
}
