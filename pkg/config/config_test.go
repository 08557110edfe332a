package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgraph/lpgraph/pkg/config"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := config.LoadFromEnv()
	assert.Equal(t, config.StrictnessWarn, cfg.Strictness)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".", cfg.SourceBaseDir)
}

func TestLoadFromEnvHonorsOverrides(t *testing.T) {
	t.Setenv("LPGRAPH_SCHEMA", "schema.yaml")
	t.Setenv("LPGRAPH_STRICTNESS", "fail")
	t.Setenv("LPGRAPH_LOG_LEVEL", "debug")

	cfg := config.LoadFromEnv()
	assert.Equal(t, "schema.yaml", cfg.SchemaPath)
	assert.Equal(t, config.StrictnessFail, cfg.Strictness)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRequiresSchemaPath(t *testing.T) {
	cfg := config.LoadFromEnv()
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStrictness(t *testing.T) {
	cfg := config.LoadFromEnv()
	cfg.SchemaPath = "schema.yaml"
	cfg.Strictness = "sometimes"
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &config.RunConfig{
		SchemaPath: "schema.yaml",
		Strictness: config.StrictnessWarn,
		LogLevel:   "info",
	}
	require.NoError(t, cfg.Validate())
}
