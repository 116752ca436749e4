package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("AUDIOSLICE_TEST_VAR", "resolved")
	defer os.Unsetenv("AUDIOSLICE_TEST_VAR")

	assert.Equal(t, "resolved", SubstituteEnvVars("${AUDIOSLICE_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${AUDIOSLICE_UNSET_VAR:fallback}"))
	assert.Equal(t, "plain", SubstituteEnvVars("plain"))
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	os.Setenv("AUDIOSLICE_LOG_LEVEL", "warn")
	defer os.Unsetenv("AUDIOSLICE_LOG_LEVEL")

	cfg := Default()
	applyEnvironmentOverrides(cfg)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("AUDIOSLICE_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())

	os.Setenv("AUDIOSLICE_ENV", "Production")
	defer os.Unsetenv("AUDIOSLICE_ENV")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
}
