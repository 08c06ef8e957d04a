package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{configPathEnv, portEnv, ginModeEnv, logLevelEnv, defaultTopicEnv, jwtSecretEnv, reportURLEnv, maintenanceEnv} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "General", cfg.Crisis.DefaultTopic)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "clippings.yaml")
	yaml := `
server:
  port: "9000"
log:
  level: warn
crisis:
  defaultTopic: Institucional
reports:
  serviceUrl: http://reports.internal/generate
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv(portEnv, "7000")
	t.Setenv(jwtSecretEnv, "s3cret")

	cfg := Load()
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.GinMode)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "Institucional", cfg.Crisis.DefaultTopic)
	assert.Equal(t, "http://reports.internal/generate", cfg.Reports.ServiceURL)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestMaintenanceInterval(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"90s", 90 * time.Second},
		{"0", 0},
		{"soon", 0},
		{"-5m", 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(maintenanceEnv, tt.value)
			assert.Equal(t, tt.want, Load().MaintenanceInterval())
		})
	}
}
