package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), fileMode))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, "127.0.0.1:8080", c.Server.Addr())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
  read_timeout: 10s
log:
  level: debug
  format: json
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, 9000, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, c.Server.WriteTimeout)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, LogFormatJSON, c.Log.Format)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9001\n")
	t.Setenv(PathEnvVar, path)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9001, c.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("SOHMA_SERVER_PORT", "9100")
	t.Setenv("SOHMA_LOG_LEVEL", "warn")
	t.Setenv("SOHMA_SERVER_SHUTDOWN_TIMEOUT", "2s")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, 2*time.Second, c.Server.ShutdownTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error unmarshalling config file")
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	t.Setenv("SOHMA_SERVER_PORT", "not-an-int")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"random port", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, true},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, true},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"upper case log format", func(c *Config) { c.Log.Format = "JSON" }, false},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, true},
		{"telemetry with endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = "http://localhost:4318"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	c1 := Default()
	c1.Server.Port = 9200
	c1.Log.Format = LogFormatCLI
	c1.Telemetry.Endpoint = "http://collector:4318"

	require.NoError(t, Save(path, c1))

	c2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "config.yaml"), nil))
}
