package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "DEBUG", "DB_PATH", "SESSION_BACKEND", "SESSION_DURATION", "SECURE_COOKIE",
	"TEMPLATE_DIR", "STATIC_DIR", "NOTIFY_BACKEND", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME",
	"SMTP_PASSWORD", "SMTP_FROM", "AMQP_URL", "AMQP_EXCHANGE", "AMQP_QUEUE", "LOG_FORMAT",
	"METRICS_ENABLED", "ADMIN_USER", "ADMIN_PASSWORD",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server_host: 0.0.0.0
server_port: 5000
debug_mode: true
database:
  path: /var/lib/finance/finance.db
session:
  backend: memory
  duration: 12h
notify:
  backend: smtp
  smtp:
    host: smtp.example.com
    from: noreply@example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/var/lib/finance/finance.db", cfg.Database.Path)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Session.Duration)
	assert.Equal(t, time.Hour, cfg.Session.SweepInterval, "unset keys keep defaults")
	assert.Equal(t, "smtp.example.com", cfg.Notify.SMTP.Host)
	assert.Equal(t, 587, cfg.Notify.SMTP.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server_port: 5000\ndebug_mode: false\n")

	t.Setenv("PORT", "9090")
	t.Setenv("DEBUG", "true")
	t.Setenv("DB_PATH", "/tmp/override.db")
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "secret", cfg.Admin.Password)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server_port: [not a number\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errorString string
	}{
		{
			name:        "port out of range",
			mutate:      func(c *Config) { c.Port = 70000 },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "empty database path",
			mutate:      func(c *Config) { c.Database.Path = "" },
			errorString: "database path cannot be empty",
		},
		{
			name:        "unknown session backend",
			mutate:      func(c *Config) { c.Session.Backend = "redis" },
			errorString: "invalid session backend 'redis'",
		},
		{
			name:        "session too short",
			mutate:      func(c *Config) { c.Session.Duration = time.Second },
			errorString: "invalid session duration",
		},
		{
			name:        "smtp without host",
			mutate:      func(c *Config) { c.Notify.Backend = "smtp"; c.Notify.SMTP.From = "a@b.c" },
			errorString: "SMTP host is required",
		},
		{
			name:        "amqp with bad scheme",
			mutate:      func(c *Config) { c.Notify.Backend = "amqp"; c.Notify.AMQP.URL = "http://broker" },
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "unknown notify backend",
			mutate:      func(c *Config) { c.Notify.Backend = "sms" },
			errorString: "invalid notify backend 'sms'",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Log.Format = "xml" },
			errorString: "invalid log format 'xml'",
		},
		{
			name:        "admin without password",
			mutate:      func(c *Config) { c.Admin.Username = "admin" },
			errorString: "admin username and password must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 0")
	assert.Contains(t, err.Error(), "invalid log format")
}
