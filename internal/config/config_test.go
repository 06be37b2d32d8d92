package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Sandbox.Enabled)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"PORT":                 "9090",
		"DB_PATH":              "/tmp/x.db",
		"JWT_SECRET":           "0123456789abcdef0123",
		"TOKEN_TTL":            "2h",
		"GITHUB_CLIENT_ID":     "id",
		"GITHUB_CLIENT_SECRET": "secret",
		"ADMIN_LOGINS":         " alice , ,Bob",
		"TRUSTED_PROXIES":      "10.0.0.0/8, 127.0.0.1",
		"RATE_LIMIT_RPS":       "0.5",
		"SANDBOX_ENABLED":      "true",
		"SANDBOX_TIMEOUT":      "10s",
		"LOG_FORMAT":           "json",
		"LOG_LEVEL":            "   ", // blank is ignored
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"alice", "Bob"}, cfg.Auth.AdminLogins)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, 0.5, cfg.RateLimit.RPS)
	assert.True(t, cfg.Sandbox.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Auth.GitHubEnabled())
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"PORT":            "eighty",
		"TOKEN_TTL":       "forever",
		"SANDBOX_ENABLED": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "TOKEN_TTL")
	assert.Contains(t, err.Error(), "SANDBOX_ENABLED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"port", func(c *Config) { c.Port = 70000 }, "Port"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWTSecret"},
		{"github id without secret", func(c *Config) { c.Auth.GitHubClientID = "id" }, "GitHubClientSecret"},
		{"zero rps", func(c *Config) { c.RateLimit.RPS = 0 }, "RPS"},
		{"sandbox without image", func(c *Config) { c.Sandbox.Enabled = true; c.Sandbox.Image = "" }, "Image"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "Level"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "DBPath"},
		{"trusted proxy hostname", func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, "TrustedProxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_YAMLThenEnvThenDotEnv(t *testing.T) {
	const dotEnvKey = "RATE_LIMIT_BURST"
	if _, set := os.LookupEnv(dotEnvKey); set {
		t.Skipf("%s is set in the environment", dotEnvKey)
	}
	t.Cleanup(func() { os.Unsetenv(dotEnvKey) })

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "snipshare.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
port: 7000
db_path: from-yaml.db
auth:
  token_ttl: 1h
  admin_logins: [root]
sandbox:
  timeout: 3s
log:
  format: json
`), 0o644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(dotEnvKey+"=9\nDB_PATH=from-dotenv.db\n"), 0o644))

	t.Setenv("CONFIG_PATH", yamlPath)
	t.Setenv("DB_PATH", "from-env.db") // real env beats .env and YAML
	t.Setenv("PORT", "")

	cfg, err := Load(envPath)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port, "blank PORT keeps the YAML value")
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 9, cfg.RateLimit.Burst, "value from .env")
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"root"}, cfg.Auth.AdminLogins)
	assert.Equal(t, 3*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "http://localhost:7000/auth/github/callback", cfg.Auth.GitHubCallbackURL)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}
