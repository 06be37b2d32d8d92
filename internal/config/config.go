// Package config loads server settings.
//
// Sources, lowest precedence first:
//  1. Built-in defaults (Default)
//  2. A YAML file named by CONFIG_PATH, if set
//  3. Environment variables, after a .env file (if present) has been
//     loaded into the environment without overriding variables already set
//
// The merged result is checked with validator tags before it is returned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/snipshare/internal/logging"
)

// Config is the full server configuration.
type Config struct {
	Port      int    `yaml:"port"       validate:"min=1,max=65535"`
	DBPath    string `yaml:"db_path"    validate:"required"`
	BackupDir string `yaml:"backup_dir" validate:"required"`

	// TrustedProxies lists the IPs and CIDRs whose forwarding headers are
	// believed. Empty means clients are identified by their socket address.
	TrustedProxies []string `yaml:"trusted_proxies" validate:"dive,cidr|ip"`

	Auth      AuthSettings      `yaml:"auth"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
	Sandbox   SandboxSettings   `yaml:"sandbox"`
	Log       logging.Settings  `yaml:"log"`
}

// AuthSettings configures tokens and sign-in. An empty JWTSecret turns
// authentication off: only public reads and anonymous votes/comments work.
type AuthSettings struct {
	JWTSecret          string        `yaml:"jwt_secret"           validate:"omitempty,min=16"`
	TokenTTL           time.Duration `yaml:"token_ttl"            validate:"gt=0"`
	GitHubClientID     string        `yaml:"github_client_id"`
	GitHubClientSecret string        `yaml:"github_client_secret" validate:"required_with=GitHubClientID"`
	GitHubCallbackURL  string        `yaml:"github_callback_url"  validate:"omitempty,url"`
	AdminLogins        []string      `yaml:"admin_logins"`
}

// Enabled reports whether a JWT secret is configured.
func (a AuthSettings) Enabled() bool {
	return a.JWTSecret != ""
}

// GitHubEnabled reports whether GitHub sign-in can be offered.
func (a AuthSettings) GitHubEnabled() bool {
	return a.Enabled() && a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

// RateLimitSettings bounds anonymous write traffic per client IP.
type RateLimitSettings struct {
	RPS   float64 `yaml:"rps"   validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"min=1"`
}

// SandboxSettings configures the Docker code runner.
type SandboxSettings struct {
	Enabled bool          `yaml:"enabled"`
	Image   string        `yaml:"image"   validate:"required_if=Enabled true"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:      8080,
		DBPath:    "data/snipshare.db",
		BackupDir: "data/backups",
		Auth: AuthSettings{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitSettings{RPS: 2, Burst: 5},
		Sandbox: SandboxSettings{
			Image:   "python:3.12-alpine",
			Timeout: 5 * time.Second,
		},
		Log: logging.DefaultSettings(),
	}
}

// Load reads configuration from envFiles (default ".env"), CONFIG_PATH
// and the environment. Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setInt("PORT", &c.Port)
	e.setString("DB_PATH", &c.DBPath)
	e.setString("BACKUP_DIR", &c.BackupDir)
	e.setList("TRUSTED_PROXIES", &c.TrustedProxies)

	e.setString("JWT_SECRET", &c.Auth.JWTSecret)
	e.setDuration("TOKEN_TTL", &c.Auth.TokenTTL)
	e.setString("GITHUB_CLIENT_ID", &c.Auth.GitHubClientID)
	e.setString("GITHUB_CLIENT_SECRET", &c.Auth.GitHubClientSecret)
	e.setString("GITHUB_CALLBACK_URL", &c.Auth.GitHubCallbackURL)
	e.setList("ADMIN_LOGINS", &c.Auth.AdminLogins)

	e.setFloat("RATE_LIMIT_RPS", &c.RateLimit.RPS)
	e.setInt("RATE_LIMIT_BURST", &c.RateLimit.Burst)

	e.setBool("SANDBOX_ENABLED", &c.Sandbox.Enabled)
	e.setString("SANDBOX_IMAGE", &c.Sandbox.Image)
	e.setDuration("SANDBOX_TIMEOUT", &c.Sandbox.Timeout)

	e.setString("LOG_LEVEL", &c.Log.Level)
	e.setString("LOG_FORMAT", &c.Log.Format)
	e.setString("LOG_OUTPUT", &c.Log.Output)
	e.setString("LOG_FILE", &c.Log.File)
	e.setInt("LOG_MAX_SIZE", &c.Log.MaxSizeMB)
	e.setInt("LOG_MAX_BACKUPS", &c.Log.MaxBackups)
	e.setInt("LOG_MAX_AGE", &c.Log.MaxAgeDays)

	return errors.Join(e.errs...)
}

var validate = validator.New()

// Validate checks every section and reports each problem.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("config: %s fails %q", fe.Namespace(), strings.TrimSuffix(fe.Tag()+"="+fe.Param(), "=")))
		}
		return errors.Join(errs...)
	}
	return nil
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a number", key, v))
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
			return
		}
		*dst = d
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}
