package docker

import (
	"time"
)

// Config holds the sandbox settings.
type Config struct {
	// Image is the Docker image containers are created from.
	Image string
	// Language is the snippet language this sandbox accepts.
	Language string
	// Command is prefixed to the code, e.g. python -c <code>.
	Command []string
	// MemoryLimit caps container memory, in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// Timeout bounds a single run.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept ready.
	PoolSize int
	// MaxOutputBytes caps stdout and stderr separately.
	MaxOutputBytes int
}

// DefaultConfig is a small Python sandbox.
func DefaultConfig() Config {
	return Config{
		Image:          "python:3.12-alpine",
		Language:       "python",
		Command:        []string{"python", "-c"},
		MemoryLimit:    128 * 1024 * 1024,
		CPULimit:       0.5,
		Timeout:        5 * time.Second,
		PoolSize:       3,
		MaxOutputBytes: 64 * 1024,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Image == "" {
		c.Image = d.Image
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if len(c.Command) == 0 {
		c.Command = d.Command
	}
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = d.MemoryLimit
	}
	if c.CPULimit <= 0 {
		c.CPULimit = d.CPULimit
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
	return c
}
