// Package config provides loading and parsing of broker.yaml configuration files.
// Broker configurations define invocation limits, queue connectivity, discovery
// endpoints, and per-tool timeout overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a broker.yaml configuration file.
type Config struct {
	// Identity
	Name        string `yaml:"name"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Categorization
	Tags []string `yaml:"tags,omitempty"`

	// Broker invocation settings
	Broker *BrokerConfig `yaml:"broker,omitempty"`

	// Redis queue connectivity (for remote dispatch)
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Etcd discovery endpoints
	Etcd *EtcdConfig `yaml:"etcd,omitempty"`

	// Worker configuration (for queue-based execution)
	Worker *WorkerConfig `yaml:"worker,omitempty"`

	// Per-tool enable/disable and timeout overrides, keyed by tool name.
	Tools map[string]ToolConfig `yaml:"tools,omitempty"`
}

// BrokerConfig defines invocation admission and timeout settings.
type BrokerConfig struct {
	// DefaultTimeout applies when an invocation carries no explicit timeout
	// and the tool declares none. Format: Go duration string (e.g., "30s").
	// Default: 30s
	DefaultTimeout string `yaml:"default_timeout,omitempty"`

	// MaxInFlight bounds concurrent invocations. Requests beyond the bound
	// are rejected rather than queued.
	// Default: 0 (unbounded)
	MaxInFlight int `yaml:"max_in_flight,omitempty"`

	// RateLimit is the sustained invocations-per-second admission rate.
	// Default: 0 (unlimited)
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// RateBurst is the admission burst size when RateLimit is set.
	// Default: 1
	RateBurst int `yaml:"rate_burst,omitempty"`
}

// RedisConfig defines connectivity for the Redis-backed dispatch queue.
type RedisConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string `yaml:"url,omitempty"`

	// ConnectTimeout is the dial timeout. Format: Go duration string.
	// Default: 5s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// EtcdConfig defines connectivity for etcd-based worker discovery.
type EtcdConfig struct {
	Endpoints   []string `yaml:"endpoints,omitempty"`
	DialTimeout string   `yaml:"dial_timeout,omitempty"`

	// TLS material for secured clusters.
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	CAFile   string `yaml:"ca_file,omitempty"`
}

// WorkerConfig defines configuration for queue-based worker execution.
type WorkerConfig struct {
	// Concurrency is the number of concurrent worker goroutines.
	// I/O-bound tools benefit from higher concurrency (4-8),
	// CPU-bound tools from lower (1-2).
	// Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`

	// ShutdownTimeout is the time to wait for graceful shutdown.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval is the interval between health heartbeats.
	// Format: Go duration string (e.g., "10s")
	// Default: 10s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`
}

// ToolConfig carries per-tool registration and timeout overrides.
type ToolConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`     // gates registration; unset means enabled
	Timeout    string `yaml:"timeout,omitempty"`     // default execution timeout
	MaxTimeout string `yaml:"max_timeout,omitempty"` // upper bound a caller may request
}

// IsEnabled reports whether the tool should be registered.
func (t ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// GetDefaultTimeout parses the broker default timeout and returns a duration.
// Returns 30s if not set or invalid.
func (b *BrokerConfig) GetDefaultTimeout() time.Duration {
	if b == nil || b.DefaultTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetMaxInFlight returns the configured in-flight bound, or 0 for unbounded.
func (b *BrokerConfig) GetMaxInFlight() int {
	if b == nil || b.MaxInFlight < 0 {
		return 0
	}
	return b.MaxInFlight
}

// GetRateBurst returns the configured burst size or the default value.
func (b *BrokerConfig) GetRateBurst() int {
	if b == nil || b.RateBurst <= 0 {
		return 1
	}
	return b.RateBurst
}

// GetURL returns the configured Redis URL or the default local address.
func (r *RedisConfig) GetURL() string {
	if r == nil || r.URL == "" {
		return "redis://localhost:6379"
	}
	return r.URL
}

// GetConnectTimeout parses the connect timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetConnectTimeout() time.Duration {
	if r == nil || r.ConnectTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(r.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetDialTimeout parses the etcd dial timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (e *EtcdConfig) GetDialTimeout() time.Duration {
	if e == nil || e.DialTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(e.DialTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetShutdownTimeout parses the shutdown timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetShutdownTimeout() time.Duration {
	if w == nil || w.ShutdownTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(w.ShutdownTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetHeartbeatInterval parses the heartbeat interval string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetHeartbeatInterval() time.Duration {
	if w == nil || w.HeartbeatInterval == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(w.HeartbeatInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetConcurrency returns the configured concurrency or the default value.
func (w *WorkerConfig) GetConcurrency() int {
	if w == nil || w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

// GetTimeout parses the per-tool default timeout. Returns 0 if unset or invalid.
func (t ToolConfig) GetTimeout() time.Duration {
	if t.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetMaxTimeout parses the per-tool maximum timeout. Returns 0 if unset or invalid.
func (t ToolConfig) GetMaxTimeout() time.Duration {
	if t.MaxTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(t.MaxTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Load reads and parses a broker.yaml file from the given path.
// If the path is a directory, it looks for broker.yaml or broker.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		// Try broker.yaml first, then broker.yml
		yamlPath := filepath.Join(path, "broker.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "broker.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no broker.yaml or broker.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadFromDir searches for broker.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			return nil, fmt.Errorf("no broker.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// LoadFromCurrentDir loads broker.yaml from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFromDir(cwd)
}
