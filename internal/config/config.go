package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/reschivon/autoforge/internal/log"
)

// Config holds all configuration for autoforge
type Config struct {
	// Seed for the statement shuffle. The same seed and input give the same output.
	Seed uint64 `yaml:"seed"`

	// StripComments drops comments and bare string statements from rebuilt functions
	StripComments bool `yaml:"strip_comments"`

	// MaxDepth limits statement nesting inside a function
	MaxDepth int `yaml:"max_depth"`

	// Workers is the number of files processed concurrently
	Workers int `yaml:"workers"`

	// Only restricts mutation to the named functions; empty means all
	Only []string `yaml:"only,omitempty"`

	// Strict aborts a file on the first function that cannot be mutated
	Strict bool `yaml:"strict"`

	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLogs bool   `yaml:"json_logs"`

	// Result cache; a zero size disables it
	CacheDir  string `yaml:"cache_dir"`
	CacheSize int    `yaml:"cache_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Seed:          0,
		StripComments: false,
		MaxDepth:      13,
		Workers:       4,
		Only:          nil,
		Strict:        false,
		LogLevel:      "warn",
		JSONLogs:      false,
		CacheDir:      defaultCacheDir(),
		CacheSize:     256,
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".autoforge", "cache")
	}
	return filepath.Join(dir, "autoforge")
}

// GlobalConfigFilePath returns the global config file path (~/.autoforge/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autoforge/config.yaml"
	}
	return filepath.Join(home, ".autoforge", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.autoforge/config.yaml)
func ProjectConfigFilePath() string {
	return ".autoforge/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.autoforge/config.yaml)
// 3. Global config (~/.autoforge/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := env.Str("AUTOFORGE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AUTOFORGE_SEED %q: %w", v, err)
		}
		cfg.Seed = seed
	}
	if env.Has("AUTOFORGE_STRIP_COMMENTS") {
		cfg.StripComments = env.Bool("AUTOFORGE_STRIP_COMMENTS")
	}
	if i := env.Int("AUTOFORGE_MAX_DEPTH", 0); i > 0 {
		cfg.MaxDepth = i
	}
	if i := env.Int("AUTOFORGE_WORKERS", 0); i > 0 {
		cfg.Workers = i
	}
	if v := env.Str("AUTOFORGE_ONLY"); v != "" {
		cfg.Only = SplitList(v)
	}
	if env.Has("AUTOFORGE_STRICT") {
		cfg.Strict = env.Bool("AUTOFORGE_STRICT")
	}
	if v := env.Str("AUTOFORGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if env.Has("AUTOFORGE_JSON_LOGS") {
		cfg.JSONLogs = env.Bool("AUTOFORGE_JSON_LOGS")
	}
	if v := env.Str("AUTOFORGE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if i := env.Int("AUTOFORGE_CACHE_SIZE", -1); i >= 0 {
		cfg.CacheSize = i
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	for _, name := range c.Only {
		if name == "" || strings.ContainsAny(name, " \t.") {
			return fmt.Errorf("invalid function name in only: %q", name)
		}
	}
	return nil
}

// Logger builds the logger described by the logging settings.
func (c *Config) Logger() log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	return log.New(log.LoggerConfig{Level: level, JSONOutput: c.JSONLogs})
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
