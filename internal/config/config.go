package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Model       ModelConfig       `yaml:"model"`
	Mcp         McpConfig         `yaml:"mcp"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type AppConfig struct {
	Port    int    `yaml:"port"`
	WorkDir string `yaml:"workdir"`
}

// ModelConfig holds the hyperparameters applied to models created without
// explicit values, plus the default lpmf worker count.
type ModelConfig struct {
	N               int     `yaml:"n"`
	Alpha           float64 `yaml:"alpha"`
	UnseenAlpha     float64 `yaml:"unseen_alpha"`
	NormaliseLength *bool   `yaml:"normalise_length"`
	Threads         int     `yaml:"threads"`
	MaxOrder        int     `yaml:"max_order"` // largest n a model may be created or loaded with
}

type McpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PersistenceConfig struct {
	ModelDir string `yaml:"model_dir"`
}

type LoggingConfig struct {
	Level       string   `yaml:"level"`
	OutputPaths []string `yaml:"output_paths"`
}

// ModelDir returns the snapshot directory. A relative directory is resolved
// against App.WorkDir when one is set.
func (c *Config) ModelDir() string {
	if c.App.WorkDir == "" || filepath.IsAbs(c.Persistence.ModelDir) {
		return c.Persistence.ModelDir
	}
	return filepath.Join(c.App.WorkDir, c.Persistence.ModelDir)
}

// Normalise reports whether length normalisation is on, defaulting to true
func (m ModelConfig) Normalise() bool {
	if m.NormaliseLength == nil {
		return true
	}
	return *m.NormaliseLength
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads a YAML configuration file and applies defaults to unset fields
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Model.N == 0 {
		c.Model.N = 3
	}
	if c.Model.Alpha == 0 {
		c.Model.Alpha = 1.0
	}
	if c.Model.UnseenAlpha == 0 {
		c.Model.UnseenAlpha = 1.0
	}
	if c.Model.Threads == 0 {
		c.Model.Threads = runtime.NumCPU()
	}
	if c.Model.MaxOrder == 0 {
		c.Model.MaxOrder = 16
	}
	if c.Mcp.Path == "" {
		c.Mcp.Path = "/mcp"
	}
	if c.Persistence.ModelDir == "" {
		c.Persistence.ModelDir = "./ngram_models"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Logging.OutputPaths) == 0 {
		c.Logging.OutputPaths = []string{"stdout"}
	}
}

// Validate rejects configurations that cannot start a server
func (c *Config) Validate() error {
	if c.App.Port < 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port %d", c.App.Port)
	}
	if c.Model.Threads < 1 {
		return fmt.Errorf("model threads must be >= 1, got %d", c.Model.Threads)
	}
	if c.Model.MaxOrder < 1 {
		return fmt.Errorf("model max_order must be >= 1, got %d", c.Model.MaxOrder)
	}
	if c.Model.N < 1 || c.Model.N > c.Model.MaxOrder {
		return fmt.Errorf("model n must be in [1, %d], got %d", c.Model.MaxOrder, c.Model.N)
	}
	if !isPositive(c.Model.Alpha) {
		return fmt.Errorf("model alpha must be > 0, got %v", c.Model.Alpha)
	}
	if !isPositive(c.Model.UnseenAlpha) {
		return fmt.Errorf("model unseen_alpha must be > 0, got %v", c.Model.UnseenAlpha)
	}
	if c.Mcp.Enabled && (c.Mcp.Path == "" || c.Mcp.Path[0] != '/') {
		return fmt.Errorf("mcp path must start with '/', got %q", c.Mcp.Path)
	}
	return nil
}

func isPositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}
