// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Checkpoint backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Default values applied by Defaults and MergeWithDefaults.
const (
	DefaultMaxIterations       = 3
	DefaultConfidenceThreshold = 0.85
	DefaultTeamID              = "local_team"
	DefaultBackend             = BackendFile
	DefaultCheckpointDir       = ".qa_agent/checkpoints"
	DefaultSQLitePath          = ".qa_agent/checkpoints.db"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultPort                = 8080
	DefaultRecoverConcurrency  = 4
)

// Config is the orchestrator configuration. It can be loaded from a JSON or
// YAML file; every field is optional and falls back to a default.
type Config struct {
	// Pipeline
	MaxIterations       int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`             // Regenerations allowed per kind before a human must review
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"` // Default run threshold (0.0-1.0)
	TeamID              string  `json:"team_id,omitempty" yaml:"team_id,omitempty"`                           // Default team for new runs

	// Checkpoints
	CheckpointBackend string `json:"checkpoint_backend,omitempty" yaml:"checkpoint_backend,omitempty"` // memory, file, sqlite or postgres
	CheckpointDir     string `json:"checkpoint_dir,omitempty" yaml:"checkpoint_dir,omitempty"`         // Directory for the file backend
	SQLitePath        string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`               // Database file for the sqlite backend
	DatabaseURL       string `json:"database_url,omitempty" yaml:"database_url,omitempty"`             // PostgreSQL connection URL

	// LLM
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`       // Gemini API key
	ModelTier string `json:"model_tier,omitempty" yaml:"model_tier,omitempty"` // Evaluator tier override

	// Background text handed to generators and the evaluator
	TechContext string `json:"tech_context,omitempty" yaml:"tech_context,omitempty"`
	CodebaseMap string `json:"codebase_map,omitempty" yaml:"codebase_map,omitempty"`

	// Runtime
	LogLevel           string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat          string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	Port               int    `json:"port,omitempty" yaml:"port,omitempty"`
	RecoverConcurrency int    `json:"recover_concurrency,omitempty" yaml:"recover_concurrency,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		MaxIterations:       DefaultMaxIterations,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		TeamID:              DefaultTeamID,
		CheckpointBackend:   DefaultBackend,
		CheckpointDir:       DefaultCheckpointDir,
		SQLitePath:          DefaultSQLitePath,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		Port:                DefaultPort,
		RecoverConcurrency:  DefaultRecoverConcurrency,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overlays values set in the environment. Variables that are unset
// or empty leave the field alone.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("QA_CHECKPOINT_BACKEND"); v != "" {
		c.CheckpointBackend = v
	}
	if v := os.Getenv("QA_CHECKPOINT_DIR"); v != "" {
		c.CheckpointDir = v
	}
	if v := os.Getenv("QA_TEAM_ID"); v != "" {
		c.TeamID = v
	}
	if v := os.Getenv("QA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("QA_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QA_MAX_ITERATIONS: %v", err)
		}
		c.MaxIterations = n
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %v", err)
		}
		c.Port = n
	}
	return nil
}

// Validate checks that the configuration has valid values. It should be
// called after MergeWithDefaults.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("config error: 'max_iterations' must be at least 1")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("config error: 'confidence_threshold' must be between 0 and 1")
	}
	if c.RecoverConcurrency < 0 {
		return fmt.Errorf("config error: 'recover_concurrency' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}

	switch c.CheckpointBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: postgres backend requires 'database_url'")
		}
	default:
		return fmt.Errorf("config error: unknown checkpoint backend %q", c.CheckpointBackend)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config error: 'log_format' must be text or json")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.TeamID == "" {
		result.TeamID = defaults.TeamID
	}
	if result.CheckpointBackend == "" {
		result.CheckpointBackend = defaults.CheckpointBackend
	}
	if result.CheckpointDir == "" {
		result.CheckpointDir = defaults.CheckpointDir
	}
	if result.SQLitePath == "" {
		result.SQLitePath = defaults.SQLitePath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.ModelTier == "" {
		result.ModelTier = defaults.ModelTier
	}
	if result.TechContext == "" {
		result.TechContext = defaults.TechContext
	}
	if result.CodebaseMap == "" {
		result.CodebaseMap = defaults.CodebaseMap
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}

	// Numeric fields: use default if zero
	if result.MaxIterations == 0 {
		result.MaxIterations = defaults.MaxIterations
	}
	if result.ConfidenceThreshold == 0 {
		result.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RecoverConcurrency == 0 {
		result.RecoverConcurrency = defaults.RecoverConcurrency
	}

	return result
}

// Resolve reads path (if non-empty), applies the environment and fills
// defaults. Callers that layer further overrides validate afterwards.
func Resolve(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	return &merged, nil
}

// Load is Resolve followed by Validate.
func Load(path string) (*Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
