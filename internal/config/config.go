// Package config provides the configuration structure for kokoro-studio.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Default values applied when a field is absent from the project TOML, or
// when no project TOML is installed at all.
const (
	DefaultModelDir       = "model"
	DefaultLogsDir        = "logs"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8880
	DefaultMaxRetries     = 3
	DefaultBackoffSeconds = 2
	DefaultMinSpeed       = 0.5
	DefaultMaxSpeed       = 2.0
	DefaultTimeoutSeconds = 120
	DefaultOrtLibPath     = "lib/libonnxruntime.so"
)

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	ModelDir    string `toml:"model_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// ServerConfig holds the configuration for the local web server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ProvisionConfig holds the configuration for the model asset provisioner.
// The URL and checksum fields override the built-in manifest; empty values
// keep the pinned upstream release locations.
type ProvisionConfig struct {
	MaxRetries          int    `toml:"max_retries"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
	ModelURL            string `toml:"model_url"`
	ModelSHA256         string `toml:"model_sha256"`
	VoicesURL           string `toml:"voices_url"`
	VoicesSHA256        string `toml:"voices_sha256"`
}

// SynthesisConfig holds the configuration for the synthesis engine and the
// per-request validation bounds.
type SynthesisConfig struct {
	OnnxRuntimeLibPath string  `toml:"onnx_runtime_lib_path"`
	MinSpeed           float64 `toml:"min_speed"`
	MaxSpeed           float64 `toml:"max_speed"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
}

// Config is the root configuration structure.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Server    ServerConfig    `toml:"server"`
	Provision ProvisionConfig `toml:"provision"`
	Synthesis SynthesisConfig `toml:"synthesis"`
}

// Default returns a configuration populated entirely from built-in defaults.
// It is used when the central configurator cannot locate a project TOML,
// which is the common case for a desktop install.
func Default() *Config {
	cfg := &Config{
		Paths:     PathsConfig{ModelDir: "", BaseLogsDir: ""},
		Server:    ServerConfig{Host: "", Port: 0},
		Provision: ProvisionConfig{MaxRetries: 0, RetryBackoffSeconds: 0, ModelURL: "", ModelSHA256: "", VoicesURL: "", VoicesSHA256: ""},
		Synthesis: SynthesisConfig{OnnxRuntimeLibPath: "", MinSpeed: 0, MaxSpeed: 0, TimeoutSeconds: 0},
	}
	cfg.applyDefaults()

	return cfg
}

// Load loads the configuration through the central configurator and fills
// any unset fields with defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// ListenAddr returns the host:port pair the web server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) applyDefaults() {
	if c.Paths.ModelDir == "" {
		c.Paths.ModelDir = DefaultModelDir
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = DefaultLogsDir
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Provision.MaxRetries == 0 {
		c.Provision.MaxRetries = DefaultMaxRetries
	}

	if c.Provision.RetryBackoffSeconds == 0 {
		c.Provision.RetryBackoffSeconds = DefaultBackoffSeconds
	}

	if c.Synthesis.OnnxRuntimeLibPath == "" {
		c.Synthesis.OnnxRuntimeLibPath = DefaultOrtLibPath
	}

	if c.Synthesis.MinSpeed == 0 {
		c.Synthesis.MinSpeed = DefaultMinSpeed
	}

	if c.Synthesis.MaxSpeed == 0 {
		c.Synthesis.MaxSpeed = DefaultMaxSpeed
	}

	if c.Synthesis.TimeoutSeconds == 0 {
		c.Synthesis.TimeoutSeconds = DefaultTimeoutSeconds
	}
}
