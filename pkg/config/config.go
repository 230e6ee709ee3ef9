// Package config loads launcher settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/launcher/pkg/health"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/workloads"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values
const (
	EnvDataDir    = "LAUNCHER_DATA_DIR"
	EnvLogLevel   = "LAUNCHER_LOG_LEVEL"
	EnvLogJSON    = "LAUNCHER_LOG_JSON"
	EnvAPIAddress = "LAUNCHER_API_ADDR"
	EnvKubeconfig = "LAUNCHER_KUBECONFIG"
)

// Config holds every tunable of the launcher
type Config struct {
	DataDir    string           `yaml:"dataDir"`
	Kubeconfig string           `yaml:"kubeconfig"`
	Namespace  string           `yaml:"namespace"`
	Release    string           `yaml:"release"`
	Log        LogConfig        `yaml:"log"`
	API        APIConfig        `yaml:"api"`
	Probes     ProbeConfig      `yaml:"probes"`
	Deployment DeploymentConfig `yaml:"deployment"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// APIConfig configures the read-only HTTP surface
type APIConfig struct {
	Address string `yaml:"address"`
}

// ProbeConfig bounds status probes
type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// DeploymentConfig tunes the orchestrator and the periodic re-poll
type DeploymentConfig struct {
	SettleDelay  time.Duration `yaml:"settleDelay"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	dataDir := ".launcher"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".launcher")
	}

	probes := health.DefaultConfig()
	return &Config{
		DataDir:    dataDir,
		Kubeconfig: workloads.DefaultKubeconfig(),
		Namespace:  workloads.DefaultNamespace,
		Release:    health.DefaultRelease,
		Log: LogConfig{
			Level: string(log.InfoLevel),
		},
		API: APIConfig{
			Address: "127.0.0.1:9440",
		},
		Probes: ProbeConfig{
			Timeout:     probes.Timeout,
			Concurrency: probes.Concurrency,
		},
		Deployment: DeploymentConfig{
			SettleDelay:  orchestrator.DefaultSettleDelay,
			PollInterval: 30 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config %q: %w", path, err)
		}
		if err := cfg.decode(data, path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte, source string) error {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %q: YAML parse error: %w", source, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		c.Log.JSON = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvAPIAddress); v != "" {
		c.API.Address = v
	}
	if v := os.Getenv(EnvKubeconfig); v != "" {
		c.Kubeconfig = v
	}
}

// Validate returns every problem found in one error
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "dataDir must not be empty")
	}
	if c.Namespace == "" {
		errs = append(errs, "namespace must not be empty")
	}
	if c.Release == "" {
		errs = append(errs, "release must not be empty")
	}
	if log.ParseLevel(c.Log.Level) != log.Level(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level %q: expected one of debug, info, warn, error", c.Log.Level))
	}
	if _, _, err := net.SplitHostPort(c.API.Address); err != nil {
		errs = append(errs, fmt.Sprintf("api.address %q: %v", c.API.Address, err))
	}
	if c.Probes.Timeout <= 0 {
		errs = append(errs, "probes.timeout must be positive")
	}
	if c.Probes.Concurrency < 1 {
		errs = append(errs, "probes.concurrency must be at least 1")
	}
	if c.Deployment.SettleDelay < 0 {
		errs = append(errs, "deployment.settleDelay must not be negative")
	}
	if c.Deployment.PollInterval < 0 {
		errs = append(errs, "deployment.pollInterval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoggerConfig returns the logger settings in the form log.Init expects
func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}

// HealthConfig returns the probe bounds for the health package
func (c *Config) HealthConfig() health.Config {
	return health.Config{
		Timeout:     c.Probes.Timeout,
		Concurrency: c.Probes.Concurrency,
	}
}
