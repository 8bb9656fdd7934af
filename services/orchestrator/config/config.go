package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AdapterConfig defines the load generator integration
type AdapterConfig struct {
	Type     string `toml:"Type" yaml:"type" json:"type"`
	TestFile string `toml:"TestFile" yaml:"test_file" json:"test_file"`
	Host     string `toml:"Host" yaml:"host" json:"host"`
	Port     int    `toml:"Port" yaml:"port" json:"port"`
	External bool   `toml:"External" yaml:"external" json:"external"`
	Command  string `toml:"Command" yaml:"command" json:"command"`
}

// StrategyConfig holds the strategy type and the flat set of type specific keys.
// Keys not used by the selected strategy are ignored.
type StrategyConfig struct {
	Type                  string  `toml:"Type" yaml:"type" json:"type"`
	InitialUsers          int     `toml:"InitialUsers" yaml:"initial_users" json:"initial_users"`
	WaitTimeInSeconds     float64 `toml:"WaitTimeInSeconds" yaml:"wait_time" json:"wait_time"`
	MaxUsers              int     `toml:"MaxUsers" yaml:"max_users" json:"max_users"`
	MaxDegradation        float64 `toml:"MaxDegradation" yaml:"max_degradation" json:"max_degradation"`
	GrowthFactor          float64 `toml:"GrowthFactor" yaml:"growth_factor" json:"growth_factor"`
	ErrorRateThreshold    float64 `toml:"ErrorRateThreshold" yaml:"error_rate_threshold" json:"error_rate_threshold"`
	Mode                  string  `toml:"Mode" yaml:"mode" json:"mode"`
	StepUsers             int     `toml:"StepUsers" yaml:"step_users" json:"step_users"`
	WarmupSamples         int     `toml:"WarmupSamples" yaml:"warmup_samples" json:"warmup_samples"`
	VoteWindow            int     `toml:"VoteWindow" yaml:"vote_window" json:"vote_window"`
	VoteThreshold         int     `toml:"VoteThreshold" yaml:"vote_threshold" json:"vote_threshold"`
	SDIThreshold          float64 `toml:"SDIThreshold" yaml:"sdi_threshold" json:"sdi_threshold"`
	BaselineWindow        int     `toml:"BaselineWindow" yaml:"baseline_window" json:"baseline_window"`
	CheckWindow           int     `toml:"CheckWindow" yaml:"check_window" json:"check_window"`
	Multiplier            float64 `toml:"Multiplier" yaml:"multiplier" json:"multiplier"`
	MinErrorRate          float64 `toml:"MinErrorRate" yaml:"min_error_rate" json:"min_error_rate"`
	MaxP99                float64 `toml:"MaxP99" yaml:"max_p99" json:"max_p99"`
	MaxErrorRate          float64 `toml:"MaxErrorRate" yaml:"max_error_rate" json:"max_error_rate"`
	StepMultiplier        float64 `toml:"StepMultiplier" yaml:"step_multiplier" json:"step_multiplier"`
	TargetRPS             float64 `toml:"TargetRPS" yaml:"target_rps" json:"target_rps"`
	Tolerance             float64 `toml:"Tolerance" yaml:"tolerance" json:"tolerance"`
	TestDurationInSeconds float64 `toml:"TestDurationInSeconds" yaml:"test_duration" json:"test_duration"`

	BaselineUsers             int     `toml:"BaselineUsers" yaml:"baseline_users" json:"baseline_users"`
	BaselineDurationInSeconds float64 `toml:"BaselineDurationInSeconds" yaml:"baseline_duration" json:"baseline_duration"`
	SpikeUsers                int     `toml:"SpikeUsers" yaml:"spike_users" json:"spike_users"`
	SpikeDurationInSeconds    float64 `toml:"SpikeDurationInSeconds" yaml:"spike_duration" json:"spike_duration"`
	RecoveryUsers             int     `toml:"RecoveryUsers" yaml:"recovery_users" json:"recovery_users"`
	RecoveryDurationInSeconds float64 `toml:"RecoveryDurationInSeconds" yaml:"recovery_duration" json:"recovery_duration"`
	AbortErrorRate            float64 `toml:"AbortErrorRate" yaml:"abort_error_rate" json:"abort_error_rate"`

	StepSize              int     `toml:"StepSize" yaml:"step_size" json:"step_size"`
	StepDurationInSeconds float64 `toml:"StepDurationInSeconds" yaml:"step_duration" json:"step_duration"`
	UnstableChecks        int     `toml:"UnstableChecks" yaml:"unstable_checks" json:"unstable_checks"`

	CanaryUsers             int     `toml:"CanaryUsers" yaml:"canary_users" json:"canary_users"`
	CanaryDurationInSeconds float64 `toml:"CanaryDurationInSeconds" yaml:"canary_duration" json:"canary_duration"`
	CanaryMaxErrorRate      float64 `toml:"CanaryMaxErrorRate" yaml:"canary_max_error_rate" json:"canary_max_error_rate"`
	CanaryMaxP99            float64 `toml:"CanaryMaxP99" yaml:"canary_max_p99" json:"canary_max_p99"`

	TargetUsers     int `toml:"TargetUsers" yaml:"target_users" json:"target_users"`
	StabilityChecks int `toml:"StabilityChecks" yaml:"stability_checks" json:"stability_checks"`
}

// OrchestratorConfig defines the control loop cadence and the global limits
type OrchestratorConfig struct {
	MonitoringIntervalInSeconds float64 `toml:"MonitoringIntervalInSeconds" yaml:"monitoring_interval" json:"monitoring_interval"`
	StabilizationTimeInSeconds  float64 `toml:"StabilizationTimeInSeconds" yaml:"stabilization_time" json:"stabilization_time"`
	WindowSize                  int     `toml:"WindowSize" yaml:"window_size" json:"window_size"`
	MaxUsers                    int     `toml:"MaxUsers" yaml:"max_users" json:"max_users"`
	SpawnRate                   float64 `toml:"SpawnRate" yaml:"spawn_rate" json:"spawn_rate"`
	TickIntervalInSeconds       float64 `toml:"TickIntervalInSeconds" yaml:"tick_interval" json:"tick_interval"`
	ReadyTimeoutInSeconds       float64 `toml:"ReadyTimeoutInSeconds" yaml:"ready_timeout" json:"ready_timeout"`
	RequestTimeoutInSeconds     float64 `toml:"RequestTimeoutInSeconds" yaml:"request_timeout" json:"request_timeout"`
	StatsRetries                uint    `toml:"StatsRetries" yaml:"stats_retries" json:"stats_retries"`
}

// WebConfig defines the management surface
type WebConfig struct {
	ListenAddress               string  `toml:"ListenAddress" yaml:"listen_address" json:"listen_address"`
	StatusPushIntervalInSeconds float64 `toml:"StatusPushIntervalInSeconds" yaml:"status_push_interval" json:"status_push_interval"`
	SQLitePath                  string  `toml:"SQLitePath" yaml:"sqlite_path" json:"sqlite_path"`
	RetainedRuns                int     `toml:"RetainedRuns" yaml:"retained_runs" json:"retained_runs"`
}

// Config maps to the orchestrator configuration file
type Config struct {
	Adapter      AdapterConfig      `toml:"Adapter" yaml:"adapter" json:"adapter"`
	Strategy     StrategyConfig     `toml:"Strategy" yaml:"strategy" json:"strategy"`
	Orchestrator OrchestratorConfig `toml:"Orchestrator" yaml:"orchestrator" json:"orchestrator"`
	Web          WebConfig          `toml:"Web" yaml:"web" json:"web"`
}

// LoadConfig parses a TOML or YAML file (chosen by extension) into the Config struct.
// Defaults are applied and the result is validated.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	cfg, err := decode(filePath, data)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(filePath string, data []byte) (*Config, error) {
	var cfg Config
	var err error

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills in the zero valued keys
func (cfg *Config) ApplyDefaults() {
	if cfg.Adapter.Host == "" {
		cfg.Adapter.Host = "0.0.0.0"
	}
	if cfg.Adapter.Port == 0 {
		cfg.Adapter.Port = 8089
	}

	o := &cfg.Orchestrator
	if o.MonitoringIntervalInSeconds == 0 {
		o.MonitoringIntervalInSeconds = 5
	}
	if o.StabilizationTimeInSeconds == 0 {
		o.StabilizationTimeInSeconds = 10
	}
	if o.WindowSize == 0 {
		o.WindowSize = 5
	}
	if o.SpawnRate == 0 {
		o.SpawnRate = 10
	}
	if o.TickIntervalInSeconds == 0 {
		o.TickIntervalInSeconds = 1
	}
	if o.ReadyTimeoutInSeconds == 0 {
		o.ReadyTimeoutInSeconds = 120
	}
	if o.RequestTimeoutInSeconds == 0 {
		o.RequestTimeoutInSeconds = 10
	}
	if o.StatsRetries == 0 {
		o.StatsRetries = 3
	}

	if cfg.Web.ListenAddress == "" {
		cfg.Web.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Web.StatusPushIntervalInSeconds == 0 {
		cfg.Web.StatusPushIntervalInSeconds = 2
	}
	if cfg.Web.SQLitePath == "" {
		cfg.Web.SQLitePath = ":memory:"
	}
	if cfg.Web.RetainedRuns == 0 {
		cfg.Web.RetainedRuns = 20
	}
}

// Validate checks the required keys and that the referenced test file exists
func (cfg *Config) Validate() error {
	if cfg.Adapter.Type == "" {
		return fmt.Errorf("%w: adapter.type", ErrMissingKey)
	}
	if cfg.Adapter.TestFile == "" {
		return fmt.Errorf("%w: adapter.test_file", ErrMissingKey)
	}
	if cfg.Strategy.Type == "" {
		return fmt.Errorf("%w: strategy.type", ErrMissingKey)
	}
	if cfg.Orchestrator.MaxUsers < 0 {
		return fmt.Errorf("%w: orchestrator.max_users must not be negative", ErrInvalidValue)
	}
	if cfg.Orchestrator.SpawnRate < 0 {
		return fmt.Errorf("%w: orchestrator.spawn_rate must not be negative", ErrInvalidValue)
	}

	info, err := os.Stat(cfg.Adapter.TestFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrTestFileNotFound, cfg.Adapter.TestFile)
		}
		return fmt.Errorf("failed to check test file '%s': %w", cfg.Adapter.TestFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrTestFileNotFound, cfg.Adapter.TestFile)
	}

	return nil
}

// MonitoringInterval returns the monitor timer period
func (o OrchestratorConfig) MonitoringInterval() time.Duration {
	return secondsToDuration(o.MonitoringIntervalInSeconds)
}

// StabilizationTime returns the wait after the initial load was applied
func (o OrchestratorConfig) StabilizationTime() time.Duration {
	return secondsToDuration(o.StabilizationTimeInSeconds)
}

// TickInterval returns the control loop poll tick
func (o OrchestratorConfig) TickInterval() time.Duration {
	return secondsToDuration(o.TickIntervalInSeconds)
}

// ReadyTimeout returns the bound of the readiness wait
func (o OrchestratorConfig) ReadyTimeout() time.Duration {
	return secondsToDuration(o.ReadyTimeoutInSeconds)
}

// RequestTimeout returns the per request timeout towards the load generator
func (o OrchestratorConfig) RequestTimeout() time.Duration {
	return secondsToDuration(o.RequestTimeoutInSeconds)
}

// StatusPushInterval returns the period of the live status push
func (w WebConfig) StatusPushInterval() time.Duration {
	return secondsToDuration(w.StatusPushIntervalInSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
