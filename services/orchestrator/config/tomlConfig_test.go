package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	testString := `
[Adapter]
    Type = "locust"
    TestFile = "locustfile.py"
    Host = "127.0.0.1"
    Port = 8090
    External = true

[Strategy]
    Type = "target_rps"
    InitialUsers = 10
    TargetRPS = 100.0
    Tolerance = 0.05
    TestDurationInSeconds = 60.0

[Orchestrator]
    MonitoringIntervalInSeconds = 5.0
    StabilizationTimeInSeconds = 10.0
    WindowSize = 5
    MaxUsers = 500
    SpawnRate = 20.0

[Web]
    ListenAddress = "127.0.0.1:9090"
    SQLitePath = ":memory:"
`

	expectedCfg := Config{
		Adapter: AdapterConfig{
			Type:     "locust",
			TestFile: "locustfile.py",
			Host:     "127.0.0.1",
			Port:     8090,
			External: true,
		},
		Strategy: StrategyConfig{
			Type:                  "target_rps",
			InitialUsers:          10,
			TargetRPS:             100,
			Tolerance:             0.05,
			TestDurationInSeconds: 60,
		},
		Orchestrator: OrchestratorConfig{
			MonitoringIntervalInSeconds: 5,
			StabilizationTimeInSeconds:  10,
			WindowSize:                  5,
			MaxUsers:                    500,
			SpawnRate:                   20,
		},
		Web: WebConfig{
			ListenAddress: "127.0.0.1:9090",
			SQLitePath:    ":memory:",
		},
	}

	cfg := Config{}

	err := toml.Unmarshal([]byte(testString), &cfg)
	assert.Nil(t, err)
	assert.Equal(t, expectedCfg, cfg)
}

func TestConfigYAML(t *testing.T) {
	t.Parallel()

	testString := `
adapter:
  type: locust
  test_file: locustfile.py
strategy:
  type: degradation_search
  mode: baseline
  baseline_window: 10
  check_window: 3
  multiplier: 1.5
orchestrator:
  monitoring_interval: 2
  max_users: 300
`

	expectedCfg := Config{
		Adapter: AdapterConfig{
			Type:     "locust",
			TestFile: "locustfile.py",
		},
		Strategy: StrategyConfig{
			Type:           "degradation_search",
			Mode:           "baseline",
			BaselineWindow: 10,
			CheckWindow:    3,
			Multiplier:     1.5,
		},
		Orchestrator: OrchestratorConfig{
			MonitoringIntervalInSeconds: 2,
			MaxUsers:                    300,
		},
	}

	cfg := Config{}

	err := yaml.Unmarshal([]byte(testString), &cfg)
	assert.Nil(t, err)
	assert.Equal(t, expectedCfg, cfg)
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	require.Nil(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file should error", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Nil(t, cfg)
		assert.ErrorContains(t, err, "failed to read config file")
	})
	t.Run("unsupported extension should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "config.json", "{}")
		cfg, err := LoadConfig(path)
		assert.Nil(t, cfg)
		assert.ErrorIs(t, err, ErrUnsupportedConfigFormat)
	})
	t.Run("malformed yaml should error", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "config.yaml", "adapter: [unclosed")
		cfg, err := LoadConfig(path)
		assert.Nil(t, cfg)
		assert.ErrorContains(t, err, "failed to decode config file")
	})
	t.Run("missing strategy type should error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		testFile := writeFile(t, dir, "locustfile.py", "")
		path := writeFile(t, dir, "config.yml", "adapter:\n  type: locust\n  test_file: "+testFile+"\n")
		cfg, err := LoadConfig(path)
		assert.Nil(t, cfg)
		assert.ErrorIs(t, err, ErrMissingKey)
		assert.ErrorContains(t, err, "strategy.type")
	})
	t.Run("missing test file should error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeFile(t, dir, "config.yaml", "adapter:\n  type: locust\n  test_file: "+filepath.Join(dir, "nope.py")+"\nstrategy:\n  type: canary\n")
		cfg, err := LoadConfig(path)
		assert.Nil(t, cfg)
		assert.ErrorIs(t, err, ErrTestFileNotFound)
	})
	t.Run("toml file should load with defaults", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		testFile := writeFile(t, dir, "locustfile.py", "")
		content := "[Adapter]\nType = \"locust\"\nTestFile = \"" + filepath.ToSlash(testFile) + "\"\n[Strategy]\nType = \"break_point\"\n"
		path := writeFile(t, dir, "config.toml", content)

		cfg, err := LoadConfig(path)
		require.Nil(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Adapter.Host)
		assert.Equal(t, 8089, cfg.Adapter.Port)
		assert.Equal(t, 5.0, cfg.Orchestrator.MonitoringIntervalInSeconds)
		assert.Equal(t, 10.0, cfg.Orchestrator.StabilizationTimeInSeconds)
		assert.Equal(t, 5, cfg.Orchestrator.WindowSize)
		assert.Equal(t, 10.0, cfg.Orchestrator.SpawnRate)
		assert.Equal(t, 120.0, cfg.Orchestrator.ReadyTimeoutInSeconds)
		assert.Equal(t, uint(3), cfg.Orchestrator.StatsRetries)
		assert.Equal(t, "127.0.0.1:8080", cfg.Web.ListenAddress)
		assert.Equal(t, ":memory:", cfg.Web.SQLitePath)
		assert.Equal(t, "break_point", cfg.Strategy.Type)
	})
	t.Run("toml integer durations should load into float fields", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		testFile := writeFile(t, dir, "locustfile.py", "")
		content := "[Adapter]\nType = \"locust\"\nTestFile = \"" + filepath.ToSlash(testFile) + "\"\n" +
			"[Strategy]\nType = \"target_rps\"\nTargetRPS = 100\nTestDurationInSeconds = 60\n" +
			"[Orchestrator]\nMonitoringIntervalInSeconds = 5\nMaxUsers = 500\nSpawnRate = 20\n"
		path := writeFile(t, dir, "config.toml", content)

		cfg, err := LoadConfig(path)
		require.Nil(t, err)
		assert.Equal(t, 60.0, cfg.Strategy.TestDurationInSeconds)
		assert.Equal(t, 100.0, cfg.Strategy.TargetRPS)
		assert.Equal(t, 5.0, cfg.Orchestrator.MonitoringIntervalInSeconds)
		assert.Equal(t, 500, cfg.Orchestrator.MaxUsers)
		assert.Equal(t, 20.0, cfg.Orchestrator.SpawnRate)
	})
}

func TestValidate_NegativeValues(t *testing.T) {
	t.Parallel()

	testFile := writeFile(t, t.TempDir(), "locustfile.py", "")
	cfg := Config{
		Adapter:  AdapterConfig{Type: "locust", TestFile: testFile},
		Strategy: StrategyConfig{Type: "canary"},
	}
	cfg.ApplyDefaults()
	assert.Nil(t, cfg.Validate())

	cfg.Orchestrator.MaxUsers = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidValue)
}
