package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/drlog/pkg/sink"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.Enabled)
	assert.Equal(t, int32(0), config.PartitionID)
	assert.Equal(t, 2*1024*1024, config.Stream.DefaultCapacity)
	assert.Equal(t, 50*1024*1024, config.Stream.MaxBufferSize)
	assert.Equal(t, time.Second, config.Stream.FlushInterval)
	assert.Equal(t, "file", config.Sink.Type)
	assert.Equal(t, "./data", config.Sink.Dir)
	assert.Equal(t, int64(sink.DefaultSegmentSize), config.Sink.SegmentSize)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Empty(t, config.Metrics.Addr)
	require.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		expectedConfig := DefaultConfig()
		expectedConfig.PartitionID = 12
		expectedConfig.Stream.FlushInterval = 250 * time.Millisecond
		expectedConfig.Sink = Sink{
			Type: "kafka",
			Kafka: Kafka{
				Brokers:      []string{"localhost:9092"},
				Topic:        "dr.changes",
				WriteTimeout: 5 * time.Second,
			},
		}
		expectedConfig.Logging.Level = "debug"
		expectedConfig.Metrics.Addr = ":9200"

		err := SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("missing keys keep defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		err := os.WriteFile(configPath, []byte("partition_id: 3\nstream:\n  flush_interval: 2s\n"), 0644)
		require.NoError(t, err)

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, int32(3), config.PartitionID)
		assert.Equal(t, 2*time.Second, config.Stream.FlushInterval)
		assert.Equal(t, 2*1024*1024, config.Stream.DefaultCapacity)
		assert.Equal(t, "file", config.Sink.Type)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("load invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		err := os.WriteFile(configPath, []byte("sink:\n  type: carrier-pigeon\n"), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "capacity below an empty transaction", mutate: func(c *Config) { c.Stream.DefaultCapacity = 16 }},
		{name: "max buffer below capacity", mutate: func(c *Config) { c.Stream.MaxBufferSize = 1024 }},
		{name: "negative flush interval", mutate: func(c *Config) { c.Stream.FlushInterval = -time.Second }},
		{name: "file sink without dir", mutate: func(c *Config) { c.Sink.Dir = "" }},
		{name: "pebble sink without dir", mutate: func(c *Config) { c.Sink.Type = "pebble"; c.Sink.Dir = "" }},
		{name: "kafka sink without brokers", mutate: func(c *Config) { c.Sink.Type = "kafka" }},
		{name: "unknown sink", mutate: func(c *Config) { c.Sink.Type = "s3" }},
		{name: "unknown column type", mutate: func(c *Config) { c.Tables[0].Columns[0].Type = "DECIMAL" }},
		{name: "duplicate table", mutate: func(c *Config) { c.Tables = append(c.Tables, c.Tables[0]) }},
		{name: "table without columns", mutate: func(c *Config) { c.Tables = append(c.Tables, Table{Name: "empty"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), ErrInvalid)
		})
	}

	t.Run("memory sink needs nothing", func(t *testing.T) {
		config := DefaultConfig()
		config.Sink = Sink{Type: "memory"}
		assert.NoError(t, config.Validate())
	})
}

func TestRegistry(t *testing.T) {
	config := DefaultConfig()
	reg, err := config.Registry()
	require.NoError(t, err)

	table, err := reg.Lookup("ORDERS")
	require.NoError(t, err)
	assert.Equal(t, 4, table.Schema().ColumnCount())
	assert.True(t, table.Schema().Column(2).Nullable)
	assert.Equal(t, "id BIGINT, customer VARCHAR, amount FLOAT NULL, created_at TIMESTAMP", table.Schema().String())
}

func TestStreamConfig(t *testing.T) {
	config := DefaultConfig()
	config.Stream.DefaultCapacity = 4096
	sc := config.StreamConfig()
	assert.Equal(t, 4096, sc.DefaultCapacity)
	assert.Equal(t, config.Stream.MaxBufferSize, sc.MaxBufferSize)
	assert.Equal(t, config.Stream.FlushInterval, sc.FlushInterval)
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := DefaultConfig()

	err := SaveConfig(config, configPath)
	require.NoError(t, err)

	// Verify file exists
	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Verify content
	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, config.Sink.Dir)
	assert.Equal(t, "file", config.Sink.Type)
	assert.Equal(t, "info", config.Logging.Level)

	// Verify file was created
	assert.True(t, ConfigExists(configPath))

	// Verify we can load it back
	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "drlog")
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err := os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLKeys(t *testing.T) {
	data, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	for _, key := range []string{"partition_id", "enabled", "stream", "sink", "tables", "logging", "metrics"} {
		assert.Contains(t, raw, key)
	}
	stream := raw["stream"].(map[string]any)
	assert.Equal(t, "1s", stream["flush_interval"])
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// A regular file in the path makes MkdirAll fail, even for root
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	err := SaveConfig(config, filepath.Join(file, "sub", "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
