/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/drlog/pkg/catalog"
	"github.com/ssargent/drlog/pkg/sink"
	"github.com/ssargent/drlog/pkg/stream"
	"github.com/ssargent/drlog/pkg/tuple"
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents the drlog configuration
type Config struct {
	PartitionID int32   `yaml:"partition_id"`
	Enabled     bool    `yaml:"enabled"`
	Stream      Stream  `yaml:"stream"`
	Sink        Sink    `yaml:"sink"`
	Tables      []Table `yaml:"tables"`
	Logging     Logging `yaml:"logging"`
	Metrics     Metrics `yaml:"metrics"`
}

// Stream sizes the partition's stream blocks
type Stream struct {
	DefaultCapacity int           `yaml:"default_capacity"`
	MaxBufferSize   int           `yaml:"max_buffer_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
}

// Sink selects where sealed blocks go
type Sink struct {
	Type        string `yaml:"type"`
	Dir         string `yaml:"dir"`
	SegmentSize int64  `yaml:"segment_size"`
	Kafka       Kafka  `yaml:"kafka"`
}

// Kafka contains the Kafka sink settings
type Kafka struct {
	Brokers      []string      `yaml:"brokers,omitempty"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Table declares a replicated table
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column declares a table column. Type is a SQL type name such as BIGINT
// or VARCHAR.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics contains the metrics endpoint configuration. An empty Addr
// disables the endpoint.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PartitionID: 0,
		Enabled:     true,
		Stream: Stream{
			DefaultCapacity: stream.DefaultCapacity,
			MaxBufferSize:   stream.DefaultMaxBufferSize,
			FlushInterval:   time.Second,
		},
		Sink: Sink{
			Type:        "file",
			Dir:         "./data",
			SegmentSize: sink.DefaultSegmentSize,
			Kafka: Kafka{
				Topic:        "drlog",
				WriteTimeout: 10 * time.Second,
			},
		},
		Tables: []Table{
			{
				Name: "orders",
				Columns: []Column{
					{Name: "id", Type: "BIGINT"},
					{Name: "customer", Type: "VARCHAR"},
					{Name: "amount", Type: "FLOAT", Nullable: true},
					{Name: "created_at", Type: "TIMESTAMP"},
				},
			},
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the stream or sink would
// reject.
func (c *Config) Validate() error {
	if err := c.StreamConfig().Validate(); err != nil {
		return fmt.Errorf("%w: stream: %v", ErrInvalid, err)
	}

	switch strings.ToLower(c.Sink.Type) {
	case "file", "pebble":
		if c.Sink.Dir == "" {
			return fmt.Errorf("%w: sink.dir is required for the %s sink", ErrInvalid, c.Sink.Type)
		}
	case "kafka":
		if len(c.Sink.Kafka.Brokers) == 0 || c.Sink.Kafka.Topic == "" {
			return fmt.Errorf("%w: sink.kafka.brokers and sink.kafka.topic are required", ErrInvalid)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown sink type %q", ErrInvalid, c.Sink.Type)
	}

	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// StreamConfig returns the stream block sizing
func (c *Config) StreamConfig() stream.Config {
	return stream.Config{
		DefaultCapacity: c.Stream.DefaultCapacity,
		MaxBufferSize:   c.Stream.MaxBufferSize,
		FlushInterval:   c.Stream.FlushInterval,
	}
}

// Registry builds the table catalog from the declared tables
func (c *Config) Registry() (*catalog.Registry, error) {
	reg := catalog.NewRegistry()
	for _, t := range c.Tables {
		columns := make([]tuple.Column, 0, len(t.Columns))
		for _, col := range t.Columns {
			typ, err := tuple.ParseColumnType(col.Type)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", t.Name, col.Name, err)
			}
			columns = append(columns, tuple.Column{Name: col.Name, Type: typ, Nullable: col.Nullable})
		}
		schema, err := tuple.NewSchema(columns...)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if _, err := reg.Register(t.Name, schema); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// BootstrapConfig writes a default configuration storing data under dataDir
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Sink.Dir = dataDir
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./drlog.yaml"
	}

	// For Linux/macOS, use ~/.config/drlog/config.yaml
	configDir := filepath.Join(homeDir, ".config", "drlog")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
