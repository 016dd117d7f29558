package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// AppConfig names the service in logs and traces
type AppConfig struct {
	Name string `yaml:"name" validate:"required"`
}

// EngineConfig tunes the dispatch engine
type EngineConfig struct {
	// StrictInvariants panics on internal invariant violations
	StrictInvariants bool `yaml:"strictInvariants"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Port                int    `yaml:"port" validate:"required,min=1,max=65535"`
	GracefulShutdownSec int    `yaml:"gracefulShutdownSec" validate:"gte=0"`
	AllowOrigin         string `yaml:"allowOrigin"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// JournalConfig enables the SQLite event journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// RedisConfig enables the redis pub/sub event sink
type RedisConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs" validate:"required_if=Enabled true"`
	Password string   `yaml:"password"`
	Channel  string   `yaml:"channel" validate:"required_if=Enabled true"`
}

// KafkaConfig enables the kafka event sink
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `yaml:"topic" validate:"required_if=Enabled true"`
}

// TraceConfig selects the trace exporter
type TraceConfig struct {
	Exporter       string `yaml:"exporter" validate:"oneof=none stdout jaeger"`
	JaegerEndpoint string `yaml:"jaegerEndpoint" validate:"required_if=Exporter jaeger"`
}

// EventsConfig sizes the event publisher buffer
type EventsConfig struct {
	BufferSize int `yaml:"bufferSize" validate:"gte=0"`
}

// Config holds all configuration for an order-dispatch process
type Config struct {
	App     *AppConfig     `yaml:"app" validate:"required"`
	Engine  *EngineConfig  `yaml:"engine" validate:"required"`
	HTTP    *HTTPConfig    `yaml:"http" validate:"required"`
	Log     *LogConfig     `yaml:"log" validate:"required"`
	Journal *JournalConfig `yaml:"journal" validate:"required"`
	Redis   *RedisConfig   `yaml:"redis" validate:"required"`
	Kafka   *KafkaConfig   `yaml:"kafka" validate:"required"`
	Trace   *TraceConfig   `yaml:"trace" validate:"required"`
	Events  *EventsConfig  `yaml:"events" validate:"required"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		App:     &AppConfig{Name: "order-dispatch"},
		Engine:  &EngineConfig{},
		HTTP:    &HTTPConfig{Port: 8080, GracefulShutdownSec: 10, AllowOrigin: "*"},
		Log:     &LogConfig{Level: "info", Format: "json"},
		Journal: &JournalConfig{Enabled: true, Path: "orders.db"},
		Redis:   &RedisConfig{Channel: "order-dispatch.events"},
		Kafka:   &KafkaConfig{Topic: "order-dispatch.events"},
		Trace:   &TraceConfig{Exporter: "none"},
		Events:  &EventsConfig{BufferSize: 1024},
	}
}

// Load reads a YAML config file, expanding ${VAR} references from the
// environment. Sections missing from the file keep their defaults. An empty
// path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := Parse([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	return nil
}
