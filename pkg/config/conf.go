package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SOHMA_"

	// PathEnvVar names a config file when --config is not set.
	PathEnvVar = EnvPrefix + "CONFIG"

	dirMode  = 0700
	fileMode = 0600

	LogFormatCLI  = "cli"
	LogFormatText = "text"
	LogFormatJSON = "json"

	maxPort = 65535
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config represents app config object.
type Config struct {
	Server    Server    `yaml:"server" envPrefix:"SERVER_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type Server struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Telemetry controls OTLP trace export. Endpoint is a full URL such as
// http://localhost:4318.
type Telemetry struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Addr returns the host:port the server listens on.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Log: Log{
			Level:  "info",
			Format: LogFormatText,
		},
		Telemetry: Telemetry{
			ServiceName: "sohma",
		},
	}
}

// Load builds the config from defaults, the optional YAML file at path and
// SOHMA_* environment variables, in that order. An empty path falls back to
// $SOHMA_CONFIG; a path that was named but does not exist is an error.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}

	if path != "" {
		if err := readFile(path, c); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the values the server depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > maxPort {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}

	switch strings.ToLower(c.Log.Format) {
	case LogFormatCLI, LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of cli, text, json: %q", c.Log.Format))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint required when telemetry is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Save writes the config as YAML, creating the parent directory if needed.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", path, err)
	}

	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
