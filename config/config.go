package config

import (
	"time"

	"github.com/kbukum/filepipe/logger"
	"github.com/kbukum/filepipe/validation"
)

// Config is the root configuration for the pipeline server.
type Config struct {
	Base    BaseConfig    `yaml:"base" mapstructure:"base"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logger  logger.Config `yaml:"logger" mapstructure:"logger"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Limits  LimitsConfig  `yaml:"limits" mapstructure:"limits"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// BaseConfig contains essential fields every deployment needs.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port" validate:"gt=0,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// RedisConfig configures the single-use token store.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"required"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AuthConfig configures JWT verification of pipeline payloads.
type AuthConfig struct {
	// JWTSecret signs and verifies pipeline payload tokens. Empty disables
	// signature verification (payloads stored as plain JSON).
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	// ServerKeyFile points to the crypt4gh private key of this server.
	ServerKeyFile string `yaml:"server_key_file" mapstructure:"server_key_file"`
	// ServerKeyPassphrase unlocks ServerKeyFile when it is encrypted.
	ServerKeyPassphrase string `yaml:"server_key_passphrase" mapstructure:"server_key_passphrase"`
}

// LimitsConfig bounds resource usage of pipeline execution.
type LimitsConfig struct {
	// MaxBufferBytes caps how much of a non-seekable stream may be
	// buffered in memory when a step needs random access.
	MaxBufferBytes int64 `yaml:"max_buffer_bytes" mapstructure:"max_buffer_bytes" validate:"gt=0"`
	// HTTPTimeout bounds individual range requests to source URLs.
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Base.Name == "" {
		c.Base.Name = "filepipe"
	}
	if c.Base.Environment == "" {
		c.Base.Environment = "development"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Responses stream potentially large files.
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Limits.MaxBufferBytes == 0 {
		c.Limits.MaxBufferBytes = 100 << 20
	}
	if c.Limits.HTTPTimeout == 0 {
		c.Limits.HTTPTimeout = 60 * time.Second
	}
	c.Logger.ApplyDefaults()
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
