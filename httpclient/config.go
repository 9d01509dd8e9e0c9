package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/filepipe/resilience"
)

const defaultTimeout = 60 * time.Second

// Config configures the HTTP source client.
type Config struct {
	// Timeout bounds each individual request. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Retry configures retry behavior for idempotent reads. When nil,
	// DefaultRetryConfig is applied unless DisableRetry is set.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`

	// DisableRetry turns retries off entirely.
	DisableRetry bool `yaml:"disable_retry" mapstructure:"disable_retry"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.DisableRetry {
		c.Retry = nil
	} else if c.Retry == nil {
		c.Retry = DefaultRetryConfig()
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}

// DefaultRetryConfig returns a retry policy suitable for range reads.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	return &cfg
}
