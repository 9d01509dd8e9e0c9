package logger

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to log: debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`
	// Format selects the output format: json or console.
	Format string `yaml:"format" mapstructure:"format"`
	// Output selects the destination: stdout or stderr.
	Output string `yaml:"output" mapstructure:"output"`
	// NoColor disables ANSI colors in console format.
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
	// Timestamp enables a timestamp field on every entry.
	Timestamp bool `yaml:"timestamp" mapstructure:"timestamp"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}
