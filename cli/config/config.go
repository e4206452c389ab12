package config

import (
	"fmt"
	"time"
)

// Config represents a copyem.yaml configuration file.
// All values are optional and act as defaults for copyem run flags.
// CLI flags always override config values.
type Config struct {
	// Include is the filename pattern filter applied during inventory.
	Include string `yaml:"include"`
	// Speed is the assumed outgoing link speed, e.g. "20M".
	Speed string `yaml:"speed"`
	// Latency is the per-file setup cost in seconds.
	Latency float64 `yaml:"latency"`
	// BufferSize sizes each stream's memory buffer, e.g. "1G".
	BufferSize string `yaml:"buffer_size"`
	// Parallel is the number of concurrent streams.
	Parallel int `yaml:"parallel"`
	// MaxRetries bounds recovery attempts after the first.
	MaxRetries int `yaml:"max_retries"`
	// RetryDelay is the pause between attempts, e.g. "5s".
	RetryDelay Duration `yaml:"retry_delay"`
	// LogFile overrides the default timestamped run log path.
	LogFile string `yaml:"log_file"`
	// Report is a path for the JSON run report, "-" for stderr.
	Report string `yaml:"report"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
