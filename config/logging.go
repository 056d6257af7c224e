package config

import (
	"fmt"
)

// LoggingConfig defines settings for application log output.
type LoggingConfig struct {
	// Level is the minimum level emitted: "debug", "info", "warn" or "error".
	Level string `json:"level"`
	// Pretty switches to human-readable console output instead of JSON.
	Pretty bool `json:"pretty"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %s", c.Level)
}
