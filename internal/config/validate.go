package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateParameters(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// paramWidth mirrors the fixed column width of the parameter table.
const paramWidth = 50

func (c *Config) validateParameters() error {
	if len(c.Parameters.SimCode) > paramWidth {
		return fmt.Errorf("parameters.sim_code must be at most %d characters", paramWidth)
	}
	if len(c.Parameters.Computer) > paramWidth {
		return fmt.Errorf("parameters.computer must be at most %d characters", paramWidth)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.TimeoutSeconds < 0 {
		return errors.New("synthesis.timeout_seconds must be zero (no timeout) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
