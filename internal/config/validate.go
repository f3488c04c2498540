package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateMatching() error {
	thresholds := []struct {
		key   string
		value int
	}{
		{"matching.strict_threshold", c.Matching.StrictThreshold},
		{"matching.direct_threshold", c.Matching.DirectThreshold},
		{"matching.rotation_threshold", c.Matching.RotationThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > maxThreshold {
			return fmt.Errorf("%s must be between 0 and %d", th.key, maxThreshold)
		}
	}
	if c.Matching.RotationThreshold < c.Matching.DirectThreshold {
		return errors.New("matching.rotation_threshold must be >= matching.direct_threshold")
	}
	if c.Matching.CanonicalizeTimeoutSeconds <= 0 {
		return errors.New("matching.canonicalize_timeout_seconds must be positive")
	}
	if c.Matching.Workers <= 0 {
		return errors.New("matching.workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
