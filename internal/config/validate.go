package config

import (
	"errors"
	"fmt"

	"plotarchiver/internal/fileutil"
	"plotarchiver/internal/plot"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePlots(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.staging_dir is required. Pass --dir, set PLOTARCHIVER_STAGING_DIR, or edit %s (create with 'plotarchiver config init')", defaultPath)
	}
	if c.Paths.DestinationsFile == "" {
		return errors.New("paths.destinations_file is required. Pass --conf or set PLOTARCHIVER_DESTINATIONS_FILE")
	}
	return nil
}

func (c *Config) validatePlots() error {
	if !plot.IsKnownCategory(plot.Category(c.Plots.K)) {
		return fmt.Errorf("plots.k must be one of %v, got %d", plot.KnownCategories(), c.Plots.K)
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.Workers < 1 {
		return errors.New("transfer.workers must be at least 1")
	}
	if c.Transfer.MaxAttempts < 1 {
		return errors.New("transfer.max_attempts must be at least 1")
	}
	if c.Transfer.SettleSeconds < 0 {
		return errors.New("transfer.settle_seconds must be >= 0")
	}
	if c.Transfer.RetryDelaySeconds < 0 {
		return errors.New("transfer.retry_delay_seconds must be >= 0")
	}
	if c.Transfer.IdleBackoffMillis < 0 {
		return errors.New("transfer.idle_backoff_ms must be positive")
	}
	if !fileutil.IsChecksumAlgorithm(c.Transfer.Checksum) {
		return fmt.Errorf("transfer.checksum: unsupported value %q (use %v)", c.Transfer.Checksum, fileutil.ChecksumAlgorithms())
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
