package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlots()
	c.normalizeTransfer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		if value, ok := os.LookupEnv("PLOTARCHIVER_STAGING_DIR"); ok {
			c.Paths.StagingDir = value
		}
	}
	if strings.TrimSpace(c.Paths.DestinationsFile) == "" {
		if value, ok := os.LookupEnv("PLOTARCHIVER_DESTINATIONS_FILE"); ok {
			c.Paths.DestinationsFile = value
		}
	}

	var err error
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.DestinationsFile, err = expandPath(strings.TrimSpace(c.Paths.DestinationsFile)); err != nil {
		return fmt.Errorf("paths.destinations_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlots() {
	c.Plots.Marker = strings.ToLower(strings.TrimSpace(c.Plots.Marker))
	if c.Plots.Marker == "" {
		c.Plots.Marker = defaultPlotMarker
	}
	c.Plots.TempMarker = strings.ToLower(strings.TrimSpace(c.Plots.TempMarker))
	if c.Plots.TempMarker == "" {
		c.Plots.TempMarker = defaultPlotTempMarker
	}
	c.Plots.Suffix = strings.ToLower(strings.TrimSpace(c.Plots.Suffix))
	if c.Plots.Suffix == "" {
		c.Plots.Suffix = defaultPlotSuffix
	}
}

func (c *Config) normalizeTransfer() {
	c.Transfer.Checksum = strings.ToLower(strings.TrimSpace(c.Transfer.Checksum))
	if c.Transfer.Checksum == "" {
		c.Transfer.Checksum = defaultChecksum
	}
	if c.Transfer.IdleBackoffMillis == 0 {
		c.Transfer.IdleBackoffMillis = defaultIdleBackoffMillis
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
