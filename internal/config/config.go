package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the staging directory, destination list and log locations.
type Paths struct {
	StagingDir       string `toml:"staging_dir"`
	DestinationsFile string `toml:"destinations_file"`
	LogDir           string `toml:"log_dir"`
}

// Plots describes which staging files count as finished plots.
type Plots struct {
	// K is the plot category moved by this daemon (32 for k32 plots).
	K int `toml:"k"`
	// MinSize is the smallest byte size accepted for a complete plot.
	MinSize datasize.ByteSize `toml:"min_size"`
	// Marker must appear in the file name of a plot.
	Marker string `toml:"marker"`
	// TempMarker flags in-progress artifacts that are never moved.
	TempMarker string `toml:"temp_marker"`
	// Suffix is the extension of a finished plot.
	Suffix string `toml:"suffix"`
}

// Transfer contains worker pool and copy settings.
type Transfer struct {
	Workers           int    `toml:"workers"`
	SettleSeconds     int    `toml:"settle_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
	IdleBackoffMillis int    `toml:"idle_backoff_ms"`
	Checksum          string `toml:"checksum"`
}

// Watch toggles the optional wakeup sources that shorten idle backoff.
type Watch struct {
	Staging bool `toml:"staging"`
	Devices bool `toml:"devices"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the archiver.
//
// Configuration sections by subsystem:
//   - Paths: staging directory, destination list file, log directory
//   - Plots: file naming convention, category and minimum size
//   - Transfer: worker count, settle delay, retry bound, checksum
//   - Watch: filesystem and device event wakeups
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Plots    Plots    `toml:"plots"`
	Transfer Transfer `toml:"transfer"`
	Watch    Watch    `toml:"watch"`
	Logging  Logging  `toml:"logging"`
}

// Option mutates a decoded configuration before it is normalized. Command
// line flags are applied through options so they take precedence over the file.
type Option func(*Config)

// WithStagingDir overrides paths.staging_dir when value is non-empty.
func WithStagingDir(value string) Option {
	return func(c *Config) {
		if strings.TrimSpace(value) != "" {
			c.Paths.StagingDir = value
		}
	}
}

// WithDestinationsFile overrides paths.destinations_file when value is non-empty.
func WithDestinationsFile(value string) Option {
	return func(c *Config) {
		if strings.TrimSpace(value) != "" {
			c.Paths.DestinationsFile = value
		}
	}
}

// WithWorkers overrides transfer.workers when n is positive.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Transfer.Workers = n
		}
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string, opts ...Option) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("plotarchiver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. Staging and
// destination directories are owned by the operator and never created here.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "plotarchiver.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "plotarchiver.log")
}

// SettleDelay is the pause before copying a freshly selected plot.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Transfer.SettleSeconds) * time.Second
}

// RetryDelay is the pause between verification retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Transfer.RetryDelaySeconds) * time.Second
}

// IdleBackoff is how long a worker sleeps after a cycle without work.
func (c *Config) IdleBackoff() time.Duration {
	return time.Duration(c.Transfer.IdleBackoffMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
