package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"

	"plotarchiver/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The staging directory exists, the destination list file is empty, and the
// transfer delays are zero so cycles complete immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.DestinationsFile = filepath.Join(base, "destinations.txt")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Plots.MinSize = 4 * datasize.KB
	cfgVal.Transfer.SettleSeconds = 0
	cfgVal.Transfer.RetryDelaySeconds = 0
	cfgVal.Transfer.IdleBackoffMillis = 10
	cfgVal.Watch.Staging = false

	if err := os.MkdirAll(cfgVal.Paths.StagingDir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	if err := os.WriteFile(cfgVal.Paths.DestinationsFile, nil, 0o644); err != nil {
		t.Fatalf("write destination list: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkers sets the worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.Workers = n
	}
}

// WithChecksum selects the verification algorithm.
func WithChecksum(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.Checksum = name
	}
}

// WithDestinations creates one directory per name under the base directory
// and lists them in the destination list file.
func WithDestinations(names ...string) ConfigOption {
	return func(b *configBuilder) {
		paths := make([]string, 0, len(names))
		for _, name := range names {
			dir := filepath.Join(b.baseDir, name)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir destination %s: %v", name, err)
			}
			paths = append(paths, dir)
		}
		WriteDestinationList(b.t, b.cfg.Paths.DestinationsFile, paths...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// Destination returns the path WithDestinations created for name.
func Destination(cfg *config.Config, name string) string {
	return filepath.Join(BaseDir(cfg), name)
}
