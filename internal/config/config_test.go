package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"

	"plotarchiver/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plotarchiver.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithFlagOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("",
		config.WithStagingDir("~/staging"),
		config.WithDestinationsFile("~/dests.txt"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.StagingDir != filepath.Join(tempHome, "staging") {
		t.Fatalf("unexpected staging dir: %q", cfg.Paths.StagingDir)
	}
	if cfg.Paths.DestinationsFile != filepath.Join(tempHome, "dests.txt") {
		t.Fatalf("unexpected destinations file: %q", cfg.Paths.DestinationsFile)
	}
	wantLogDir := filepath.Join(tempHome, ".local", "share", "plotarchiver", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Plots.K != 32 {
		t.Fatalf("unexpected k: %d", cfg.Plots.K)
	}
	if cfg.Plots.MinSize != 108_700_000_000*datasize.B {
		t.Fatalf("unexpected min size: %s", cfg.Plots.MinSize)
	}
	if cfg.Transfer.Workers != 1 || cfg.Transfer.MaxAttempts != 5 {
		t.Fatalf("unexpected transfer defaults: %+v", cfg.Transfer)
	}
	if cfg.SettleDelay() != 15*time.Second {
		t.Fatalf("unexpected settle delay: %s", cfg.SettleDelay())
	}
	if cfg.IdleBackoff() != time.Second {
		t.Fatalf("unexpected idle backoff: %s", cfg.IdleBackoff())
	}
	if cfg.Transfer.Checksum != "sha256" {
		t.Fatalf("unexpected checksum: %q", cfg.Transfer.Checksum)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.LogDir); err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	path := writeConfig(t, `
[paths]
staging_dir = "/mnt/staging"
destinations_file = "/etc/plotarchiver/destinations.txt"

[plots]
k = 33
min_size = "200GB"
suffix = ".PLOT"

[transfer]
workers = 3
settle_seconds = 0
checksum = "XXHASH"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Plots.K != 33 {
		t.Fatalf("k = %d", cfg.Plots.K)
	}
	if cfg.Plots.MinSize != 200*datasize.GB {
		t.Fatalf("min size = %s", cfg.Plots.MinSize)
	}
	if cfg.Plots.Suffix != ".plot" {
		t.Fatalf("expected lowercased suffix, got %q", cfg.Plots.Suffix)
	}
	if cfg.Transfer.Workers != 3 || cfg.Transfer.SettleSeconds != 0 {
		t.Fatalf("unexpected transfer settings: %+v", cfg.Transfer)
	}
	if cfg.Transfer.Checksum != "xxhash" {
		t.Fatalf("checksum = %q", cfg.Transfer.Checksum)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
[paths]
staging_dir = "/from/file"
destinations_file = "/from/file.txt"
`)
	cfg, _, _, err := config.Load(path, config.WithStagingDir("/from/flag"), config.WithWorkers(2), config.WithDestinationsFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StagingDir != "/from/flag" {
		t.Fatalf("staging dir = %q", cfg.Paths.StagingDir)
	}
	if cfg.Paths.DestinationsFile != "/from/file.txt" {
		t.Fatalf("empty flag should not override file, got %q", cfg.Paths.DestinationsFile)
	}
	if cfg.Transfer.Workers != 2 {
		t.Fatalf("workers = %d", cfg.Transfer.Workers)
	}
}

func TestEnvFallbackForRequiredPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLOTARCHIVER_STAGING_DIR", "/env/staging")
	t.Setenv("PLOTARCHIVER_DESTINATIONS_FILE", "/env/dests.txt")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StagingDir != "/env/staging" || cfg.Paths.DestinationsFile != "/env/dests.txt" {
		t.Fatalf("unexpected paths: %+v", cfg.Paths)
	}
}

func TestValidateErrors(t *testing.T) {
	base := `
[paths]
staging_dir = "/s"
destinations_file = "/d"
`
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing staging", "[paths]\ndestinations_file = \"/d\"\n", "paths.staging_dir"},
		{"missing destinations", "[paths]\nstaging_dir = \"/s\"\n", "paths.destinations_file"},
		{"unknown k", base + "[plots]\nk = 31\n", "plots.k"},
		{"zero workers", base + "[transfer]\nworkers = 0\n", "transfer.workers"},
		{"zero attempts", base + "[transfer]\nmax_attempts = 0\n", "transfer.max_attempts"},
		{"bad checksum", base + "[transfer]\nchecksum = \"md5\"\n", "transfer.checksum"},
		{"bad log format", base + "[logging]\nformat = \"xml\"\n", "logging.format"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("PLOTARCHIVER_STAGING_DIR", "")
			t.Setenv("PLOTARCHIVER_DESTINATIONS_FILE", "")
			_, _, _, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path, config.WithStagingDir("/s"), config.WithDestinationsFile("/d"))
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Plots.MinSize != config.Default().Plots.MinSize {
		t.Fatalf("sample min size %s differs from default", cfg.Plots.MinSize)
	}
	if cfg.Transfer.Checksum != "sha256" {
		t.Fatalf("sample checksum = %q", cfg.Transfer.Checksum)
	}
}
