package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plotarchiver/internal/plot"
	"plotarchiver/internal/testsupport"
)

type cliTestEnv struct {
	baseDir     string
	configPath  string
	stagingDir  string
	listPath    string
	logDir      string
	destination string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("PLOTARCHIVER_STAGING_DIR", "")
	t.Setenv("PLOTARCHIVER_DESTINATIONS_FILE", "")
	t.Setenv("NO_COLOR", "1")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(base); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	env := &cliTestEnv{
		baseDir:     base,
		configPath:  filepath.Join(base, "config.toml"),
		stagingDir:  filepath.Join(base, "staging"),
		listPath:    filepath.Join(base, "destinations.txt"),
		logDir:      filepath.Join(base, "logs"),
		destination: filepath.Join(base, "drive-a"),
	}
	for _, dir := range []string{env.stagingDir, env.destination} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	testsupport.WriteDestinationList(t, env.listPath, env.destination)

	contents := strings.Join([]string{
		"[paths]",
		"staging_dir = " + quote(env.stagingDir),
		"destinations_file = " + quote(env.listPath),
		"log_dir = " + quote(env.logDir),
		"",
		"[plots]",
		`min_size = "4KB"`,
		"",
		"[transfer]",
		"settle_seconds = 0",
		"retry_delay_seconds = 0",
		"idle_backoff_ms = 20",
		"",
		"[watch]",
		"staging = false",
		"",
	}, "\n")
	if err := os.WriteFile(env.configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func quote(value string) string {
	return `"` + value + `"`
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestScanReportsVerdicts(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WritePlot(t, env.stagingDir, "plot-k32-2024-a.plot", 8*1024)
	testsupport.WritePlot(t, env.stagingDir, "plot-k32-2024-b.plot.tmp", 8*1024)
	testsupport.WritePlot(t, env.stagingDir, "plot-k33-2024-c.plot", 8*1024)
	testsupport.WritePlot(t, env.stagingDir, "plot-k32-2024-d.plot", 100)
	testsupport.WritePlot(t, env.stagingDir, "notes.txt", 10)

	out, err := runCLI(t, nil, "--config", env.configPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{
		"plot-k32-2024-a.plot",
		"eligible",
		"temporary",
		"wrong_category",
		"undersized",
		"not_plot",
		"1 of 5 entries eligible for k32",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestScanEmptyStaging(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, nil, "--config", env.configPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "is empty") {
		t.Fatalf("expected empty notice, got:\n%s", out)
	}
}

func TestScanUsesDirFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(env.baseDir, "other-staging")
	if err := os.MkdirAll(other, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WritePlot(t, other, "plot-k32-2024-z.plot", 8*1024)

	out, err := runCLI(t, nil, "--config", env.configPath, "--dir", other, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "plot-k32-2024-z.plot") {
		t.Fatalf("expected override staging entry, got:\n%s", out)
	}
}

func TestDestinationsListsValidEntries(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "unplugged")
	testsupport.WriteDestinationList(t, env.listPath, env.destination, missing, env.destination)

	out, err := runCLI(t, nil, "--config", env.configPath, "destinations")
	if err != nil {
		t.Fatalf("destinations: %v", err)
	}
	if strings.Count(out, env.destination) != 1 {
		t.Fatalf("expected destination listed once, got:\n%s", out)
	}
	if strings.Contains(out, missing) {
		t.Fatalf("missing destination should be skipped, got:\n%s", out)
	}
	if !strings.Contains(out, "One k32 plot needs") {
		t.Fatalf("expected unit size footer, got:\n%s", out)
	}
}

func TestDestinationsEmptyList(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteDestinationList(t, env.listPath)

	out, err := runCLI(t, nil, "--config", env.configPath, "destinations")
	if err != nil {
		t.Fatalf("destinations: %v", err)
	}
	if !strings.Contains(out, "No valid destinations") {
		t.Fatalf("expected empty notice, got:\n%s", out)
	}
}

func TestDestinationsUsesConfFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	otherDest := filepath.Join(env.baseDir, "drive-b")
	if err := os.MkdirAll(otherDest, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	otherList := filepath.Join(env.baseDir, "other.txt")
	testsupport.WriteDestinationList(t, otherList, otherDest)

	out, err := runCLI(t, nil, "--config", env.configPath, "-c", otherList, "destinations")
	if err != nil {
		t.Fatalf("destinations: %v", err)
	}
	if !strings.Contains(out, otherDest) || strings.Contains(out, env.destination) {
		t.Fatalf("expected only the override list, got:\n%s", out)
	}
}

func TestMissingStagingDirFailsConfigLoad(t *testing.T) {
	setupCLITestEnv(t)

	_, err := runCLI(t, nil, "scan")
	if err == nil {
		t.Fatal("expected error without a staging directory")
	}
	if !strings.Contains(err.Error(), "paths.staging_dir is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "nested", "plotarchiver.toml")

	out, err := runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[transfer]") {
		t.Fatalf("sample missing transfer section:\n%s", data)
	}

	if _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when the file exists")
	}
	if _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowAppliesOverrides(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(env.baseDir, "flag-staging")

	out, err := runCLI(t, nil, "--config", env.configPath, "--dir", other, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, other) {
		t.Fatalf("expected overridden staging dir, got:\n%s", out)
	}
	if !strings.Contains(out, "# source: "+env.configPath) {
		t.Fatalf("expected source comment, got:\n%s", out)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	env := setupCLITestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := runCLI(t, ctx, "--config", env.configPath, "run", "--workers", "2")
		errCh <- err
	}()

	logPath := filepath.Join(env.logDir, "plotarchiver.log")
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, _ := os.ReadFile(logPath)
		if strings.Contains(string(data), "plotarchiver started") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon did not start; log:\n%s", data)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "workers=2") {
		t.Fatalf("expected worker flag to apply, log:\n%s", data)
	}
}

func TestReasonKind(t *testing.T) {
	tests := []struct {
		reason string
		want   verdictKind
	}{
		{"eligible", verdictOK},
		{"undersized", verdictError},
		{"unknown_category", verdictError},
		{"wrong_category", verdictWarn},
		{"temporary", verdictInfo},
		{"not_plot", verdictInfo},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.reason, func(t *testing.T) {
			if got := reasonKind(plot.Reason(tt.reason)); got != tt.want {
				t.Fatalf("reasonKind(%s) = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}

func TestColorizeVerdict(t *testing.T) {
	if got := colorizeVerdict(verdictOK, "yes", false); got != "yes" {
		t.Fatalf("plain output altered: %q", got)
	}
	if got := colorizeVerdict(verdictError, "no", true); got != ansiRed+"no"+ansiReset {
		t.Fatalf("unexpected colored output: %q", got)
	}
	if got := colorizeVerdict(verdictInfo, "n/a", true); got != "n/a" {
		t.Fatalf("info should not be colored: %q", got)
	}
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}
