package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFileMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileMode(src, dst, 0o755); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	// Check executable bits are set (umask may clear some bits).
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("expected executable bits, got %o", info.Mode().Perm())
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyPreservingKeepsModeAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plot-k32-a.plot")
	dst := filepath.Join(dir, "copy.plot")

	if err := os.WriteFile(src, []byte("plot bytes"), 0o640); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreserving(src, dst); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode = %o, want 640", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestCopyPreservingCopiesSymlinkVerbatim(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.plot")
	link := filepath.Join(dir, "link.plot")
	dst := filepath.Join(dir, "dst.plot")

	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreserving(link, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.Readlink(dst)
	if err != nil {
		t.Fatalf("expected symlink at destination: %v", err)
	}
	if got != target {
		t.Fatalf("link target = %q, want %q", got, target)
	}
}

func TestCopyPreserving_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyPreserving(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestChecksumComparesContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	for path, content := range map[string]string{a: "same", b: "same", c: "diff"} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	for _, alg := range []string{ChecksumSHA256, ChecksumXXHash} {
		sumA, err := Checksum(a, alg)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		sumB, _ := Checksum(b, alg)
		sumC, _ := Checksum(c, alg)
		if sumA != sumB {
			t.Fatalf("%s: identical content hashed differently", alg)
		}
		if sumA == sumC {
			t.Fatalf("%s: different content hashed the same", alg)
		}
	}
}

func TestChecksumLegacyPathIgnoresContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := Checksum(path, ChecksumLegacyPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, _ := Checksum(path, ChecksumLegacyPath)
	if first != second {
		t.Fatal("legacy-path checksum should not depend on content")
	}

	copyPath := filepath.Join(t.TempDir(), "a")
	if err := os.WriteFile(copyPath, []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	third, _ := Checksum(copyPath, ChecksumLegacyPath)
	if third != first {
		t.Fatal("legacy-path checksum should match a copy with the same name")
	}
}

func TestChecksumUnknownAlgorithm(t *testing.T) {
	if _, err := Checksum("/dev/null", "md4"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if IsChecksumAlgorithm("md4") {
		t.Fatal("md4 should not be accepted")
	}
}

func TestCopyPreservingRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plot-k32-a.plot")
	dst := filepath.Join(dir, "dst.plot")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreserving(src, dst); err == nil {
		t.Fatal("expected error when the destination exists")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "old" {
		t.Fatalf("existing destination overwritten: %q", got)
	}
}

func TestPartialNames(t *testing.T) {
	tests := []struct {
		path  string
		want  string
		final string
	}{
		{"/mnt/a/plot-k32-x.plot", "/mnt/a/.plot-k32-x.plot.partial", "plot-k32-x.plot"},
		{"plot-k33-y.plot", ".plot-k33-y.plot.partial", "plot-k33-y.plot"},
	}
	for _, tt := range tests {
		got := PartialPath(tt.path)
		if got != tt.want {
			t.Fatalf("PartialPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
		if final := FinalName(got); final != tt.final {
			t.Fatalf("FinalName(%q) = %q, want %q", got, final, tt.final)
		}
		if final := FinalName(tt.path); final != tt.final {
			t.Fatalf("FinalName(%q) = %q, want %q", tt.path, final, tt.final)
		}
	}
	if got := FinalName(".partial"); got != ".partial" {
		t.Fatalf("FinalName(.partial) = %q", got)
	}
}

func TestChecksumLegacyPathMatchesPartialCopy(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "plot-k32-a.plot")
	if err := os.WriteFile(final, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	partial := PartialPath(filepath.Join(t.TempDir(), "plot-k32-a.plot"))
	if err := os.WriteFile(partial, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, _ := Checksum(final, ChecksumLegacyPath)
	b, _ := Checksum(partial, ChecksumLegacyPath)
	if a != b {
		t.Fatal("legacy-path checksum should compare final names")
	}
}
