package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	partialPrefix = "."
	partialSuffix = ".partial"
)

// PartialPath returns the hidden in-progress name used while path is copied,
// e.g. "/mnt/a/.plot-k32-x.plot.partial".
func PartialPath(path string) string {
	return filepath.Join(filepath.Dir(path), partialPrefix+filepath.Base(path)+partialSuffix)
}

// FinalName returns the base name path will have once copying completes.
func FinalName(path string) string {
	name := filepath.Base(path)
	if len(name) > len(partialPrefix)+len(partialSuffix) &&
		strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix) {
		return strings.TrimSuffix(strings.TrimPrefix(name, partialPrefix), partialSuffix)
	}
	return name
}

// CopyFileMode streams src to a new file dst, setting the given file mode.
// dst must not exist. A partially written dst is left in place on error;
// callers own cleanup.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

// CopyPreserving copies src to a new dst without following a symlink at src:
// a link is recreated verbatim, a regular file is streamed and keeps its
// permission bits and modification time. An existing dst is an error.
func CopyPreserving(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("read link: %w", err)
		}
		return os.Symlink(target, dst)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy %s: not a regular file", src)
	}

	if err := CopyFileMode(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("preserve mode: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve mtime: %w", err)
	}
	return nil
}
