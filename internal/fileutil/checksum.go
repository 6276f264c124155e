package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
)

const (
	ChecksumSHA256 = "sha256"
	ChecksumXXHash = "xxhash"
	// ChecksumLegacyPath hashes the final file name instead of the file bytes,
	// so a copy always matches its source. It reproduces the historical no-op
	// verification and never detects corrupted copies.
	ChecksumLegacyPath = "legacy-path"
)

var checksumAlgorithms = []string{ChecksumSHA256, ChecksumXXHash, ChecksumLegacyPath}

// ChecksumAlgorithms lists the accepted algorithm names.
func ChecksumAlgorithms() []string {
	return slices.Clone(checksumAlgorithms)
}

// IsChecksumAlgorithm reports whether name is a supported algorithm.
func IsChecksumAlgorithm(name string) bool {
	return slices.Contains(checksumAlgorithms, name)
}

// Checksum returns the hex digest of the file at path using algorithm.
func Checksum(path, algorithm string) (string, error) {
	switch algorithm {
	case ChecksumLegacyPath:
		sum := sha256.Sum256([]byte(FinalName(path)))
		return hex.EncodeToString(sum[:]), nil
	case ChecksumSHA256:
		return checksumContent(path, sha256.New())
	case ChecksumXXHash:
		return checksumContent(path, xxhash.New())
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

func checksumContent(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
