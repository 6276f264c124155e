package destinations

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"plotarchiver/internal/logging"
)

// FreeSpaceFunc reports the bytes available to an unprivileged writer at path.
type FreeSpaceFunc func(path string) (uint64, error)

// Capacity is the admission check for destinations.
type Capacity struct {
	logger    *slog.Logger
	freeSpace FreeSpaceFunc
}

// NewCapacity builds an admission check backed by statfs.
func NewCapacity(logger *slog.Logger) *Capacity {
	return NewCapacityWithProbe(logger, StatfsFreeSpace)
}

// NewCapacityWithProbe builds an admission check using probe for free space.
func NewCapacityWithProbe(logger *slog.Logger, probe FreeSpaceFunc) *Capacity {
	if probe == nil {
		probe = StatfsFreeSpace
	}
	return &Capacity{
		logger:    logging.NewComponentLogger(logger, "admission"),
		freeSpace: probe,
	}
}

// HasCapacity reports whether dir has at least unit bytes free. A failed
// probe counts as no capacity.
func (c *Capacity) HasCapacity(dir string, unit uint64) bool {
	free, err := c.FreeBytes(dir)
	if err != nil {
		logging.WarnWithContext(c.logger, "free space probe failed", "free_space_probe_failed",
			logging.String("destination", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the destination is mounted and readable"),
			logging.String(logging.FieldImpact, "destination skipped for this cycle"),
		)
		return false
	}
	return free >= unit
}

// FreeBytes returns the probed free bytes for dir.
func (c *Capacity) FreeBytes(dir string) (uint64, error) {
	return c.freeSpace(dir)
}

// StatfsFreeSpace returns Bavail * Bsize for the filesystem holding path.
func StatfsFreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
