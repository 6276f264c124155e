package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"plotarchiver/internal/fileutil"
	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
)

// CopyFunc copies src to dst.
type CopyFunc func(src, dst string) error

// ChecksumFunc returns a content digest for path.
type ChecksumFunc func(path string) (string, error)

// Options configures an Executor.
type Options struct {
	Checksum    string
	MaxAttempts int
	RetryDelay  time.Duration
	SettleDelay time.Duration
	Clock       clockwork.Clock
	Logger      *slog.Logger

	// Copy and Sum replace the filesystem operations in tests.
	Copy CopyFunc
	Sum  ChecksumFunc
}

// Result summarizes a completed or abandoned transfer.
type Result struct {
	TransferID  string
	Source      string
	Destination string
	Attempts    int
	Bytes       int64
	Duration    time.Duration
}

// Executor performs verified plot moves.
type Executor struct {
	algorithm   string
	maxAttempts int
	retryDelay  time.Duration
	settleDelay time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	copy        CopyFunc
	sum         ChecksumFunc
}

// New builds an executor. Zero values fall back to sha256, a single attempt
// and the real clock.
func New(opts Options) *Executor {
	algorithm := opts.Checksum
	if algorithm == "" {
		algorithm = fileutil.ChecksumSHA256
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	e := &Executor{
		algorithm:   algorithm,
		maxAttempts: maxAttempts,
		retryDelay:  opts.RetryDelay,
		settleDelay: opts.SettleDelay,
		clock:       clock,
		logger:      logging.NewComponentLogger(opts.Logger, "transfer"),
		copy:        opts.Copy,
		sum:         opts.Sum,
	}
	if e.copy == nil {
		e.copy = fileutil.CopyPreserving
	}
	if e.sum == nil {
		e.sum = func(path string) (string, error) {
			return fileutil.Checksum(path, algorithm)
		}
	}
	return e
}

// WithLogger returns a copy of e that logs through logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	clone := *e
	clone.logger = logging.NewComponentLogger(logger, "transfer")
	return &clone
}

// Algorithm returns the configured checksum algorithm name.
func (e *Executor) Algorithm() string {
	return e.algorithm
}

// Transfer moves candidate into destDir. Shutdown is honoured only during
// the settle wait; after that the transfer runs to success or exhaustion.
func (e *Executor) Transfer(ctx context.Context, candidate plot.Candidate, destDir string) (Result, error) {
	start := e.clock.Now()
	src := candidate.Path
	dst := filepath.Join(destDir, filepath.Base(src))
	result := Result{
		TransferID:  uuid.NewString(),
		Source:      src,
		Destination: dst,
	}
	logger := e.logger.With(
		logging.String(logging.FieldTransferID, result.TransferID),
		logging.String("source", src),
		logging.String("destination", destDir),
	)

	if err := e.settle(ctx); err != nil {
		logger.Info("transfer cancelled before copy", logging.String(logging.FieldEventType, "transfer_cancelled"))
		return result, err
	}

	if err := e.precheck(src, destDir); err != nil {
		logging.ErrorWithContext(logger, "transfer aborted", "transfer_precheck_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the plot stays in staging and is reconsidered next cycle"),
		)
		return result, err
	}

	present, err := e.existing(src, dst)
	if err != nil {
		logging.ErrorWithContext(logger, "transfer aborted", "transfer_precheck_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rename or remove the conflicting file on the destination"),
		)
		return result, err
	}
	if present {
		logger.Info("verified copy already at destination",
			logging.String(logging.FieldEventType, "transfer_already_present"),
			logging.String("plot", candidate.Name),
		)
		return e.finish(logger, candidate, result, start)
	}

	logger.Info("moving plot",
		logging.String(logging.FieldEventType, "transfer_started"),
		logging.String("plot", candidate.Name),
		logging.Int64("size_bytes", candidate.Size),
		logging.Int("max_attempts", e.maxAttempts),
	)

	ctx = context.WithoutCancel(ctx)
	retry := backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryDelay), uint64(e.maxAttempts-1))
	for {
		result.Attempts++
		err := e.attempt(src, dst)
		if err == nil {
			break
		}
		if !errors.Is(err, errMismatch) {
			logging.ErrorWithContext(logger, "transfer failed", "transfer_failed",
				logging.Int("attempt", result.Attempts),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the destination drive for I/O errors"),
			)
			return result, err
		}
		delay := retry.NextBackOff()
		if delay == backoff.Stop {
			logging.ErrorWithContext(logger, "copy never verified, giving up", "transfer_verification_failed",
				logging.Int("attempts", result.Attempts),
				logging.String(logging.FieldErrorHint, "check the destination drive and cabling; the plot stays in staging"),
			)
			return result, fmt.Errorf("%w: %s after %d attempts", ErrVerificationFailed, src, result.Attempts)
		}
		logging.WarnWithContext(logger, "copy did not verify, retrying", "transfer_retry",
			logging.Int("attempt", result.Attempts),
			logging.Duration("retry_in", delay),
			logging.String(logging.FieldImpact, "bad copy removed; copying again"),
		)
		e.sleep(ctx, delay)
	}

	return e.finish(logger, candidate, result, start)
}

// finish deletes the source once a verified copy holds the final name.
func (e *Executor) finish(logger *slog.Logger, candidate plot.Candidate, result Result, start time.Time) (Result, error) {
	src := result.Source
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.ErrorWithContext(logger, "verified copy kept but source not removed", "source_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the staging file by hand to avoid a duplicate copy"),
		)
		return result, fmt.Errorf("%w: %s: %w", ErrSourceRemoval, src, err)
	}

	result.Bytes = candidate.Size
	result.Duration = e.clock.Since(start)
	logger.Info("moved plot",
		logging.String(logging.FieldEventType, "transfer_completed"),
		logging.String("plot", candidate.Name),
		logging.Int("attempts", result.Attempts),
		logging.Int64("size_bytes", candidate.Size),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

var errMismatch = errors.New("checksum mismatch")

// attempt copies into a partial file next to dst, verifies it, and renames it
// into place. On any failure only the partial file is removed.
func (e *Executor) attempt(src, dst string) error {
	partial := fileutil.PartialPath(dst)
	removePartial(partial)
	if err := e.copy(src, partial); err != nil {
		removePartial(partial)
		return fmt.Errorf("%w: %s -> %s: %w", ErrCopyFailed, src, partial, err)
	}
	srcSum, err := e.sum(src)
	if err != nil {
		removePartial(partial)
		return fmt.Errorf("%w: checksum source: %w", ErrCopyFailed, err)
	}
	dstSum, err := e.sum(partial)
	if err != nil {
		removePartial(partial)
		return fmt.Errorf("%w: checksum destination: %w", ErrCopyFailed, err)
	}
	if srcSum != dstSum {
		removePartial(partial)
		return errMismatch
	}
	if _, err := os.Lstat(dst); err == nil {
		removePartial(partial)
		return fmt.Errorf("%w: %s appeared during the copy", ErrDestinationInvalid, dst)
	}
	if err := os.Rename(partial, dst); err != nil {
		removePartial(partial)
		return fmt.Errorf("%w: rename %s: %w", ErrCopyFailed, partial, err)
	}
	return nil
}

func (e *Executor) precheck(src, destDir string) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSourceMissing, src, err)
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceMissing, src)
	}
	info, err := os.Stat(destDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDestinationInvalid, destDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDestinationInvalid, destDir)
	}
	srcDir := filepath.Dir(src)
	if filepath.Clean(srcDir) == filepath.Clean(destDir) {
		return fmt.Errorf("%w: %s is the source directory", ErrDestinationInvalid, destDir)
	}
	if dirInfo, err := os.Stat(srcDir); err == nil && os.SameFile(dirInfo, info) {
		return fmt.Errorf("%w: %s resolves to the source directory %s", ErrDestinationInvalid, destDir, srcDir)
	}
	return nil
}

// existing inspects a file already holding the final name. An identical copy
// left by an interrupted run counts as present; anything else is refused.
func (e *Executor) existing(src, dst string) (bool, error) {
	dstInfo, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrDestinationInvalid, dst, err)
	}
	if srcInfo, err := os.Lstat(src); err == nil && os.SameFile(srcInfo, dstInfo) {
		return false, fmt.Errorf("%w: %s is the source file", ErrDestinationInvalid, dst)
	}
	if !dstInfo.Mode().IsRegular() && dstInfo.Mode()&os.ModeSymlink == 0 {
		return false, fmt.Errorf("%w: %s exists and is not a file", ErrDestinationInvalid, dst)
	}
	srcSum, err := e.contentSum(src)
	if err != nil {
		return false, fmt.Errorf("%w: checksum source: %w", ErrCopyFailed, err)
	}
	dstSum, err := e.contentSum(dst)
	if err != nil {
		return false, fmt.Errorf("%w: checksum existing %s: %w", ErrDestinationInvalid, dst, err)
	}
	if srcSum != dstSum {
		return false, fmt.Errorf("%w: a different %s already exists", ErrDestinationInvalid, dst)
	}
	return true, nil
}

// contentSum is the configured checksum, except that the name-only legacy mode
// falls back to sha256 so an unrelated file is never mistaken for the copy.
func (e *Executor) contentSum(path string) (string, error) {
	if e.algorithm == fileutil.ChecksumLegacyPath {
		return fileutil.Checksum(path, fileutil.ChecksumSHA256)
	}
	return e.sum(path)
}

func (e *Executor) settle(ctx context.Context) error {
	if e.settleDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(e.settleDelay):
		return nil
	}
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-e.clock.After(d):
	}
}

func removePartial(path string) {
	_ = os.Remove(path)
}
