package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"plotarchiver/internal/arbiter"
	"plotarchiver/internal/config"
	"plotarchiver/internal/destinations"
	"plotarchiver/internal/fileutil"
	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
	"plotarchiver/internal/transfer"
	"plotarchiver/internal/watch"
	"plotarchiver/internal/worker"
)

// Daemon runs the worker pool and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string

	lockPath string
	lock     *flock.Flock

	arbiter *arbiter.Arbiter
	pool    *worker.Pool
	waker   *worker.Waker
	staging *watch.Staging
	devices *watch.Devices
	clock   clockwork.Clock

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at,omitzero"`
	LockFilePath string          `json:"lock_file_path"`
	Workers      []worker.Status `json:"workers"`
	Claims       []arbiter.Claim `json:"claims"`
}

// Option customizes daemon construction, mostly for tests.
type Option func(*options)

type options struct {
	clock     clockwork.Clock
	freeSpace destinations.FreeSpaceFunc
}

// WithClock replaces the real clock used for backoff and settle waits.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithFreeSpace replaces the statfs free-space probe.
func WithFreeSpace(probe destinations.FreeSpaceFunc) Option {
	return func(o *options) { o.freeSpace = probe }
}

// Criteria derives plot selection rules from the configuration.
func Criteria(cfg *config.Config) plot.Criteria {
	return plot.Criteria{
		Naming: plot.Naming{
			Marker:     cfg.Plots.Marker,
			TempMarker: cfg.Plots.TempMarker,
			Suffix:     cfg.Plots.Suffix,
		},
		Target:  plot.Category(cfg.Plots.K),
		MinSize: int64(cfg.Plots.MinSize.Bytes()),
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{clock: clockwork.NewRealClock(), freeSpace: destinations.StatfsFreeSpace}
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()
	logger = logger.With(logging.String("run_id", runID))

	arb := arbiter.New(arbiter.Options{
		StagingDir: cfg.Paths.StagingDir,
		ListPath:   cfg.Paths.DestinationsFile,
		Criteria:   Criteria(cfg),
		Registry:   destinations.NewRegistry(logger),
		Capacity:   destinations.NewCapacityWithProbe(logger, o.freeSpace),
		Logger:     logger,
	})
	executor := transfer.New(transfer.Options{
		Checksum:    cfg.Transfer.Checksum,
		MaxAttempts: cfg.Transfer.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		SettleDelay: cfg.SettleDelay(),
		Clock:       o.clock,
		Logger:      logger,
	})
	waker := worker.NewWaker()
	pool := worker.NewPool(worker.PoolOptions{
		Workers: cfg.Transfer.Workers,
		Arbiter: arb,
		Executor: func(_ int, workerLogger *slog.Logger) worker.Transferrer {
			return executor.WithLogger(workerLogger)
		},
		Clock:       o.clock,
		IdleBackoff: cfg.IdleBackoff(),
		Waker:       waker,
		Logger:      logger,
	})

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		runID:    runID,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		arbiter:  arb,
		pool:     pool,
		waker:    waker,
		clock:    o.clock,
	}
	if cfg.Watch.Staging {
		d.staging = watch.NewStaging(cfg.Paths.StagingDir, cfg.Paths.DestinationsFile, Criteria(cfg).Naming, waker.Wake, logger)
	}
	if cfg.Watch.Devices {
		d.devices = watch.NewDevices(waker.Wake, logger)
	}
	return d, nil
}

// Start acquires the instance lock and launches workers and watchers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another plotarchiver instance is already running")
	}

	if d.cfg.Transfer.Checksum == fileutil.ChecksumLegacyPath {
		logging.WarnWithContext(d.logger, "copy verification disabled", "legacy_checksum_mode",
			logging.String("checksum", d.cfg.Transfer.Checksum),
			logging.String(logging.FieldErrorHint, "set transfer.checksum to sha256 or xxhash"),
			logging.String(logging.FieldImpact, "corrupted copies are not detected before the source is deleted"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workers: %w", err)
	}
	_ = d.staging.Start(runCtx)
	_ = d.devices.Start(runCtx)

	d.mu.Lock()
	d.cancel = cancel
	d.startedAt = d.clock.Now()
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("plotarchiver started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("staging_dir", d.cfg.Paths.StagingDir),
		logging.String("destinations_file", d.cfg.Paths.DestinationsFile),
		logging.Int("workers", d.pool.Size()),
		logging.String("checksum", d.cfg.Transfer.Checksum),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops scheduling, waits for in-flight transfers, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.staging.Stop()
	d.devices.Stop()
	d.pool.Stop()
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("plotarchiver stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Done is closed when every worker has exited, including after a fatal error.
func (d *Daemon) Done() <-chan struct{} {
	return d.pool.Done()
}

// Wait returns the fatal worker error, if any, once all workers exited.
func (d *Daemon) Wait() error {
	return d.pool.Wait()
}

// Wake prompts idle workers to run a cycle now.
func (d *Daemon) Wake() {
	d.waker.Wake()
}

// Status returns the current daemon and worker state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		RunID:        d.runID,
		StartedAt:    startedAt,
		LockFilePath: d.lockPath,
		Workers:      d.pool.Snapshot(),
		Claims:       d.arbiter.Snapshot(),
	}
}

// Run starts the daemon and blocks until ctx is cancelled or a worker fails
// fatally. The returned error is nil on a clean shutdown.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) error {
	d, err := New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-d.Done():
	}
	d.Stop()
	return d.Wait()
}
