package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"plotarchiver/internal/logging"
)

// ExecutorFunc returns the transferrer used by one worker slot.
type ExecutorFunc func(worker int, logger *slog.Logger) Transferrer

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers     int
	Arbiter     Arbitrator
	Executor    ExecutorFunc
	Clock       clockwork.Clock
	IdleBackoff time.Duration
	Waker       *Waker
	Logger      *slog.Logger
}

// Pool runs a fixed set of workers sharing one arbiter.
type Pool struct {
	workers []*Worker
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewPool builds opts.Workers workers (at least one).
func NewPool(opts PoolOptions) *Pool {
	n := opts.Workers
	if n < 1 {
		n = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := make([]*Worker, 0, n)
	for i := 0; i < n; i++ {
		workerLogger := logger.With(logging.Int(logging.FieldWorker, i))
		workers = append(workers, New(Options{
			Index:       i,
			Arbiter:     opts.Arbiter,
			Executor:    opts.Executor(i, workerLogger),
			Clock:       opts.Clock,
			IdleBackoff: opts.IdleBackoff,
			Waker:       opts.Waker,
			Logger:      logger,
		}))
	}
	return &Pool{
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "pool"),
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker. A fatal worker error cancels the others and
// is later returned by Wait.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, w := range p.workers {
		w := w
		group.Go(func() error {
			return w.Run(groupCtx)
		})
	}

	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	p.err = nil

	go func() {
		err := group.Wait()
		cancel()
		p.mu.Lock()
		p.err = err
		p.running = false
		p.mu.Unlock()
		close(done)
	}()

	p.logger.Info("worker pool started",
		logging.String(logging.FieldEventType, "pool_started"),
		logging.Int("workers", len(p.workers)),
	)
	return nil
}

// Stop stops scheduling new cycles and waits for in-flight transfers.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("worker pool stopped", logging.String(logging.FieldEventType, "pool_stopped"))
}

// Wait blocks until every worker has exited and returns the first fatal
// error, if any.
func (p *Pool) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once every worker has exited. It is nil before Start.
func (p *Pool) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether workers are active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Snapshot returns the status of every worker ordered by index.
func (p *Pool) Snapshot() []Status {
	out := make([]Status, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Status())
	}
	return out
}
