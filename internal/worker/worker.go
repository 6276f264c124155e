package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"plotarchiver/internal/arbiter"
	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
	"plotarchiver/internal/transfer"
)

// State is a worker's position in its cycle.
type State string

const (
	StateIdle         State = "idle"
	StateRefreshing   State = "refreshing"
	StateArbitrating  State = "arbitrating"
	StateBackingOff   State = "backing_off"
	StateTransferring State = "transferring"
	StateStopped      State = "stopped"
)

// Outcome describes how a cycle ended.
type Outcome int

const (
	// OutcomeNoWork means no destination or no plot was available.
	OutcomeNoWork Outcome = iota
	// OutcomeTransferred means a plot was moved and verified.
	OutcomeTransferred
	// OutcomeFailed means a transfer was attempted and abandoned.
	OutcomeFailed
)

// Arbitrator hands out and releases claims.
type Arbitrator interface {
	Arbitrate(ctx context.Context, worker int, refreshed func()) (arbiter.Assignment, bool, error)
	Release(worker int)
}

// Transferrer moves one plot.
type Transferrer interface {
	Transfer(ctx context.Context, candidate plot.Candidate, destDir string) (transfer.Result, error)
}

// Status is a point-in-time view of one worker.
type Status struct {
	Worker       int       `json:"worker"`
	State        State     `json:"state"`
	Destination  string    `json:"destination,omitempty"`
	File         string    `json:"file,omitempty"`
	Transfers    int       `json:"transfers"`
	Failures     int       `json:"failures"`
	LastError    string    `json:"last_error,omitempty"`
	LastTransfer time.Time `json:"last_transfer,omitzero"`
}

// Options configures a Worker.
type Options struct {
	Index       int
	Arbiter     Arbitrator
	Executor    Transferrer
	Clock       clockwork.Clock
	IdleBackoff time.Duration
	Waker       *Waker
	Logger      *slog.Logger
}

// Worker runs arbitrate/transfer cycles for one worker slot.
type Worker struct {
	index       int
	arbiter     Arbitrator
	executor    Transferrer
	clock       clockwork.Clock
	idleBackoff time.Duration
	waker       *Waker
	logger      *slog.Logger

	mu         sync.Mutex
	status     Status
	idleStreak int
}

// New constructs a worker.
func New(opts Options) *Worker {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := logging.NewComponentLogger(opts.Logger, "worker").
		With(logging.Int(logging.FieldWorker, opts.Index))
	return &Worker{
		index:       opts.Index,
		arbiter:     opts.Arbiter,
		executor:    opts.Executor,
		clock:       clock,
		idleBackoff: opts.IdleBackoff,
		waker:       opts.Waker,
		logger:      logger,
		status:      Status{Worker: opts.Index, State: StateIdle},
	}
}

// Index returns the worker's slot number.
func (w *Worker) Index() int {
	return w.index
}

// Status returns a copy of the worker's current status.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run loops until ctx is cancelled. It returns nil on shutdown and an error
// wrapping arbiter.ErrClaimConflict if the claim invariant breaks.
func (w *Worker) Run(ctx context.Context) error {
	defer w.setState(StateStopped)
	for {
		if ctx.Err() != nil {
			return nil
		}
		outcome, err := w.Cycle(ctx)
		if err != nil {
			if errors.Is(err, arbiter.ErrClaimConflict) {
				logging.ErrorWithContext(w.logger, "claim invariant violated, stopping", "claim_conflict",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "report this as a bug with the surrounding log lines"),
				)
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		if outcome != OutcomeTransferred {
			w.backoff(ctx)
		}
	}
}

// Cycle performs one refresh, arbitration and, when work was granted,
// transfer. Claims are always released before Cycle returns. Transfer
// failures are logged by the executor and reported through the outcome; the
// returned error is reserved for cancellation and claim conflicts.
func (w *Worker) Cycle(ctx context.Context) (Outcome, error) {
	w.setState(StateRefreshing)
	assignment, ok, err := w.arbiter.Arbitrate(ctx, w.index, func() {
		w.setState(StateArbitrating)
	})
	if err != nil {
		w.arbiter.Release(w.index)
		w.setState(StateIdle)
		return OutcomeNoWork, err
	}
	if !ok {
		w.noteIdle()
		w.setState(StateIdle)
		return OutcomeNoWork, nil
	}
	defer w.arbiter.Release(w.index)
	w.idleStreak = 0

	w.setAssignment(assignment)
	w.logger.Debug("assignment granted",
		logging.String("plot", assignment.Candidate.Name),
		logging.String("destination", assignment.Destination),
	)

	_, err = w.executor.Transfer(ctx, assignment.Candidate, assignment.Destination)
	w.finishTransfer(err)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return OutcomeFailed, err
		}
		return OutcomeFailed, nil
	}
	return OutcomeTransferred, nil
}

func (w *Worker) noteIdle() {
	w.idleStreak++
	if w.idleStreak == 1 {
		w.logger.Info("no work available, waiting",
			logging.String(logging.FieldEventType, "worker_idle"),
			logging.Duration("backoff", w.idleBackoff),
		)
	}
}

func (w *Worker) backoff(ctx context.Context) {
	if w.idleBackoff <= 0 {
		return
	}
	wake := w.waker.C()
	w.setState(StateBackingOff)
	defer w.setState(StateIdle)
	select {
	case <-ctx.Done():
	case <-w.clock.After(w.idleBackoff):
	case <-wake:
		w.logger.Debug("woken early")
	}
}

func (w *Worker) setState(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = state
}

func (w *Worker) setAssignment(a arbiter.Assignment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = StateTransferring
	w.status.Destination = a.Destination
	w.status.File = a.Candidate.Path
}

func (w *Worker) finishTransfer(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = StateIdle
	w.status.Destination = ""
	w.status.File = ""
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		w.status.Failures++
		w.status.LastError = err.Error()
		return
	}
	w.status.Transfers++
	w.status.LastTransfer = w.clock.Now()
}
