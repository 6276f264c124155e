package arbiter

import (
	"context"
	"log/slog"
	"sync"

	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
)

// Refresher re-reads the destination list.
type Refresher interface {
	Refresh(listPath string) []string
}

// Admitter decides whether a destination can take one more plot.
type Admitter interface {
	HasCapacity(dir string, unit uint64) bool
}

// Options configures an Arbiter.
type Options struct {
	StagingDir string
	ListPath   string
	Criteria   plot.Criteria
	Registry   Refresher
	Capacity   Admitter
	Logger     *slog.Logger
}

// Assignment is the destination and plot granted to a worker for one cycle.
type Assignment struct {
	Worker      int
	Destination string
	Candidate   plot.Candidate
}

// Arbiter owns the shared claim state. All exported methods are safe for
// concurrent use by the pool's workers.
type Arbiter struct {
	mu    sync.Mutex
	state *State

	stagingDir string
	listPath   string
	criteria   plot.Criteria
	unit       uint64
	registry   Refresher
	capacity   Admitter
	logger     *slog.Logger

	// quiet holds conditions already reported at warn level; repeats log at
	// debug until the condition clears.
	quiet map[string]bool
	// rejected remembers staging files already reported as invalid.
	rejected map[string]plot.Reason
	// overlapping remembers listed destinations already reported as the
	// staging directory.
	overlapping map[string]bool
}

// New constructs an arbiter with an empty claim state.
func New(opts Options) *Arbiter {
	return &Arbiter{
		state:       NewState(),
		stagingDir:  opts.StagingDir,
		listPath:    opts.ListPath,
		criteria:    opts.Criteria,
		unit:        plot.UnitSize(opts.Criteria.Target),
		registry:    opts.Registry,
		capacity:    opts.Capacity,
		logger:      logging.NewComponentLogger(opts.Logger, "arbiter"),
		quiet:       make(map[string]bool),
		rejected:    make(map[string]plot.Reason),
		overlapping: make(map[string]bool),
	}
}

// UnitSize is the free space a destination needs to be admitted.
func (a *Arbiter) UnitSize() uint64 {
	return a.unit
}

// Arbitrate refreshes the destination list and claims a destination and a
// plot for worker, all under the arbiter lock. refreshed, when non-nil, is
// called after the destination list has been re-read. ok is false when either
// half is unavailable; the worker then holds no claims. The only error
// besides context cancellation is ErrClaimConflict.
func (a *Arbiter) Arbitrate(ctx context.Context, worker int, refreshed func()) (Assignment, bool, error) {
	if err := ctx.Err(); err != nil {
		return Assignment{}, false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	listed := a.registry.Refresh(a.listPath)
	if refreshed != nil {
		refreshed()
	}

	logger := a.logger.With(logging.Int(logging.FieldWorker, worker))
	destinations := a.withoutStaging(logger, listed)
	admit := a.admission(destinations)

	dest, ok := a.chooseDestination(logger, worker, destinations, admit)
	if !ok {
		a.state.clear(worker)
		return Assignment{}, false, nil
	}

	candidate, ok, err := a.chooseSourceFile(logger, worker)
	if err != nil {
		return Assignment{}, false, err
	}
	if !ok {
		a.state.clear(worker)
		return Assignment{}, false, nil
	}
	if err := a.state.verify(); err != nil {
		return Assignment{}, false, err
	}

	return Assignment{Worker: worker, Destination: dest, Candidate: candidate}, true, nil
}

// Release clears both claims of worker.
func (a *Arbiter) Release(worker int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.clear(worker)
}

// Claim returns the current reservation of worker.
func (a *Arbiter) Claim(worker int) Claim {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.claim(worker)
}

// Snapshot returns every non-empty claim ordered by worker.
func (a *Arbiter) Snapshot() []Claim {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.claims()
}

// admission memoizes capacity answers so one arbitration sees one view of
// free space.
func (a *Arbiter) admission(destinations []string) func(int) bool {
	memo := make(map[int]bool, len(destinations))
	return func(idx int) bool {
		if v, ok := memo[idx]; ok {
			return v
		}
		v := a.capacity.HasCapacity(destinations[idx], a.unit)
		memo[idx] = v
		return v
	}
}

// warnOnce logs at warn level the first time eventType occurs and at debug
// level while it persists. Caller holds a.mu.
func (a *Arbiter) warnOnce(logger *slog.Logger, msg, eventType string, attrs ...logging.Attr) {
	if a.quiet[eventType] {
		logger.Debug(msg, logging.Args(append(attrs, logging.String(logging.FieldEventType, eventType))...)...)
		return
	}
	a.quiet[eventType] = true
	logging.WarnWithContext(logger, msg, eventType, attrs...)
}

func (a *Arbiter) resolved(eventTypes ...string) {
	for _, eventType := range eventTypes {
		delete(a.quiet, eventType)
	}
}
