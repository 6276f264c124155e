package arbiter

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
)

// chooseSourceFile claims the first eligible staging plot no worker holds.
// Caller holds a.mu.
func (a *Arbiter) chooseSourceFile(logger *slog.Logger, worker int) (plot.Candidate, bool, error) {
	entries, err := os.ReadDir(a.stagingDir)
	if err != nil {
		a.warnOnce(logger, "staging directory unreadable", "staging_unreadable",
			logging.String("staging_dir", a.stagingDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.staging_dir exists and is readable"),
		)
		return plot.Candidate{}, false, nil
	}
	a.resolved("staging_unreadable")

	seen := make(map[string]struct{}, len(entries))
	eligible := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if a.criteria.Naming.Classify(entry.Name()) != plot.ReasonEligible {
			continue
		}
		path, err := filepath.Abs(filepath.Join(a.stagingDir, entry.Name()))
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Debug("staging entry stat failed", logging.String("path", path), logging.Error(err))
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		seen[path] = struct{}{}

		candidate, reason := a.criteria.Inspect(path, info.Size())
		switch {
		case reason.Rejected():
			a.reportRejected(logger, path, reason, info.Size())
			continue
		case reason != plot.ReasonEligible:
			continue
		}

		eligible++
		if a.state.fileClaimed(path) {
			continue
		}
		if err := a.state.claimFile(worker, path); err != nil {
			return plot.Candidate{}, false, err
		}
		a.resolved("no_plots")
		return candidate, true, nil
	}

	a.forgetRejected(seen)
	if eligible > 0 {
		a.resolved("no_plots")
		logger.Debug("every eligible plot is already being moved",
			logging.String("staging_dir", a.stagingDir),
			logging.Int("eligible", eligible),
		)
		return plot.Candidate{}, false, nil
	}
	a.warnOnce(logger, "no plots found in staging", "no_plots",
		logging.String("staging_dir", a.stagingDir),
		logging.String(logging.FieldErrorHint, "waiting for the plotter to finish a plot"),
		logging.String(logging.FieldImpact, "workers stay idle until a finished plot appears"),
	)
	return plot.Candidate{}, false, nil
}

// reportRejected logs an invalid plot at error level once per file and reason.
// Caller holds a.mu.
func (a *Arbiter) reportRejected(logger *slog.Logger, path string, reason plot.Reason, size int64) {
	if prev, ok := a.rejected[path]; ok && prev == reason {
		return
	}
	a.rejected[path] = reason
	logging.ErrorWithContext(logger, rejectionMessage(reason), "plot_rejected",
		logging.String("path", path),
		logging.String("reason", string(reason)),
		logging.Int64("size_bytes", size),
		logging.String(logging.FieldErrorHint, "remove or re-plot the file; it will not be moved"),
	)
}

// forgetRejected drops rejection records for files absent from a complete
// scan, so a file that reappears is reported again.
func (a *Arbiter) forgetRejected(seen map[string]struct{}) {
	for path := range a.rejected {
		if _, ok := seen[path]; !ok {
			delete(a.rejected, path)
		}
	}
}

func rejectionMessage(reason plot.Reason) string {
	switch reason {
	case plot.ReasonUndersized:
		return "plot is smaller than the minimum size"
	case plot.ReasonUnknownCategory:
		return "unable to determine plot k value"
	default:
		return "plot rejected"
	}
}
