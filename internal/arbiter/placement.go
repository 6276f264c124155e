package arbiter

import (
	"log/slog"
	"os"
	"path/filepath"

	"plotarchiver/internal/logging"
)

// chooseDestination advances the cursor to the next admitted destination and
// records it as the worker's claim. Caller holds a.mu.
func (a *Arbiter) chooseDestination(logger *slog.Logger, worker int, destinations []string, admit func(int) bool) (string, bool) {
	n := len(destinations)
	if n == 0 {
		a.warnOnce(logger, "no valid destinations configured", "no_destinations",
			logging.String("list_path", a.listPath),
			logging.String(logging.FieldErrorHint, "add mounted destination directories to the destination list"),
		)
		return "", false
	}

	chosen := -1
	for i := 0; i < n; i++ {
		a.state.cursor = (a.state.cursor + 1) % n
		if admit(a.state.cursor) {
			chosen = a.state.cursor
			break
		}
	}
	if chosen < 0 {
		a.resolved("no_destinations")
		a.warnOnce(logger, "no destination has room for another plot", "no_capacity",
			logging.Int("destinations", n),
			logging.Uint64("unit_bytes", a.unit),
			logging.String(logging.FieldErrorHint, "add a destination or free space on an existing one"),
		)
		return "", false
	}

	a.resolved("no_destinations", "no_capacity")

	if a.state.destinationClaimedByOther(worker, destinations[chosen]) {
		if alt, ok := a.unclaimedAlternative(worker, destinations, admit); ok {
			chosen = alt
		} else {
			logging.WarnWithContext(logger, "sharing destination with another worker", "destination_shared",
				logging.String("destination", destinations[chosen]),
				logging.String(logging.FieldErrorHint, "add destinations to avoid concurrent writes to one drive"),
				logging.String(logging.FieldImpact, "two transfers write to the same destination"),
			)
		}
	}

	a.state.claimDestination(worker, destinations[chosen])
	return destinations[chosen], true
}

// unclaimedAlternative returns the lowest admitted index no other worker holds.
func (a *Arbiter) unclaimedAlternative(worker int, destinations []string, admit func(int) bool) (int, bool) {
	claimed := a.state.claimedDestinations(worker)
	for idx, dir := range destinations {
		if _, taken := claimed[dir]; taken {
			continue
		}
		if admit(idx) {
			return idx, true
		}
	}
	return -1, false
}

// withoutStaging drops listed destinations that are the staging directory,
// directly or through a symlink or bind mount. Each one is reported at error
// level once while it stays listed. Caller holds a.mu.
func (a *Arbiter) withoutStaging(logger *slog.Logger, destinations []string) []string {
	stagingInfo, statErr := os.Stat(a.stagingDir)
	staging := filepath.Clean(a.stagingDir)

	kept := destinations[:0:0]
	listed := make(map[string]bool, len(destinations))
	for _, dir := range destinations {
		same := filepath.Clean(dir) == staging
		if !same && statErr == nil {
			if info, err := os.Stat(dir); err == nil && os.SameFile(info, stagingInfo) {
				same = true
			}
		}
		if !same {
			kept = append(kept, dir)
			continue
		}
		listed[dir] = true
		if a.overlapping[dir] {
			continue
		}
		a.overlapping[dir] = true
		logging.ErrorWithContext(logger, "destination is the staging directory", "destination_is_staging",
			logging.String("destination", dir),
			logging.String("staging_dir", a.stagingDir),
			logging.String(logging.FieldErrorHint, "remove the staging directory from the destination list"),
		)
	}
	for dir := range a.overlapping {
		if !listed[dir] {
			delete(a.overlapping, dir)
		}
	}
	return kept
}
