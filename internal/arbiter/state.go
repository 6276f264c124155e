package arbiter

import (
	"errors"
	"fmt"
	"sort"
)

// ErrClaimConflict reports two workers holding the same staging file.
var ErrClaimConflict = errors.New("file claimed by two workers")

// Claim is one worker's reservation for the current cycle. Empty fields mean
// nothing is held.
type Claim struct {
	Worker      int    `json:"worker"`
	Destination string `json:"destination,omitempty"`
	File        string `json:"file,omitempty"`
}

// State holds the claims of every worker and the round-robin cursor. It is
// not safe for concurrent use; Arbiter guards it with its mutex.
type State struct {
	dest   map[int]string
	files  map[int]string
	cursor int
}

// NewState returns an empty state whose cursor sits before the first
// destination.
func NewState() *State {
	return &State{
		dest:   make(map[int]string),
		files:  make(map[int]string),
		cursor: -1,
	}
}

func (s *State) destinationClaimedByOther(worker int, dir string) bool {
	for w, claimed := range s.dest {
		if w != worker && claimed == dir {
			return true
		}
	}
	return false
}

func (s *State) claimedDestinations(except int) map[string]struct{} {
	out := make(map[string]struct{}, len(s.dest))
	for w, claimed := range s.dest {
		if w != except && claimed != "" {
			out[claimed] = struct{}{}
		}
	}
	return out
}

func (s *State) fileClaimed(path string) bool {
	for _, claimed := range s.files {
		if claimed == path {
			return true
		}
	}
	return false
}

func (s *State) claimDestination(worker int, dir string) {
	s.dest[worker] = dir
}

func (s *State) claimFile(worker int, path string) error {
	for w, claimed := range s.files {
		if w != worker && claimed == path {
			return fmt.Errorf("%w: workers %d and %d both hold %s", ErrClaimConflict, w, worker, path)
		}
	}
	s.files[worker] = path
	return nil
}

func (s *State) clear(worker int) {
	delete(s.dest, worker)
	delete(s.files, worker)
}

func (s *State) claim(worker int) Claim {
	return Claim{Worker: worker, Destination: s.dest[worker], File: s.files[worker]}
}

// verify checks the file exclusivity invariant across all workers.
func (s *State) verify() error {
	owners := make(map[string]int, len(s.files))
	for w, path := range s.files {
		if path == "" {
			continue
		}
		if other, ok := owners[path]; ok {
			return fmt.Errorf("%w: workers %d and %d both hold %s", ErrClaimConflict, other, w, path)
		}
		owners[path] = w
	}
	return nil
}

func (s *State) claims() []Claim {
	workers := make(map[int]struct{}, len(s.dest)+len(s.files))
	for w := range s.dest {
		workers[w] = struct{}{}
	}
	for w := range s.files {
		workers[w] = struct{}{}
	}
	out := make([]Claim, 0, len(workers))
	for w := range workers {
		out = append(out, s.claim(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}
