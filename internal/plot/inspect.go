package plot

import (
	"path/filepath"
	"strings"
)

// Reason classifies a staging entry.
type Reason string

const (
	ReasonEligible        Reason = "eligible"
	ReasonNotPlot         Reason = "not_plot"
	ReasonTemporary       Reason = "temporary"
	ReasonUndersized      Reason = "undersized"
	ReasonUnknownCategory Reason = "unknown_category"
	ReasonWrongCategory   Reason = "wrong_category"
)

// Rejected reports whether the reason marks a file that looks like a finished
// plot but failed validation. Such files deserve an error log; plain non-plots
// and temporary artifacts do not.
func (r Reason) Rejected() bool {
	return r == ReasonUndersized || r == ReasonUnknownCategory
}

// Naming describes the file naming convention of finished plots.
type Naming struct {
	Marker     string
	TempMarker string
	Suffix     string
}

// DefaultNaming matches "plot-k32-....plot" and skips "*.tmp" artifacts.
func DefaultNaming() Naming {
	return Naming{Marker: "plot", TempMarker: "tmp", Suffix: ".plot"}
}

// Classify applies the naming convention to a base name. It returns
// ReasonEligible when the name looks like a finished plot.
func (n Naming) Classify(name string) Reason {
	lower := strings.ToLower(name)
	if n.Marker != "" && !strings.Contains(lower, n.Marker) {
		return ReasonNotPlot
	}
	if n.TempMarker != "" && strings.Contains(lower, n.TempMarker) {
		return ReasonTemporary
	}
	if !strings.HasSuffix(lower, n.Suffix) {
		return ReasonNotPlot
	}
	return ReasonEligible
}

// Candidate is a staging file that may be moved.
type Candidate struct {
	Path     string
	Name     string
	Category Category
	Size     int64
}

// Criteria decides whether a staging file is a movable plot.
type Criteria struct {
	Naming  Naming
	Target  Category
	MinSize int64
}

// Inspect classifies the file at path with the given byte size.
func (c Criteria) Inspect(path string, size int64) (Candidate, Reason) {
	name := filepath.Base(path)
	candidate := Candidate{Path: path, Name: name, Size: size}
	if reason := c.Naming.Classify(name); reason != ReasonEligible {
		return candidate, reason
	}
	if size < c.MinSize {
		return candidate, ReasonUndersized
	}
	k, ok := ParseCategory(name)
	if !ok {
		return candidate, ReasonUnknownCategory
	}
	candidate.Category = k
	if k != c.Target {
		return candidate, ReasonWrongCategory
	}
	return candidate, ReasonEligible
}
