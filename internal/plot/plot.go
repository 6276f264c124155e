package plot

import (
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Category is the k-value of a plot, embedded in its file name as "k32".
type Category int

var knownCategories = []Category{32, 33, 34, 35}

// categoryPrefixWidth bounds where in the lowercased file name the category
// token may appear, so plot IDs that happen to contain "k33" are ignored.
const categoryPrefixWidth = 10

// KnownCategories returns the categories recognized in file names.
func KnownCategories() []Category {
	return slices.Clone(knownCategories)
}

// IsKnownCategory reports whether k is a recognized category.
func IsKnownCategory(k Category) bool {
	return slices.Contains(knownCategories, k)
}

// Token returns the file name token for the category, e.g. "k32".
func (k Category) Token() string {
	return "k" + strconv.Itoa(int(k))
}

func (k Category) String() string {
	return k.Token()
}

// UnitSize approximates the on-disk footprint of one plot of category k:
// (2k+1) * 2^(k-1) * 0.762 bytes.
func UnitSize(k Category) uint64 {
	return uint64(float64(2*k+1) * math.Pow(2, float64(k-1)) * 0.762)
}

// ParseCategory extracts the category token from the first characters of the
// lowercased file name.
func ParseCategory(name string) (Category, bool) {
	prefix := strings.ToLower(filepath.Base(name))
	if len(prefix) > categoryPrefixWidth {
		prefix = prefix[:categoryPrefixWidth]
	}
	best := -1
	var found Category
	for _, k := range knownCategories {
		idx := strings.Index(prefix, k.Token())
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
			found = k
		}
	}
	return found, best >= 0
}
