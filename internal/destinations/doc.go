// Package destinations reads the operator-maintained destination list and
// decides whether a destination directory can hold one more plot.
//
// The list file is re-read on every call to Registry.Refresh so that
// destinations can be added or removed while the daemon runs. Invalid
// entries are logged and skipped; Refresh never returns an error.
package destinations
