// Package arbiter assigns each worker a destination directory and a staging
// plot under one lock.
//
// A single Arbitrate call re-reads the destination list, advances the shared
// round-robin cursor to the next admitted destination, steers away from
// destinations other workers are writing to, and claims the first eligible
// plot nobody else holds. Destination exclusivity is best effort: when every
// admitted destination is already claimed the worker shares one and a warning
// is logged. File exclusivity is never relaxed; a violation is reported as
// ErrClaimConflict and ends the daemon.
package arbiter
