// Package daemon coordinates the long-running plotarchiver process.
//
// It wires configuration, the destination registry, the arbiter, the worker
// pool, and the optional watchers into a single lifecycle with flock-based
// locking to prevent two archivers from draining the same staging directory.
//
// Keep orchestration logic here: placement and transfer rules live in their
// own packages while the daemon focuses on startup, shutdown, and status.
package daemon
