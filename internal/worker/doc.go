// Package worker runs the archiving loop.
//
// Each Worker repeatedly asks the shared arbiter for a destination and a
// plot, transfers the plot outside the arbiter lock, and releases its claims
// whatever the outcome. Cycles without work sleep for the idle backoff or
// until a Waker fires. Pool starts a fixed number of workers in an errgroup;
// only a claim conflict stops the pool on its own.
package worker
