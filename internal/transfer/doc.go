// Package transfer moves one plot into a destination directory and only
// deletes the staging copy after the destination content checksum matches.
//
// Each attempt copies the file, hashes both sides, and compares. A mismatch
// removes the bad copy and tries again up to the configured bound. I/O
// errors end the transfer immediately after removing any partial file.
// Once bytes start moving the transfer ignores shutdown so a plot is never
// left half-copied.
package transfer
