// Package watch turns filesystem and device events into worker wakeups.
//
// Watchers only shorten the idle backoff; the destination list and staging
// directory are still re-read on every cycle, so a missed or failed watcher
// delays work but never loses it. Both watchers are optional and fail soft.
package watch
