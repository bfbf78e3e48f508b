// Package daemon assembles the filtering pipeline: it owns the store, feed
// view, detection cache sweeper, and scheduler, enforces single-instance
// execution with a file lock, serves the management HTTP API, and reacts to
// persisted policy changes.
package daemon
