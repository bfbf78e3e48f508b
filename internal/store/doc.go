// Package store persists feedsift state in a single sqlite database: the
// enabled flag, the mutually exclusive channel allow/block lists, the filtered
// item counter, cached language detections, and classifier version metadata.
//
// Writers emit change notifications so the daemon can reprocess the visible
// feed when policy inputs change. All operations are idempotent
// read-modify-write against sqlite; last-write-wins is acceptable.
package store
