// Package storage persists rules and the pause-all snapshot.
//
// Two drivers exist:
//   - file: a single JSON manifest rewritten atomically on every change
//   - sqlite: a modernc.org/sqlite database (pure Go, no cgo)
//
// Both re-read their backing data on every call so several processes
// (the CLI and a running `watch`) observe each other's writes.
package storage
