package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("rule not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON manifest (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PauseState is the pause-all record. IDs are the rules that were enabled
// when PauseAll ran.
type PauseState struct {
	Paused bool      `json:"paused"`
	IDs    []string  `json:"ids,omitempty"`
	At     time.Time `json:"at,omitempty"`
}
