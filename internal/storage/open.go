package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"automata/internal/rule"
	"automata/pkg/logx"
)

// Store is the persistence API used by the lifecycle manager, the CLI and
// the HTTP API.
type Store interface {
	// List returns every rule ordered by creation time.
	List(ctx context.Context) ([]*rule.Rule, error)
	// Unreadable returns the ids of stored entries List skips because they
	// no longer decode. An entry without a readable id reports "".
	Unreadable(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*rule.Rule, error)
	// Put inserts or replaces a rule by id.
	Put(ctx context.Context, r *rule.Rule) error
	Delete(ctx context.Context, id string) error
	MarkRun(ctx context.Context, id string, at time.Time) error

	PauseState(ctx context.Context) (PauseState, error)
	SetPauseState(ctx context.Context, st PauseState) error

	Close() error
}

// Open initializes the configured store. An empty driver selects "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "file"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "none":
		return nil, ErrDisabled
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
