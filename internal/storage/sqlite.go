package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"automata/internal/rule"
	"automata/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context) ([]*rule.Rule, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM rules ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*rule.Rule
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		r := &rule.Rule{}
		if err := json.Unmarshal([]byte(body), r); err != nil {
			s.log.Warn("skipping undecodable rule", logx.String("id", id), logx.Err(err))
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Unreadable(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		if json.Unmarshal([]byte(body), &rule.Rule{}) != nil {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*rule.Rule, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM rules WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r := &rule.Rule{}
	if err := json.Unmarshal([]byte(body), r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *sqliteStore) Put(ctx context.Context, r *rule.Rule) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules(id, created_at, enabled, body) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET enabled=excluded.enabled, body=excluded.body`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), boolInt(r.Enabled), string(body),
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) MarkRun(ctx context.Context, id string, at time.Time) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	at = at.UTC().Truncate(time.Second)
	r.LastRunAt = &at
	return s.Put(ctx, r)
}

func (s *sqliteStore) PauseState(ctx context.Context) (PauseState, error) {
	if s == nil || s.db == nil {
		return PauseState{}, ErrDisabled
	}
	var (
		paused int
		ids    string
		at     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT paused, ids, at FROM pause_state WHERE id = 1`).Scan(&paused, &ids, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return PauseState{}, nil
	}
	if err != nil {
		return PauseState{}, err
	}
	st := PauseState{Paused: paused != 0}
	if err := json.Unmarshal([]byte(ids), &st.IDs); err != nil {
		return PauseState{}, fmt.Errorf("pause_state.ids: %w", err)
	}
	if at.Valid {
		if t, err := time.Parse(time.RFC3339Nano, at.String); err == nil {
			st.At = t
		}
	}
	return st, nil
}

func (s *sqliteStore) SetPauseState(ctx context.Context, st PauseState) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if !st.Paused {
		_, err := s.db.ExecContext(ctx, `DELETE FROM pause_state WHERE id = 1`)
		return err
	}
	ids, err := json.Marshal(st.IDs)
	if err != nil {
		return err
	}
	if st.IDs == nil {
		ids = []byte("[]")
	}
	var at string
	if !st.At.IsZero() {
		at = st.At.UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pause_state(id, paused, ids, at) VALUES(1,1,?,?)
		 ON CONFLICT(id) DO UPDATE SET paused=1, ids=excluded.ids, at=excluded.at`,
		string(ids), nullStr(at),
	)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
