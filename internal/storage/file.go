package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"automata/internal/fsx"
	"automata/internal/rule"
	"automata/pkg/logx"
)

const manifestVersion = 1

// fileStore keeps everything in one JSON manifest.
//
// The manifest is read on every call and rewritten with a temp file and
// rename on every change. Rules are kept as raw JSON so one undecodable
// entry does not take the others down with it.
type fileStore struct {
	path string
	log  logx.Logger

	mu sync.Mutex
}

type manifest struct {
	Version int               `json:"version"`
	Rules   []json.RawMessage `json:"rules"`
	Pause   PauseState        `json:"pause"`
}

type ruleHead struct {
	ID string `json:"id"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{path: path, log: log}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) load() (*manifest, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		return nil, err
	}
	m := &manifest{}
	if len(strings.TrimSpace(string(b))) == 0 {
		m.Version = manifestVersion
		return m, nil
	}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *fileStore) save(m *manifest) error {
	m.Version = manifestVersion
	if m.Rules == nil {
		m.Rules = []json.RawMessage{}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(s.path, append(b, '\n'), 0o600)
}

func indexOf(m *manifest, id string) int {
	for i, raw := range m.Rules {
		var h ruleHead
		if json.Unmarshal(raw, &h) == nil && h.ID == id {
			return i
		}
	}
	return -1
}

func (s *fileStore) List(ctx context.Context) ([]*rule.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out, bad := decodeRules(m.Rules)
	for id, err := range bad {
		s.log.Warn("skipping undecodable rule", logx.String("id", id), logx.Err(err))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fileStore) Unreadable(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	_, bad := decodeRules(m.Rules)
	ids := make([]string, 0, len(bad))
	for id := range bad {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// decodeRules splits raw entries into rules and decode errors keyed by the
// entry id.
func decodeRules(raws []json.RawMessage) ([]*rule.Rule, map[string]error) {
	out := make([]*rule.Rule, 0, len(raws))
	bad := map[string]error{}
	for _, raw := range raws {
		r := &rule.Rule{}
		if err := json.Unmarshal(raw, r); err != nil {
			var h ruleHead
			_ = json.Unmarshal(raw, &h)
			bad[h.ID] = err
			continue
		}
		out = append(out, r)
	}
	return out, bad
}

func (s *fileStore) Get(ctx context.Context, id string) (*rule.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(m, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	r := &rule.Rule{}
	if err := json.Unmarshal(m.Rules[i], r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *fileStore) Put(ctx context.Context, r *rule.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if i := indexOf(m, r.ID); i >= 0 {
		m.Rules[i] = raw
	} else {
		m.Rules = append(m.Rules, raw)
	}
	return s.save(m)
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(m, id)
	if i < 0 {
		return ErrNotFound
	}
	m.Rules = append(m.Rules[:i], m.Rules[i+1:]...)
	return s.save(m)
}

func (s *fileStore) MarkRun(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(m, id)
	if i < 0 {
		return ErrNotFound
	}
	r := &rule.Rule{}
	if err := json.Unmarshal(m.Rules[i], r); err != nil {
		return err
	}
	at = at.UTC().Truncate(time.Second)
	r.LastRunAt = &at
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.Rules[i] = raw
	return s.save(m)
}

func (s *fileStore) PauseState(ctx context.Context) (PauseState, error) {
	if err := ctx.Err(); err != nil {
		return PauseState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return PauseState{}, err
	}
	return m.Pause, nil
}

func (s *fileStore) SetPauseState(ctx context.Context, st PauseState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if !st.Paused {
		st = PauseState{}
	}
	m.Pause = st
	return s.save(m)
}
