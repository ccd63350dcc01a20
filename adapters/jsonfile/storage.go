package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments. Every write rewrites the file
// through a tmp-and-rename, so a crash never leaves a half-written file. A
// single mutex serializes all access, which trivially satisfies the
// atomicity contracts.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data fileState
}

type fileState struct {
	Items    map[string]core.RatedItem                  `json:"items"`
	Duels    []core.DuelEvent                           `json:"duels"`
	Stats    map[string]core.AccountStats               `json:"stats"`
	Tastings map[string]core.TastingRecord              `json:"tastings"`
	Progress map[string]map[string]achievement.Progress `json:"progress"`
}

var _ engine.Storage = (*Store)(nil)

func New(path string) (*Store, error) {
	s := &Store{path: path, data: newFileState()}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func newFileState() fileState {
	return fileState{
		Items:    map[string]core.RatedItem{},
		Stats:    map[string]core.AccountStats{},
		Tastings: map[string]core.TastingRecord{},
		Progress: map[string]map[string]achievement.Progress{},
	}
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw fileState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Items == nil {
		raw.Items = map[string]core.RatedItem{}
	}
	if raw.Stats == nil {
		raw.Stats = map[string]core.AccountStats{}
	}
	if raw.Tastings == nil {
		raw.Tastings = map[string]core.TastingRecord{}
	}
	if raw.Progress == nil {
		raw.Progress = map[string]map[string]achievement.Progress{}
	}
	s.data = raw
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func tastingKey(account core.AccountID, item core.ItemID) string {
	return string(account) + "|" + string(item)
}

func (s *Store) GetItem(_ context.Context, id core.ItemID) (core.RatedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.data.Items[string(id)]
	if !ok {
		return core.RatedItem{}, &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	return item, nil
}

func (s *Store) PutItem(_ context.Context, item core.RatedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Items[string(item.ID)] = item
	return s.persist()
}

func (s *Store) ListItems(_ context.Context) ([]core.RatedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]core.RatedItem, 0, len(s.data.Items))
	for _, item := range s.data.Items {
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) SetTier(_ context.Context, id core.ItemID, tier core.Tier, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.data.Items[string(id)]
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	item.Tier = tier
	item.TierLocked = locked
	item.Updated = time.Now().UTC()
	s.data.Items[string(id)] = item
	return s.persist()
}

func (s *Store) ApplyDuel(_ context.Context, ev core.DuelEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	itemA, ok := s.data.Items[string(ev.ItemA)]
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(ev.ItemA)}
	}
	itemB, ok := s.data.Items[string(ev.ItemB)]
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(ev.ItemB)}
	}

	now := time.Now().UTC()
	itemA.Rating = ev.RatingAAfter
	itemA.DuelCount++
	itemA.Updated = now
	itemB.Rating = ev.RatingBAfter
	itemB.DuelCount++
	itemB.Updated = now
	s.data.Items[string(ev.ItemA)] = itemA
	s.data.Items[string(ev.ItemB)] = itemB
	s.data.Duels = append(s.data.Duels, ev)
	return s.persist()
}

func (s *Store) ListDuels(_ context.Context, limit int) ([]core.DuelEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data.Duels)
	if limit <= 0 || limit > n {
		limit = n
	}
	// stored oldest first, returned newest first
	out := make([]core.DuelEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.data.Duels[i])
	}
	return out, nil
}

func (s *Store) getStats(account core.AccountID) core.AccountStats {
	if st, ok := s.data.Stats[string(account)]; ok {
		return st
	}
	return core.AccountStats{
		AccountID: account,
		Styles:    map[string]struct{}{},
		Origins:   map[string]struct{}{},
		ByTier:    map[core.Tier]int64{},
		Updated:   time.Now().UTC(),
	}
}

func (s *Store) GetStats(_ context.Context, account core.AccountID) (core.AccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getStats(account).Clone(), nil
}

func (s *Store) ApplyStats(_ context.Context, account core.AccountID, delta engine.StatsDelta) (core.AccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getStats(account).Clone()

	var err error
	if st.XP, err = core.AddSafe(st.XP, delta.XP); err != nil {
		return core.AccountStats{}, err
	}
	if st.ItemsTasted, err = core.AddSafe(st.ItemsTasted, delta.ItemsTasted); err != nil {
		return core.AccountStats{}, err
	}
	if st.Duels, err = core.AddSafe(st.Duels, delta.Duels); err != nil {
		return core.AccountStats{}, err
	}
	if st.Photos, err = core.AddSafe(st.Photos, delta.Photos); err != nil {
		return core.AccountStats{}, err
	}
	if st.Retastes, err = core.AddSafe(st.Retastes, delta.Retastes); err != nil {
		return core.AccountStats{}, err
	}
	if delta.Style != "" {
		st.Styles[delta.Style] = struct{}{}
	}
	if delta.Origin != "" {
		st.Origins[delta.Origin] = struct{}{}
	}
	if delta.Tier != core.TierUnset {
		st.ByTier[delta.Tier]++
	}
	st.Updated = time.Now().UTC()

	s.data.Stats[string(account)] = st
	if err := s.persist(); err != nil {
		return core.AccountStats{}, err
	}
	return st.Clone(), nil
}

func (s *Store) GetTasting(_ context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.Tastings[tastingKey(account, item)]
	return rec, ok, nil
}

func (s *Store) PutTasting(_ context.Context, rec core.TastingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Tastings[tastingKey(rec.AccountID, rec.ItemID)] = rec
	return s.persist()
}

func (s *Store) GetProgress(_ context.Context, account core.AccountID) (map[string]achievement.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]achievement.Progress, len(s.data.Progress[string(account)]))
	for id, p := range s.data.Progress[string(account)] {
		out[id] = p
	}
	return out, nil
}

func (s *Store) PutProgress(_ context.Context, p achievement.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.data.Progress[string(p.AccountID)]
	if rows == nil {
		rows = map[string]achievement.Progress{}
		s.data.Progress[string(p.AccountID)] = rows
	}
	if prior, ok := rows[p.AchievementID]; ok && prior.Completed && !p.Completed {
		return errors.New("completed achievement cannot be reverted")
	}
	rows[p.AchievementID] = p
	return s.persist()
}
