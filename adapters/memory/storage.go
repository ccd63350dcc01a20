// Package memory is a concurrent in-memory Storage implementation. It is
// the reference for the atomicity contracts: duel pairs commit under both
// item locks, stats commit under the account lock.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"
)

type Store struct {
	items    sync.Map // map[core.ItemID]*itemRecord
	accounts sync.Map // map[core.AccountID]*accountRecord

	tastingMu sync.RWMutex
	tastings  map[tastingKey]core.TastingRecord

	duelMu sync.Mutex
	duels  []core.DuelEvent

	progressMu sync.Mutex
	progress   map[core.AccountID]map[string]achievement.Progress
}

type tastingKey struct {
	account core.AccountID
	item    core.ItemID
}

type itemRecord struct {
	mu   sync.Mutex
	item core.RatedItem
}

type accountRecord struct {
	mu    sync.Mutex
	stats core.AccountStats
}

func New() *Store {
	return &Store{
		tastings: map[tastingKey]core.TastingRecord{},
		progress: map[core.AccountID]map[string]achievement.Progress{},
	}
}

func (s *Store) getItemRecord(id core.ItemID) (*itemRecord, bool) {
	v, ok := s.items.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*itemRecord), true
}

func (s *Store) getOrCreateAccount(account core.AccountID) *accountRecord {
	if v, ok := s.accounts.Load(account); ok {
		return v.(*accountRecord)
	}
	rec := &accountRecord{stats: core.AccountStats{
		AccountID: account,
		Styles:    map[string]struct{}{},
		Origins:   map[string]struct{}{},
		ByTier:    map[core.Tier]int64{},
		Updated:   time.Now().UTC(),
	}}
	actual, _ := s.accounts.LoadOrStore(account, rec)
	return actual.(*accountRecord)
}

func (s *Store) GetItem(_ context.Context, id core.ItemID) (core.RatedItem, error) {
	rec, ok := s.getItemRecord(id)
	if !ok {
		return core.RatedItem{}, &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.item, nil
}

func (s *Store) PutItem(_ context.Context, item core.RatedItem) error {
	if rec, ok := s.getItemRecord(item.ID); ok {
		rec.mu.Lock()
		rec.item = item
		rec.mu.Unlock()
		return nil
	}
	s.items.LoadOrStore(item.ID, &itemRecord{item: item})
	return nil
}

func (s *Store) ListItems(_ context.Context) ([]core.RatedItem, error) {
	var out []core.RatedItem
	s.items.Range(func(_, v any) bool {
		rec := v.(*itemRecord)
		rec.mu.Lock()
		out = append(out, rec.item)
		rec.mu.Unlock()
		return true
	})
	return out, nil
}

func (s *Store) SetTier(_ context.Context, id core.ItemID, tier core.Tier, locked bool) error {
	rec, ok := s.getItemRecord(id)
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.item.Tier = tier
	rec.item.TierLocked = locked
	rec.item.Updated = time.Now().UTC()
	return nil
}

// ApplyDuel holds both item locks (in ID order, to avoid deadlock) so a
// reader can never observe one rating updated without the other.
func (s *Store) ApplyDuel(_ context.Context, ev core.DuelEvent) error {
	ra, ok := s.getItemRecord(ev.ItemA)
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(ev.ItemA)}
	}
	rb, ok := s.getItemRecord(ev.ItemB)
	if !ok {
		return &engine.NotFoundError{Kind: "item", ID: string(ev.ItemB)}
	}
	first, second := ra, rb
	if ev.ItemB < ev.ItemA {
		first, second = rb, ra
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	now := time.Now().UTC()
	ra.item.Rating = ev.RatingAAfter
	ra.item.DuelCount++
	ra.item.Updated = now
	rb.item.Rating = ev.RatingBAfter
	rb.item.DuelCount++
	rb.item.Updated = now

	s.duelMu.Lock()
	s.duels = append(s.duels, ev)
	s.duelMu.Unlock()
	return nil
}

func (s *Store) ListDuels(_ context.Context, limit int) ([]core.DuelEvent, error) {
	s.duelMu.Lock()
	defer s.duelMu.Unlock()
	n := len(s.duels)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.DuelEvent, limit)
	// newest first
	for i := 0; i < limit; i++ {
		out[i] = s.duels[n-1-i]
	}
	return out, nil
}

func (s *Store) GetStats(_ context.Context, account core.AccountID) (core.AccountStats, error) {
	rec := s.getOrCreateAccount(account)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stats.Clone(), nil
}

func (s *Store) ApplyStats(_ context.Context, account core.AccountID, delta engine.StatsDelta) (core.AccountStats, error) {
	rec := s.getOrCreateAccount(account)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, err := core.AddSafe(rec.stats.XP, delta.XP)
	if err != nil {
		return core.AccountStats{}, err
	}
	rec.stats.XP = next
	rec.stats.ItemsTasted += delta.ItemsTasted
	rec.stats.Duels += delta.Duels
	rec.stats.Photos += delta.Photos
	rec.stats.Retastes += delta.Retastes
	if delta.Style != "" {
		rec.stats.Styles[delta.Style] = struct{}{}
	}
	if delta.Origin != "" {
		rec.stats.Origins[delta.Origin] = struct{}{}
	}
	if delta.Tier != core.TierUnset {
		rec.stats.ByTier[delta.Tier]++
	}
	rec.stats.Updated = time.Now().UTC()
	return rec.stats.Clone(), nil
}

func (s *Store) GetTasting(_ context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error) {
	s.tastingMu.RLock()
	defer s.tastingMu.RUnlock()
	rec, ok := s.tastings[tastingKey{account, item}]
	return rec, ok, nil
}

func (s *Store) PutTasting(_ context.Context, rec core.TastingRecord) error {
	s.tastingMu.Lock()
	defer s.tastingMu.Unlock()
	s.tastings[tastingKey{rec.AccountID, rec.ItemID}] = rec
	return nil
}

func (s *Store) GetProgress(_ context.Context, account core.AccountID) (map[string]achievement.Progress, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	out := make(map[string]achievement.Progress, len(s.progress[account]))
	for k, v := range s.progress[account] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) PutProgress(_ context.Context, p achievement.Progress) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	m := s.progress[p.AccountID]
	if m == nil {
		m = map[string]achievement.Progress{}
		s.progress[p.AccountID] = m
	}
	if prev, ok := m[p.AchievementID]; ok && prev.Completed && !p.Completed {
		return errors.New("achievement completion cannot be unset")
	}
	m[p.AchievementID] = p
	return nil
}

var _ engine.Storage = (*Store)(nil)
