package cached

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"
)

// DefaultSize is the item cache capacity when none is given.
const DefaultSize = 4096

// Store is a read-through item cache wrapped around another Storage. Only
// catalog items are cached; they are read on every duel and tasting while
// changing rarely. Account state is always served by the backend, whose
// atomicity contracts this decorator must not weaken.
type Store struct {
	backend engine.Storage
	items   *lru.Cache
}

var _ engine.Storage = (*Store)(nil)

// New wraps backend with an LRU item cache of the given size. A size of zero
// or less uses DefaultSize.
func New(backend engine.Storage, size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, items: cache}, nil
}

func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.RatedItem, error) {
	if v, ok := s.items.Get(id); ok {
		return v.(core.RatedItem), nil
	}
	item, err := s.backend.GetItem(ctx, id)
	if err != nil {
		return core.RatedItem{}, err
	}
	s.items.Add(id, item)
	return item, nil
}

func (s *Store) PutItem(ctx context.Context, item core.RatedItem) error {
	if err := s.backend.PutItem(ctx, item); err != nil {
		return err
	}
	s.items.Add(item.ID, item)
	return nil
}

// ListItems bypasses the cache; listing is an admin path and the backend is
// authoritative.
func (s *Store) ListItems(ctx context.Context) ([]core.RatedItem, error) {
	return s.backend.ListItems(ctx)
}

func (s *Store) SetTier(ctx context.Context, id core.ItemID, tier core.Tier, locked bool) error {
	if err := s.backend.SetTier(ctx, id, tier, locked); err != nil {
		return err
	}
	s.items.Remove(id)
	return nil
}

func (s *Store) ApplyDuel(ctx context.Context, ev core.DuelEvent) error {
	if err := s.backend.ApplyDuel(ctx, ev); err != nil {
		return err
	}
	s.items.Remove(ev.ItemA)
	s.items.Remove(ev.ItemB)
	return nil
}

func (s *Store) ListDuels(ctx context.Context, limit int) ([]core.DuelEvent, error) {
	return s.backend.ListDuels(ctx, limit)
}

func (s *Store) GetStats(ctx context.Context, account core.AccountID) (core.AccountStats, error) {
	return s.backend.GetStats(ctx, account)
}

func (s *Store) ApplyStats(ctx context.Context, account core.AccountID, delta engine.StatsDelta) (core.AccountStats, error) {
	return s.backend.ApplyStats(ctx, account, delta)
}

func (s *Store) GetTasting(ctx context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error) {
	return s.backend.GetTasting(ctx, account, item)
}

func (s *Store) PutTasting(ctx context.Context, rec core.TastingRecord) error {
	return s.backend.PutTasting(ctx, rec)
}

func (s *Store) GetProgress(ctx context.Context, account core.AccountID) (map[string]achievement.Progress, error) {
	return s.backend.GetProgress(ctx, account)
}

func (s *Store) PutProgress(ctx context.Context, p achievement.Progress) error {
	return s.backend.PutProgress(ctx, p)
}
