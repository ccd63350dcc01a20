package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// txRetries bounds the optimistic WATCH/MULTI retry loop.
const txRetries = 8

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - item:{item_id} -> JSON blob of RatedItem
// - items -> set of item ids (catalog index)
// - duels -> list of JSON DuelEvent blobs, newest first
// - account:{account_id}:stats -> JSON blob of AccountStats
// - tasting:{account_id}:{item_id} -> JSON blob of TastingRecord
// - account:{account_id}:progress -> hash of achievement id to JSON Progress
//
// The multi-key writes (duel pair, stats read-modify-write, progress guard)
// run inside WATCH/MULTI transactions with a bounded retry loop, so the
// atomicity contracts hold under concurrent writers.
type Store struct {
	client *redis.Client
}

var _ engine.Storage = (*Store)(nil)

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const (
	itemIndexKey = "items"
	duelLogKey   = "duels"
)

func itemKey(id core.ItemID) string {
	return fmt.Sprintf("item:%s", id)
}

func statsKey(account core.AccountID) string {
	return fmt.Sprintf("account:%s:stats", account)
}

func tastingKey(account core.AccountID, item core.ItemID) string {
	return fmt.Sprintf("tasting:%s:%s", account, item)
}

func progressKey(account core.AccountID) string {
	return fmt.Sprintf("account:%s:progress", account)
}

// GetItem retrieves a single catalog item by id.
func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.RatedItem, error) {
	data, err := s.client.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.RatedItem{}, &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	if err != nil {
		return core.RatedItem{}, fmt.Errorf("failed to get item: %w", err)
	}

	var item core.RatedItem
	if err := json.Unmarshal(data, &item); err != nil {
		return core.RatedItem{}, fmt.Errorf("corrupt item record %s: %w", id, err)
	}
	return item, nil
}

// PutItem stores the item blob and registers it in the catalog index.
func (s *Store) PutItem(ctx context.Context, item core.RatedItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(item.ID), data, 0)
		pipe.SAdd(ctx, itemIndexKey, string(item.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// ListItems returns every item registered in the catalog index. Index entries
// whose blob has vanished are skipped rather than failing the listing.
func (s *Store) ListItems(ctx context.Context) ([]core.RatedItem, error) {
	ids, err := s.client.SMembers(ctx, itemIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]core.RatedItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.GetItem(ctx, core.ItemID(id))
		if err != nil {
			var nf *engine.NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// SetTier updates the tier fields of an item inside a WATCH transaction so a
// concurrent duel write cannot be clobbered.
func (s *Store) SetTier(ctx context.Context, id core.ItemID, tier core.Tier, locked bool) error {
	key := itemKey(id)
	return s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return &engine.NotFoundError{Kind: "item", ID: string(id)}
			}
			if err != nil {
				return err
			}

			var item core.RatedItem
			if err := json.Unmarshal(data, &item); err != nil {
				return fmt.Errorf("corrupt item record %s: %w", id, err)
			}
			item.Tier = tier
			item.TierLocked = locked
			item.Updated = time.Now().UTC()

			updated, err := json.Marshal(item)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)
	})
}

// ApplyDuel writes both post-duel item states and appends the duel event as a
// single transaction.
func (s *Store) ApplyDuel(ctx context.Context, ev core.DuelEvent) error {
	keyA := itemKey(ev.ItemA)
	keyB := itemKey(ev.ItemB)

	evData, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode duel event: %w", err)
	}

	return s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			itemA, err := s.loadItemTx(ctx, tx, ev.ItemA)
			if err != nil {
				return err
			}
			itemB, err := s.loadItemTx(ctx, tx, ev.ItemB)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			itemA.Rating = ev.RatingAAfter
			itemA.DuelCount++
			itemA.Updated = now
			itemB.Rating = ev.RatingBAfter
			itemB.DuelCount++
			itemB.Updated = now

			dataA, err := json.Marshal(itemA)
			if err != nil {
				return err
			}
			dataB, err := json.Marshal(itemB)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, keyA, dataA, 0)
				pipe.Set(ctx, keyB, dataB, 0)
				pipe.LPush(ctx, duelLogKey, evData)
				return nil
			})
			return err
		}, keyA, keyB)
	})
}

// ListDuels returns duel events newest first, up to limit (0 means all).
func (s *Store) ListDuels(ctx context.Context, limit int) ([]core.DuelEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	rows, err := s.client.LRange(ctx, duelLogKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}

	events := make([]core.DuelEvent, 0, len(rows))
	for _, row := range rows {
		var ev core.DuelEvent
		if err := json.Unmarshal([]byte(row), &ev); err != nil {
			return nil, fmt.Errorf("corrupt duel record: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetStats returns the account's stats snapshot, zero-valued for accounts
// that have never recorded anything.
func (s *Store) GetStats(ctx context.Context, account core.AccountID) (core.AccountStats, error) {
	data, err := s.client.Get(ctx, statsKey(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zeroStats(account), nil
	}
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return decodeStats(account, data)
}

// ApplyStats performs an atomic read-modify-write of the account snapshot.
func (s *Store) ApplyStats(ctx context.Context, account core.AccountID, delta engine.StatsDelta) (core.AccountStats, error) {
	key := statsKey(account)
	var result core.AccountStats

	err := s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			stats := zeroStats(account)
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				stats, err = decodeStats(account, data)
				if err != nil {
					return err
				}
			}

			if err := applyDelta(&stats, delta); err != nil {
				return err
			}

			updated, err := json.Marshal(stats)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = stats
			return nil
		}, key)
	})
	if err != nil {
		return core.AccountStats{}, err
	}
	return result, nil
}

// GetTasting retrieves the tasting record for an account/item pair.
func (s *Store) GetTasting(ctx context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error) {
	data, err := s.client.Get(ctx, tastingKey(account, item)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.TastingRecord{}, false, nil
	}
	if err != nil {
		return core.TastingRecord{}, false, fmt.Errorf("failed to get tasting: %w", err)
	}

	var rec core.TastingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.TastingRecord{}, false, fmt.Errorf("corrupt tasting record: %w", err)
	}
	return rec, true, nil
}

// PutTasting stores the tasting record blob.
func (s *Store) PutTasting(ctx context.Context, rec core.TastingRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode tasting: %w", err)
	}
	if err := s.client.Set(ctx, tastingKey(rec.AccountID, rec.ItemID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to put tasting: %w", err)
	}
	return nil
}

// GetProgress returns all achievement progress rows for an account.
func (s *Store) GetProgress(ctx context.Context, account core.AccountID) (map[string]achievement.Progress, error) {
	rows, err := s.client.HGetAll(ctx, progressKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	out := make(map[string]achievement.Progress, len(rows))
	for id, row := range rows {
		var p achievement.Progress
		if err := json.Unmarshal([]byte(row), &p); err != nil {
			return nil, fmt.Errorf("corrupt progress record %s: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}

// PutProgress stores one progress row, rejecting writes that would unset a
// completed flag.
func (s *Store) PutProgress(ctx context.Context, p achievement.Progress) error {
	key := progressKey(p.AccountID)
	return s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			existing, err := tx.HGet(ctx, key, p.AchievementID).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				var prior achievement.Progress
				if uerr := json.Unmarshal(existing, &prior); uerr != nil {
					return fmt.Errorf("corrupt progress record %s: %w", p.AchievementID, uerr)
				}
				if prior.Completed && !p.Completed {
					return errors.New("completed achievement cannot be reverted")
				}
			}

			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, p.AchievementID, data)
				return nil
			})
			return err
		}, key)
	})
}

// loadItemTx reads an item blob inside a transaction.
func (s *Store) loadItemTx(ctx context.Context, tx *redis.Tx, id core.ItemID) (core.RatedItem, error) {
	data, err := tx.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.RatedItem{}, &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	if err != nil {
		return core.RatedItem{}, err
	}
	var item core.RatedItem
	if err := json.Unmarshal(data, &item); err != nil {
		return core.RatedItem{}, fmt.Errorf("corrupt item record %s: %w", id, err)
	}
	return item, nil
}

// withRetry re-runs fn while the optimistic transaction loses its WATCH race.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	for i := 0; i < txRetries; i++ {
		err := fn()
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.New("transaction retries exhausted")
}

func zeroStats(account core.AccountID) core.AccountStats {
	return core.AccountStats{
		AccountID: account,
		Styles:    make(map[string]struct{}),
		Origins:   make(map[string]struct{}),
		ByTier:    make(map[core.Tier]int64),
		Updated:   time.Now().UTC(),
	}
}

func decodeStats(account core.AccountID, data []byte) (core.AccountStats, error) {
	stats := zeroStats(account)
	if err := json.Unmarshal(data, &stats); err != nil {
		return core.AccountStats{}, fmt.Errorf("corrupt stats record %s: %w", account, err)
	}
	if stats.Styles == nil {
		stats.Styles = make(map[string]struct{})
	}
	if stats.Origins == nil {
		stats.Origins = make(map[string]struct{})
	}
	if stats.ByTier == nil {
		stats.ByTier = make(map[core.Tier]int64)
	}
	return stats, nil
}

func applyDelta(stats *core.AccountStats, delta engine.StatsDelta) error {
	var err error
	if stats.XP, err = core.AddSafe(stats.XP, delta.XP); err != nil {
		return err
	}
	if stats.ItemsTasted, err = core.AddSafe(stats.ItemsTasted, delta.ItemsTasted); err != nil {
		return err
	}
	if stats.Duels, err = core.AddSafe(stats.Duels, delta.Duels); err != nil {
		return err
	}
	if stats.Photos, err = core.AddSafe(stats.Photos, delta.Photos); err != nil {
		return err
	}
	if stats.Retastes, err = core.AddSafe(stats.Retastes, delta.Retastes); err != nil {
		return err
	}
	if delta.Style != "" {
		stats.Styles[delta.Style] = struct{}{}
	}
	if delta.Origin != "" {
		stats.Origins[delta.Origin] = struct{}{}
	}
	if delta.Tier != core.TierUnset {
		stats.ByTier[delta.Tier]++
	}
	stats.Updated = time.Now().UTC()
	return nil
}
