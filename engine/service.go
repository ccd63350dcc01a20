package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/leaderboard"
	"brewduel/progression"
	"brewduel/rarity"
	"brewduel/rating"
)

// Validation errors. All fail fast, before any persistence call.
var (
	ErrSelfDuel              = errors.New("an item cannot duel itself")
	ErrUnknownWinner         = errors.New("winner must be one of the two duel items")
	ErrLocationRequiresPhoto = errors.New("a location can only accompany a photo")
	ErrItemExists            = errors.New("item already exists")
)

// Service wires storage, event bus, and the pure rule components into a
// cohesive API. Every public operation computes its full result before any
// output is returned; a caller that fails mid-way loses nothing beyond that
// single event.
type Service struct {
	storage    Storage
	bus        *EventBus
	ledger     *progression.Ledger
	classifier *rarity.Classifier
	defs       []achievement.Definition
	board      leaderboard.Board
	k          float64
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithLedger overrides the progression grant tables.
func WithLedger(l *progression.Ledger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithClassifier overrides the rarity classifier.
func WithClassifier(c *rarity.Classifier) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithDefinitions overrides the achievement catalog.
func WithDefinitions(defs []achievement.Definition) ServiceOption {
	return func(s *Service) { s.defs = defs }
}

// WithLeaderboard attaches a rating leaderboard updated on every duel.
func WithLeaderboard(b leaderboard.Board) ServiceOption {
	return func(s *Service) { s.board = b }
}

// WithKFactor overrides the Elo volatility constant.
func WithKFactor(k float64) ServiceOption {
	return func(s *Service) {
		if k > 0 {
			s.k = k
		}
	}
}

func NewService(storage Storage, bus *EventBus, opts ...ServiceOption) *Service {
	if storage == nil || bus == nil {
		panic("NewService requires non-nil storage and bus")
	}
	s := &Service{
		storage:    storage,
		bus:        bus,
		ledger:     progression.NewLedger(nil),
		classifier: rarity.New(),
		defs:       achievement.DefaultDefinitions(),
		k:          rating.DefaultK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll convenience method.
func (s *Service) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *Service) Close() { s.bus.Close() }

// CreateItem registers a catalog item with the default rating and an
// initial classification.
func (s *Service) CreateItem(ctx context.Context, id core.ItemID, attrs core.ItemAttributes) (core.RatedItem, error) {
	if err := core.ValidateItemID(id); err != nil {
		return core.RatedItem{}, err
	}
	if _, err := s.storage.GetItem(ctx, id); err == nil {
		return core.RatedItem{}, ErrItemExists
	}
	item := core.RatedItem{
		ID:         id,
		Attributes: attrs,
		Rating:     core.DefaultRating,
		Tier:       s.classifier.Classify(attrs),
		Updated:    time.Now().UTC(),
	}
	if err := s.storage.PutItem(ctx, item); err != nil {
		return core.RatedItem{}, err
	}
	s.bus.Publish(ctx, core.NewTierAssigned(item.ID, item.Tier))
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id core.ItemID) (core.RatedItem, error) {
	return s.storage.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context) ([]core.RatedItem, error) {
	return s.storage.ListItems(ctx)
}

func (s *Service) RecentDuels(ctx context.Context, limit int) ([]core.DuelEvent, error) {
	return s.storage.ListDuels(ctx, limit)
}

// TastingOpts are the optional enrichments of a tasting.
type TastingOpts struct {
	Photo    bool
	Location bool
}

// TastingResult reports everything a caller needs for feedback after one
// tasting event.
type TastingResult struct {
	First     bool                `json:"first"`
	Repeats   int                 `json:"repeats"`
	Tier      core.Tier           `json:"tier"`
	XP        int64               `json:"xp"`
	BonusXP   int64               `json:"bonus_xp"`
	TotalXP   int64               `json:"total_xp"`
	Level     progression.Level   `json:"level"`
	Progress  float64             `json:"progress"`
	LeveledUp bool                `json:"leveled_up"`
	Unlocks   []achievement.Unlock `json:"unlocks,omitempty"`
}

// RecordTasting processes a tasting (first or repeat) end to end: grant
// lookup, atomic stats application, achievement evaluation, events.
func (s *Service) RecordTasting(ctx context.Context, account core.AccountID, itemID core.ItemID, opts TastingOpts) (TastingResult, error) {
	account, err := core.NormalizeAccountID(account)
	if err != nil {
		return TastingResult{}, err
	}
	if err := core.ValidateItemID(itemID); err != nil {
		return TastingResult{}, err
	}
	if opts.Location && !opts.Photo {
		return TastingResult{}, ErrLocationRequiresPhoto
	}

	item, err := s.storage.GetItem(ctx, itemID)
	if err != nil {
		return TastingResult{}, err
	}
	if item.Tier == core.TierUnset {
		item.Tier = s.classifier.Classify(item.Attributes)
		if err := s.storage.SetTier(ctx, item.ID, item.Tier, false); err != nil {
			return TastingResult{}, err
		}
		s.bus.Publish(ctx, core.NewTierAssigned(item.ID, item.Tier))
	}

	rec, found, err := s.storage.GetTasting(ctx, account, itemID)
	if err != nil {
		return TastingResult{}, err
	}

	now := time.Now().UTC()
	var grant int64
	var delta StatsDelta
	res := TastingResult{Tier: item.Tier}

	if !found {
		kind := progression.KindFirstTasting
		switch {
		case opts.Photo && opts.Location:
			kind = progression.KindFirstTastingPhotoLocation
		case opts.Photo:
			kind = progression.KindFirstTastingPhoto
		}
		grant, err = s.ledger.GrantForEvent(kind, progression.Context{Tier: item.Tier})
		if err != nil {
			return TastingResult{}, err
		}
		rec = core.TastingRecord{
			AccountID:   account,
			ItemID:      itemID,
			FirstTasted: now,
			HasPhoto:    opts.Photo,
			HasLocation: opts.Location,
		}
		res.First = true
		delta = StatsDelta{
			XP:          grant,
			ItemsTasted: 1,
			Style:       item.Attributes.Style,
			Origin:      item.Attributes.Country,
			Tier:        item.Tier,
		}
	} else {
		// schedule reads the repeat count before this event increments it
		grant, err = s.ledger.GrantForEvent(progression.KindRetasting, progression.Context{RepeatCount: rec.Repeats})
		if err != nil {
			return TastingResult{}, err
		}
		rec.Repeats++
		rec.HasPhoto = rec.HasPhoto || opts.Photo
		rec.HasLocation = rec.HasLocation || opts.Location
		delta = StatsDelta{XP: grant, Retastes: 1}
	}
	if opts.Photo {
		delta.Photos = 1
	}

	if err := s.storage.PutTasting(ctx, rec); err != nil {
		return TastingResult{}, err
	}
	stats, err := s.storage.ApplyStats(ctx, account, delta)
	if err != nil {
		return TastingResult{}, err
	}

	res.Repeats = rec.Repeats
	res.XP = grant
	s.bus.Publish(ctx, core.NewTastingRecorded(account, itemID, rec.Repeats))
	res.LeveledUp = s.publishXP(ctx, account, grant, stats.XP)

	stats, unlocks, bonus, err := s.evaluateAchievements(ctx, account, stats)
	if err != nil {
		return TastingResult{}, err
	}
	res.Unlocks = unlocks
	res.BonusXP = bonus
	res.TotalXP = stats.XP
	res.Level = progression.LevelFor(stats.XP)
	res.Progress = progression.ProgressToNext(stats.XP)
	return res, nil
}

// DuelOutcome reports both sides of a resolved duel.
type DuelOutcome struct {
	Event    core.DuelEvent       `json:"event"`
	DeltaA   int                  `json:"delta_a"`
	DeltaB   int                  `json:"delta_b"`
	XP       int64                `json:"xp"`
	Unlocks  []achievement.Unlock `json:"unlocks,omitempty"`
}

// ResolveDuel validates the pairing, computes the Elo update from the
// pre-duel ratings, persists both sides and the DuelEvent atomically, then
// grants participation XP to the acting account (if any).
func (s *Service) ResolveDuel(ctx context.Context, account core.AccountID, itemA, itemB, winner core.ItemID) (DuelOutcome, error) {
	if itemA == itemB {
		return DuelOutcome{}, ErrSelfDuel
	}
	if winner != itemA && winner != itemB {
		return DuelOutcome{}, ErrUnknownWinner
	}
	if account != "" {
		var err error
		if account, err = core.NormalizeAccountID(account); err != nil {
			return DuelOutcome{}, err
		}
	}

	a, err := s.storage.GetItem(ctx, itemA)
	if err != nil {
		return DuelOutcome{}, err
	}
	b, err := s.storage.GetItem(ctx, itemB)
	if err != nil {
		return DuelOutcome{}, err
	}

	result, err := rating.ResolveDuel(float64(a.Rating), float64(b.Rating), winner == itemA, s.k)
	if err != nil {
		return DuelOutcome{}, err
	}

	ev := core.DuelEvent{
		ID:            uuid.NewString(),
		ItemA:         itemA,
		ItemB:         itemB,
		Winner:        winner,
		RatingABefore: a.Rating,
		RatingAAfter:  result.RatingA,
		RatingBBefore: b.Rating,
		RatingBAfter:  result.RatingB,
		At:            time.Now().UTC(),
	}
	if err := s.storage.ApplyDuel(ctx, ev); err != nil {
		return DuelOutcome{}, err
	}

	if s.board != nil {
		s.board.Update(itemA, int64(result.RatingA))
		s.board.Update(itemB, int64(result.RatingB))
	}

	winnerDelta := result.DeltaA
	loser := itemB
	if winner == itemB {
		winnerDelta = result.DeltaB
		loser = itemA
	}
	s.bus.Publish(ctx, core.NewDuelResolved(winner, loser, winnerDelta))

	out := DuelOutcome{Event: ev, DeltaA: result.DeltaA, DeltaB: result.DeltaB}
	if account != "" {
		grant, err := s.ledger.GrantForEvent(progression.KindDuelParticipation, progression.Context{})
		if err != nil {
			return DuelOutcome{}, err
		}
		stats, err := s.storage.ApplyStats(ctx, account, StatsDelta{XP: grant, Duels: 1})
		if err != nil {
			return DuelOutcome{}, err
		}
		out.XP = grant
		s.publishXP(ctx, account, grant, stats.XP)
		if _, unlocks, _, err := s.evaluateAchievements(ctx, account, stats); err == nil {
			out.Unlocks = unlocks
		} else {
			return DuelOutcome{}, err
		}
	}
	return out, nil
}

// OverrideTier pins an item's tier by admin decision; rebalance passes will
// skip it from then on.
func (s *Service) OverrideTier(ctx context.Context, id core.ItemID, tier core.Tier) error {
	if tier.Order() < 0 {
		return errors.New("cannot override to an unset tier")
	}
	if _, err := s.storage.GetItem(ctx, id); err != nil {
		return err
	}
	if err := s.storage.SetTier(ctx, id, tier, true); err != nil {
		return err
	}
	s.bus.Publish(ctx, core.NewTierAssigned(id, tier))
	return nil
}

// ReclassifyItem re-runs classification for one item unless its tier is
// admin-locked.
func (s *Service) ReclassifyItem(ctx context.Context, id core.ItemID) (core.Tier, error) {
	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		return core.TierUnset, err
	}
	if item.TierLocked {
		return item.Tier, nil
	}
	tier := s.classifier.Classify(item.Attributes)
	if tier != item.Tier {
		if err := s.storage.SetTier(ctx, id, tier, false); err != nil {
			return core.TierUnset, err
		}
		s.bus.Publish(ctx, core.NewTierAssigned(id, tier))
	}
	return tier, nil
}

// RebalanceSummary reports one batch reclassification pass.
type RebalanceSummary struct {
	Total   int `json:"total"`
	Changed int `json:"changed"`
	Skipped int `json:"skipped"`
}

// RebalanceAll re-derives every unlocked item's tier from its current
// attributes. The pass is idempotent and deliberately not transactional
// across the population: an interrupted run resumed later converges to the
// same per-item result for unchanged inputs.
func (s *Service) RebalanceAll(ctx context.Context) (RebalanceSummary, error) {
	items, err := s.storage.ListItems(ctx)
	if err != nil {
		return RebalanceSummary{}, err
	}
	assignments := s.classifier.Rebalance(items)
	sum := RebalanceSummary{Total: len(assignments)}
	for _, a := range assignments {
		if a.Skipped {
			sum.Skipped++
			continue
		}
		if !a.Changed {
			continue
		}
		if err := s.storage.SetTier(ctx, a.ItemID, a.Tier, false); err != nil {
			return sum, err
		}
		sum.Changed++
		s.bus.Publish(ctx, core.NewTierAssigned(a.ItemID, a.Tier))
	}
	return sum, nil
}

// Profile is the account-facing progression snapshot.
type Profile struct {
	Stats        core.AccountStats      `json:"stats"`
	Level        progression.Level      `json:"level"`
	Progress     float64                `json:"progress"`
	Achievements []achievement.Progress `json:"achievements,omitempty"`
}

func (s *Service) GetProfile(ctx context.Context, account core.AccountID) (Profile, error) {
	account, err := core.NormalizeAccountID(account)
	if err != nil {
		return Profile{}, err
	}
	stats, err := s.storage.GetStats(ctx, account)
	if err != nil {
		return Profile{}, err
	}
	progress, err := s.storage.GetProgress(ctx, account)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		Stats:    stats,
		Level:    progression.LevelFor(stats.XP),
		Progress: progression.ProgressToNext(stats.XP),
	}
	for _, def := range s.defs {
		if rec, ok := progress[def.ID]; ok {
			p.Achievements = append(p.Achievements, rec)
		}
	}
	return p, nil
}

// publishXP emits xp_granted and, when a level threshold was crossed,
// level_up. Returns whether a level-up happened.
func (s *Service) publishXP(ctx context.Context, account core.AccountID, grant, totalAfter int64) bool {
	if grant <= 0 {
		return false
	}
	s.bus.Publish(ctx, core.NewXPGranted(account, grant, totalAfter))
	before := progression.LevelFor(totalAfter - grant)
	after := progression.LevelFor(totalAfter)
	if after.Level > before.Level {
		s.bus.Publish(ctx, core.NewLevelUp(account, after.Level))
		return true
	}
	return false
}

// evaluateAchievements recomputes all conditions against the fresh stats
// snapshot, persists changed progress, and grants each unlock's reward as a
// new ledger event. Returns the final stats (rewards included).
func (s *Service) evaluateAchievements(ctx context.Context, account core.AccountID, stats core.AccountStats) (core.AccountStats, []achievement.Unlock, int64, error) {
	prior, err := s.storage.GetProgress(ctx, account)
	if err != nil {
		return stats, nil, 0, err
	}
	changed, unlocks, err := achievement.EvaluateAll(s.defs, prior, stats, time.Now())
	if err != nil {
		return stats, nil, 0, err
	}
	for _, p := range changed {
		if err := s.storage.PutProgress(ctx, p); err != nil {
			return stats, nil, 0, err
		}
	}
	var bonus int64
	for _, u := range unlocks {
		reward, err := s.ledger.GrantForEvent(progression.KindAchievementUnlock, progression.Context{Reward: u.Definition.RewardXP})
		if err != nil {
			return stats, unlocks, bonus, err
		}
		stats, err = s.storage.ApplyStats(ctx, account, StatsDelta{XP: reward})
		if err != nil {
			return stats, unlocks, bonus, err
		}
		bonus += reward
		s.bus.Publish(ctx, core.NewAchievementUnlocked(account, u.Definition.ID, reward))
		s.publishXP(ctx, account, reward, stats.XP)
	}
	return stats, unlocks, bonus, nil
}
