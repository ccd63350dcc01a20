package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventTastingRecorded     EventType = "tasting_recorded"
	EventDuelResolved        EventType = "duel_resolved"
	EventXPGranted           EventType = "xp_granted"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventTierAssigned        EventType = "tier_assigned"
)

// Event represents an immutable domain event.
type Event struct {
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	Account     AccountID      `json:"account,omitempty"`
	Item        ItemID         `json:"item,omitempty"`
	Opponent    ItemID         `json:"opponent,omitempty"`
	XP          int64          `json:"xp,omitempty"`
	TotalXP     int64          `json:"total_xp,omitempty"`
	Level       int            `json:"level,omitempty"`
	Achievement string         `json:"achievement,omitempty"`
	Tier        Tier           `json:"tier,omitempty"`
	Delta       int            `json:"delta,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewTastingRecorded(account AccountID, item ItemID, repeat int) Event {
	return Event{Type: EventTastingRecorded, Time: time.Now().UTC(), Account: account, Item: item, Delta: repeat}
}

func NewDuelResolved(winner ItemID, loser ItemID, winnerDelta int) Event {
	return Event{Type: EventDuelResolved, Time: time.Now().UTC(), Item: winner, Opponent: loser, Delta: winnerDelta}
}

func NewXPGranted(account AccountID, amount int64, total int64) Event {
	return Event{Type: EventXPGranted, Time: time.Now().UTC(), Account: account, XP: amount, TotalXP: total}
}

func NewLevelUp(account AccountID, level int) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), Account: account, Level: level}
}

func NewAchievementUnlocked(account AccountID, achievement string, reward int64) Event {
	return Event{Type: EventAchievementUnlocked, Time: time.Now().UTC(), Account: account, Achievement: achievement, XP: reward}
}

func NewTierAssigned(item ItemID, tier Tier) Event {
	return Event{Type: EventTierAssigned, Time: time.Now().UTC(), Item: item, Tier: tier}
}
