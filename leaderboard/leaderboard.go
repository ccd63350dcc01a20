package leaderboard

import "brewduel/core"

// Entry represents one ranked item.
type Entry struct {
	Item   core.ItemID `json:"item"`
	Rating int64       `json:"rating"`
}

// Board abstracts rating-leaderboard operations.
type Board interface {
	Update(item core.ItemID, rating int64)
	Remove(item core.ItemID)
	TopN(n int) []Entry
	Get(item core.ItemID) (Entry, bool)
}
