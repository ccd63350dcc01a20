package progression

// Level is one row of the static level table.
type Level struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	MinXP int64  `json:"min_xp"`
}

// levelTable is ordered ascending by MinXP. Static configuration, never
// computed.
var levelTable = []Level{
	{1, "Novice", 0},
	{2, "Taster", 100},
	{3, "Regular", 250},
	{4, "Enthusiast", 500},
	{5, "Connoisseur", 1000},
	{6, "Expert", 2000},
	{7, "Zythologist", 3500},
	{8, "Master", 5500},
	{9, "Grandmaster", 8000},
	{10, "Legend", 12000},
}

// Levels returns a copy of the level table.
func Levels() []Level {
	out := make([]Level, len(levelTable))
	copy(out, levelTable)
	return out
}

// LevelFor returns the highest level whose threshold is <= xp, scanning the
// table from the highest threshold down. Negative xp maps to the first
// level.
func LevelFor(xp int64) Level {
	for i := len(levelTable) - 1; i >= 0; i-- {
		if xp >= levelTable[i].MinXP {
			return levelTable[i]
		}
	}
	return levelTable[0]
}

// ProgressToNext returns the 0-100 percentage between the current level's
// threshold and the next one, linearly interpolated. At or beyond the top
// level's threshold it returns 100.
func ProgressToNext(xp int64) float64 {
	cur := LevelFor(xp)
	if cur.Level == levelTable[len(levelTable)-1].Level {
		return 100
	}
	next := levelTable[cur.Level] // table index == level-1
	span := next.MinXP - cur.MinXP
	if span <= 0 {
		return 100
	}
	pct := float64(xp-cur.MinXP) * 100 / float64(span)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
