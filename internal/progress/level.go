package progress

// XPPerLevel is the width of every level band.
const XPPerLevel = 100

// MaxXP bounds a profile's XP in both directions. Inside the band the level
// arithmetic below cannot overflow, even where int is 32 bits.
const MaxXP = 1_000_000_000

// LevelFor returns the level for a total XP amount: one level per full 100
// XP, starting at 1. XP below zero (possible through negative awards) stays
// at level 1.
//
//	0..99 -> 1, 100..199 -> 2, 500 -> 6
func LevelFor(xp int) int {
	level := floorDiv(xp, XPPerLevel) + 1
	if level < 1 {
		return 1
	}
	return level
}

// NextLevelXP is the total XP at which level+1 starts.
func NextLevelXP(level int) int {
	return level * XPPerLevel
}

// XPToNextLevel is how much more XP xp needs to reach the next level.
func XPToNextLevel(xp int) int {
	remaining := NextLevelXP(LevelFor(xp)) - xp
	if remaining < 0 {
		return 0
	}
	return remaining
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// addXP is a checked xp+amount. It reports false instead of leaving
// [-MaxXP, MaxXP], which also rules out wrapping around the int range.
func addXP(xp, amount int) (int, bool) {
	if amount > 0 && xp > MaxXP-amount {
		return xp, false
	}
	if amount < 0 && xp < -MaxXP-amount {
		return xp, false
	}
	return xp + amount, true
}
