package gamification

import "math"

// xpPerLevelUnit scales the quadratic level curve: level n starts at n²·100 XP.
const xpPerLevelUnit = 100

// CalculateLevel returns floor(sqrt(xp/100)). Negative xp is level 0.
func CalculateLevel(xp int) int {
	if xp <= 0 {
		return 0
	}
	level := int(math.Sqrt(float64(xp) / xpPerLevelUnit))
	// Correct float error near perfect squares.
	for levelFloor(level+1) <= xp {
		level++
	}
	for level > 0 && levelFloor(level) > xp {
		level--
	}
	return level
}

// XPForNextLevel returns the total XP at which level+1 begins.
func XPForNextLevel(level int) int {
	return levelFloor(level + 1)
}

// LevelProgress returns how far xp has advanced through level, as a
// percentage clamped to [0, 100].
func LevelProgress(xp, level int) float64 {
	base := levelFloor(level)
	span := XPForNextLevel(level) - base
	if span <= 0 {
		return 0
	}
	p := 100 * float64(xp-base) / float64(span)
	return math.Max(0, math.Min(100, p))
}

func levelFloor(level int) int {
	return level * level * xpPerLevelUnit
}
