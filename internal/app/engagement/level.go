package engagement

import (
	"math"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// Level curve: level 1 needs LevelBaseXP, each next level needs 1.5x the
// previous requirement (floored), capped at MaxLevel.
const (
	LevelBaseXP     = 100
	LevelMultiplier = 1.5
	MaxLevel        = 100

	maxExactXP int64 = 1 << 53
)

// XP rewards.
const (
	RewardWorkoutCompleted = 50
	RewardFirstWorkout     = 100
	RewardChallengeDaily   = 25
	RewardChallengeWeekly  = 100
	RewardDietFollowed     = 25
	RewardStreak7          = 100
	RewardStreak30         = 500
	RewardStreak100        = 1500
	RewardStreak365        = 5000
	RewardGoalAchieved     = 100
)

// Level is the projection of a total XP value onto the level curve.
type Level struct {
	TotalXP          int `json:"totalXP"`
	CurrentLevel     int `json:"currentLevel"`
	XPInCurrentLevel int `json:"xpInCurrentLevel"`
	XPToNextLevel    int `json:"xpToNextLevel"`
	ProgressPercent  int `json:"progressPercent"`
}

// LevelOf converts total XP into a level. It is the only place the level
// is computed; stored level fields are always derived from it.
func LevelOf(totalXP int) Level {
	if totalXP < 0 {
		totalXP = 0
	}
	// The curve is walked in float64; beyond 2^53 XP the sums stop being exact.
	total := float64(min(int64(totalXP), maxExactXP))
	level := 1
	need := float64(LevelBaseXP)
	used := 0.0

	for used+need <= total && level < MaxLevel {
		used += need
		level++
		need = math.Floor(need * LevelMultiplier)
	}

	inLevel := int(total - used)
	pct := int(math.Round(float64(inLevel) / need * 100))
	if pct > 100 {
		pct = 100 // only reachable at MaxLevel
	}
	return Level{
		TotalXP:          totalXP,
		CurrentLevel:     level,
		XPInCurrentLevel: inLevel,
		XPToNextLevel:    int(need),
		ProgressPercent:  pct,
	}
}

// XPData returns the stored form of the level.
func (l Level) XPData() domain.XPData {
	return domain.XPData{
		TotalXP:          l.TotalXP,
		CurrentLevel:     l.CurrentLevel,
		XPInCurrentLevel: l.XPInCurrentLevel,
		XPToNextLevel:    l.XPToNextLevel,
	}
}
