package engagement

import (
	"math"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// TrophyUnlock is emitted once per trophy per evaluation that raised its tier.
type TrophyUnlock struct {
	TrophyID string              `json:"trophyId"`
	From     domain.TrophyTier   `json:"from"`
	To       domain.TrophyTier   `json:"to"`
	Tiers    []domain.TrophyTier `json:"tiers"` // every tier crossed, ascending
	XPReward int                 `json:"xpReward"`
}

// TierOf returns the highest tier whose requirement is met by value.
func TierOf(def TrophyDef, value int) domain.TrophyTier {
	tier := domain.TierNone
	for _, tr := range def.Tiers {
		if value >= tr.Requirement {
			tier = tr.Tier
		}
	}
	return tier
}

// TrophyProgress returns the percent toward the tier after current, or 100
// when the trophy is at gold.
func TrophyProgress(def TrophyDef, current domain.TrophyTier, value int) int {
	idx := current.Ordinal()
	if idx >= len(def.Tiers) {
		return 100
	}
	prev := 0
	if idx > 0 {
		prev = def.Tiers[idx-1].Requirement
	}
	next := def.Tiers[idx].Requirement
	pct := int(math.Round(float64(value-prev) / float64(next-prev) * 100))
	return min(100, max(0, pct))
}

// EvaluateTrophies compares every catalog trophy with the live counters.
// It returns the trophies whose tier or progress changed and one unlock per
// trophy that moved up. Tiers crossed in the same pass all receive now as
// their unlock time unless one was already recorded.
func EvaluateTrophies(s domain.GamificationState, now time.Time) ([]domain.UserTrophy, []TrophyUnlock) {
	return EvaluateTrophyDefs(AllTrophies(), s, now)
}

// EvaluateTrophyDefs is EvaluateTrophies over an explicit catalog.
func EvaluateTrophyDefs(defs []TrophyDef, s domain.GamificationState, now time.Time) ([]domain.UserTrophy, []TrophyUnlock) {
	var (
		changed []domain.UserTrophy
		unlocks []TrophyUnlock
	)

	for _, def := range defs {
		value := MetricValue(s, def.Metric)
		stored, ok := s.Trophy(def.ID)
		if !ok {
			stored = domain.UserTrophy{TrophyID: def.ID, CurrentTier: domain.TierNone}
		}
		stored = stored.Clone()

		target := TierOf(def, value)
		from := stored.CurrentTier
		if from == "" {
			from = domain.TierNone
		}

		if target.Ordinal() <= from.Ordinal() {
			if !ok || stored.Progress != value {
				stored.Progress = value
				changed = append(changed, stored)
			}
			continue
		}

		if stored.TierUnlocks == nil {
			stored.TierUnlocks = make(map[domain.TrophyTier]time.Time)
		}
		unlock := TrophyUnlock{TrophyID: def.ID, From: from, To: target}
		for i := from.Ordinal(); i < target.Ordinal(); i++ {
			tr := def.Tiers[i]
			if _, seen := stored.TierUnlocks[tr.Tier]; !seen {
				stored.TierUnlocks[tr.Tier] = now
			}
			unlock.Tiers = append(unlock.Tiers, tr.Tier)
			unlock.XPReward += tr.XPReward
		}

		stored.CurrentTier = target
		stored.Progress = value
		stored.Notified = false
		changed = append(changed, stored)
		unlocks = append(unlocks, unlock)
	}
	return changed, unlocks
}

// InitializeTrophies seeds every catalog trophy at none when the state has
// no trophies at all. It reports whether anything was seeded.
func InitializeTrophies(s domain.GamificationState) ([]domain.UserTrophy, bool) {
	if len(s.Trophies) > 0 {
		return s.Trophies, false
	}
	out := make([]domain.UserTrophy, 0, len(AllTrophies()))
	for _, def := range AllTrophies() {
		out = append(out, domain.UserTrophy{
			TrophyID:    def.ID,
			CurrentTier: domain.TierNone,
			Progress:    MetricValue(s, def.Metric),
			TierUnlocks: map[domain.TrophyTier]time.Time{},
		})
	}
	return out, true
}

// ─── Projection ─────────────────────────────────────────────────────────────

// TrophyView is a catalog trophy joined with the user's standing.
type TrophyView struct {
	TrophyDef
	CurrentTier     domain.TrophyTier               `json:"currentTier"`
	Value           int                             `json:"value"`
	ProgressToNext  int                             `json:"progressToNextTier"`
	NextRequirement int                             `json:"nextRequirement,omitempty"`
	TierUnlocks     map[domain.TrophyTier]time.Time `json:"tierUnlocks"`
	IsMaxed         bool                            `json:"isMaxed"`
}

// TrophySummary is the trophy list projection.
type TrophySummary struct {
	Trophies      []TrophyView `json:"trophies"`
	BronzeCount   int          `json:"bronzeCount"`
	SilverCount   int          `json:"silverCount"`
	GoldCount     int          `json:"goldCount"`
	Points        int          `json:"points"`
	UnlockedTiers int          `json:"unlockedTiers"`
	TotalTiers    int          `json:"totalTiers"`
	// Next is the unfinished trophy closest to its next tier.
	Next *TrophyView `json:"next,omitempty"`
}

// Trophy points per tier reached.
const (
	pointsBronze = 1
	pointsSilver = 3
	pointsGold   = 10
)

// SummarizeTrophies builds the trophy projection from live counters.
func SummarizeTrophies(s domain.GamificationState) TrophySummary {
	var sum TrophySummary
	for _, def := range AllTrophies() {
		value := MetricValue(s, def.Metric)
		tier := domain.TierNone
		var unlocks map[domain.TrophyTier]time.Time
		if ut, ok := s.Trophy(def.ID); ok {
			tier = ut.CurrentTier
			unlocks = ut.Clone().TierUnlocks
		}

		v := TrophyView{
			TrophyDef:      def,
			CurrentTier:    tier,
			Value:          value,
			ProgressToNext: TrophyProgress(def, tier, value),
			TierUnlocks:    unlocks,
			IsMaxed:        tier == domain.TierGold,
		}
		if !v.IsMaxed {
			v.NextRequirement = def.Tiers[tier.Ordinal()].Requirement
		}
		sum.Trophies = append(sum.Trophies, v)
		sum.TotalTiers += len(def.Tiers)
		sum.UnlockedTiers += tier.Ordinal()

		switch tier {
		case domain.TierBronze:
			sum.BronzeCount++
			sum.Points += pointsBronze
		case domain.TierSilver:
			sum.SilverCount++
			sum.Points += pointsSilver
		case domain.TierGold:
			sum.GoldCount++
			sum.Points += pointsGold
		}
	}

	for i := range sum.Trophies {
		v := &sum.Trophies[i]
		if v.IsMaxed || v.ProgressToNext >= 100 {
			continue
		}
		if sum.Next == nil || v.ProgressToNext > sum.Next.ProgressToNext {
			sum.Next = v
		}
	}
	return sum
}
