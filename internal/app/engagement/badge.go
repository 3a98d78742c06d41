package engagement

import (
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// HiddenBadgeName replaces the name of a hidden badge until it is unlocked.
const HiddenBadgeName = "???"

// BadgeUnlock is a newly granted unique badge with its reward.
type BadgeUnlock struct {
	Badge    domain.UniqueBadge
	Def      BadgeDef
	XPReward int
}

// EvaluateBadges checks badges not yet unlocked and returns the new grants.
// Unlocked badges are never re-evaluated.
func EvaluateBadges(c BadgeContext, now time.Time) []BadgeUnlock {
	var out []BadgeUnlock
	for _, def := range AllUniqueBadges() {
		if c.State.HasUniqueBadge(def.ID) {
			continue
		}
		if !def.Eligible(c) {
			continue
		}
		out = append(out, BadgeUnlock{
			Badge:    domain.UniqueBadge{BadgeID: def.ID, UnlockedAt: now},
			Def:      def,
			XPReward: def.XPReward,
		})
	}
	return out
}

// ─── Projection ─────────────────────────────────────────────────────────────

// BadgeView is a catalog badge as shown to the user.
type BadgeView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    BadgeCategory `json:"category"`
	Rarity      BadgeRarity   `json:"rarity"`
	XPReward    int           `json:"xpReward"`
	Unlocked    bool          `json:"unlocked"`
	UnlockedAt  *time.Time    `json:"unlockedAt,omitempty"`
	Hint        string        `json:"hint,omitempty"`
}

// BadgeSummary splits the catalog into the default listing and the masked
// hidden badges.
type BadgeSummary struct {
	Visible       []BadgeView `json:"visible"`
	Hidden        []BadgeView `json:"hidden"`
	UnlockedCount int         `json:"unlockedCount"`
	TotalCount    int         `json:"totalCount"`
}

// SummarizeBadges builds the unique badge projection.
func SummarizeBadges(s domain.GamificationState) BadgeSummary {
	unlocked := make(map[string]time.Time, len(s.UniqueBadges))
	for _, b := range s.UniqueBadges {
		unlocked[b.BadgeID] = b.UnlockedAt
	}

	var sum BadgeSummary
	for _, def := range AllUniqueBadges() {
		sum.TotalCount++
		v := BadgeView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			Rarity:      def.Rarity,
			XPReward:    def.XPReward,
		}
		if at, ok := unlocked[def.ID]; ok {
			v.Unlocked = true
			v.UnlockedAt = &at
			sum.UnlockedCount++
			sum.Visible = append(sum.Visible, v)
			continue
		}
		if def.Category == BadgeHidden {
			v.Name = HiddenBadgeName
			v.Description = ""
			v.Hint = def.Hint
			sum.Hidden = append(sum.Hidden, v)
			continue
		}
		sum.Visible = append(sum.Visible, v)
	}
	return sum
}
