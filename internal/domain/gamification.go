// Package domain holds the gamification aggregate and its value types.
// Engines in internal/app/engagement read these types and produce patches;
// only the engagement Service mutates a GamificationState.
package domain

import (
	"slices"
	"time"
)

// CurrentSchemaVersion is stamped on every state that went through the
// migration chain. Snapshots without a version are treated as legacy.
const CurrentSchemaVersion = 2

// DateLayout is the calendar-day format used for streak and diet dates.
const DateLayout = "2006-01-02"

// ─── Streak Types ───────────────────────────────────────────────────────────

// StreakData tracks consecutive training days.
type StreakData struct {
	CurrentStreak    int    `json:"currentStreak"`
	LongestStreak    int    `json:"longestStreak"`
	LastActivityDate string `json:"lastActivityDate,omitempty"` // YYYY-MM-DD, empty before the first activity
	TotalActiveDays  int    `json:"totalActiveDays"`
}

// ─── XP Types ───────────────────────────────────────────────────────────────

// XPData is the stored experience block. Everything except TotalXP is
// derived from TotalXP by the level calculator.
type XPData struct {
	TotalXP          int `json:"totalXP"`
	CurrentLevel     int `json:"currentLevel"`
	XPInCurrentLevel int `json:"xpInCurrentLevel"`
	XPToNextLevel    int `json:"xpToNextLevel"`
}

// ─── Trophy Types ───────────────────────────────────────────────────────────

// TrophyTier is the progression step of a trophy.
type TrophyTier string

const (
	TierNone   TrophyTier = "none"
	TierBronze TrophyTier = "bronze"
	TierSilver TrophyTier = "silver"
	TierGold   TrophyTier = "gold"
)

// UnlockableTiers lists the tiers above none in ascending order.
var UnlockableTiers = [3]TrophyTier{TierBronze, TierSilver, TierGold}

// Ordinal returns 0 for none through 3 for gold. Unknown values count as none.
func (t TrophyTier) Ordinal() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	default:
		return 0
	}
}

// UserTrophy is a user's standing on one catalog trophy.
type UserTrophy struct {
	TrophyID    string                   `json:"trophyId"`
	CurrentTier TrophyTier               `json:"currentTier"`
	Progress    int                      `json:"progress"` // last observed metric value
	TierUnlocks map[TrophyTier]time.Time `json:"tierUnlocks"`
	Notified    bool                     `json:"notified"`
}

// ─── Badge Types ────────────────────────────────────────────────────────────

// UniqueBadge is an unlocked one-shot badge.
type UniqueBadge struct {
	BadgeID    string    `json:"badgeId"`
	UnlockedAt time.Time `json:"unlockedAt"`
	Notified   bool      `json:"notified"`
}

// LegacyBadge is a record from the flat-badge schema. Read-only after migration.
type LegacyBadge struct {
	BadgeID    string    `json:"badgeId"`
	UnlockedAt time.Time `json:"unlockedAt"`
	Notified   bool      `json:"notified,omitempty"`
}

// ─── Challenge Types ────────────────────────────────────────────────────────

// ChallengeType is the rotation window of a challenge.
type ChallengeType string

const (
	ChallengeDaily  ChallengeType = "daily"
	ChallengeWeekly ChallengeType = "weekly"
)

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// Challenge is a rotating objective generated from a template.
type Challenge struct {
	ID          string          `json:"id"`
	Type        ChallengeType   `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Target      int             `json:"target"`
	Progress    int             `json:"progress"`
	XPReward    int             `json:"xpReward"`
	Status      ChallengeStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// ─── Goal Types ─────────────────────────────────────────────────────────────

// GoalCategory groups goals by theme.
type GoalCategory string

const (
	GoalWorkout     GoalCategory = "workout"
	GoalConsistency GoalCategory = "consistency"
	GoalNutrition   GoalCategory = "nutrition"
	GoalProgress    GoalCategory = "progress"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
)

// Goal is a longer-horizon objective.
type Goal struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    GoalCategory `json:"category"`
	Target      int          `json:"target"`
	Progress    int          `json:"progress"`
	Unit        string       `json:"unit"`
	Status      GoalStatus   `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// ─── Activity Feed ──────────────────────────────────────────────────────────

// ActivityType classifies feed entries.
type ActivityType string

const (
	ActivityWorkoutCompleted   ActivityType = "workout_completed"
	ActivityChallengeCompleted ActivityType = "challenge_completed"
	ActivityBadgeEarned        ActivityType = "badge_earned"
	ActivityGoalAchieved       ActivityType = "goal_achieved"
	ActivityStreakMilestone    ActivityType = "streak_milestone"
	ActivityLevelUp            ActivityType = "level_up"
	ActivityDietFollowed       ActivityType = "diet_followed"
	ActivityXPAwarded          ActivityType = "xp_awarded"
)

// ActivityItem is one entry of the newest-first activity feed.
type ActivityItem struct {
	ID          string         `json:"id"`
	Type        ActivityType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	XPEarned    int            `json:"xpEarned"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ─── Aggregate ──────────────────────────────────────────────────────────────

// Counters are the raw activity metrics trophies and badges are computed from.
type Counters struct {
	TotalWorkoutsCompleted  int      `json:"totalWorkoutsCompleted"`
	PerfectWeeks            int      `json:"perfectWeeks"`
	PerfectMonths           int      `json:"perfectMonths"`
	EarlyWorkouts           int      `json:"earlyWorkouts"`
	NightWorkouts           int      `json:"nightWorkouts"`
	DietDaysFollowed        int      `json:"dietDaysFollowed"`
	WorkoutModalities       []string `json:"workoutModalities"`
	ConsecutivePerfectWeeks int      `json:"consecutivePerfectWeeks"`
}

// HasModality reports whether m was already recorded.
func (c Counters) HasModality(m string) bool {
	return slices.Contains(c.WorkoutModalities, m)
}

// GamificationState is the aggregate root persisted per user.
type GamificationState struct {
	SchemaVersion int        `json:"schemaVersion"`
	Streak        StreakData `json:"streak"`
	XP            XPData     `json:"xp"`

	Badges       []LegacyBadge  `json:"badges"`
	Trophies     []UserTrophy   `json:"trophies"`
	UniqueBadges []UniqueBadge  `json:"uniqueBadges"`
	Challenges   []Challenge    `json:"challenges"`
	Goals        []Goal         `json:"goals"`
	Activities   []ActivityItem `json:"activities"`

	Counters

	LastDietDate       string    `json:"lastDietDate,omitempty"`
	WeeklyTrainingDays int       `json:"weeklyTrainingDays,omitempty"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// DefaultState returns the all-zero state a new user starts from.
func DefaultState() GamificationState {
	return GamificationState{
		SchemaVersion: CurrentSchemaVersion,
		XP: XPData{
			CurrentLevel:  1,
			XPToNextLevel: 100,
		},
		Badges:       []LegacyBadge{},
		Trophies:     []UserTrophy{},
		UniqueBadges: []UniqueBadge{},
		Challenges:   []Challenge{},
		Goals:        []Goal{},
		Activities:   []ActivityItem{},
		Counters: Counters{
			WorkoutModalities: []string{},
		},
	}
}

// HasUniqueBadge reports whether id is already unlocked.
func (s GamificationState) HasUniqueBadge(id string) bool {
	for _, b := range s.UniqueBadges {
		if b.BadgeID == id {
			return true
		}
	}
	return false
}

// Trophy returns the stored trophy with the given id.
func (s GamificationState) Trophy(id string) (UserTrophy, bool) {
	for _, t := range s.Trophies {
		if t.TrophyID == id {
			return t, true
		}
	}
	return UserTrophy{}, false
}

// Clone returns a deep copy that shares no slices or maps with s.
func (s GamificationState) Clone() GamificationState {
	out := s
	out.Badges = slices.Clone(s.Badges)
	out.UniqueBadges = slices.Clone(s.UniqueBadges)
	out.WorkoutModalities = slices.Clone(s.WorkoutModalities)
	out.Activities = cloneActivities(s.Activities)

	if s.Trophies != nil {
		out.Trophies = make([]UserTrophy, len(s.Trophies))
		for i, t := range s.Trophies {
			out.Trophies[i] = t.Clone()
		}
	}
	if s.Challenges != nil {
		out.Challenges = make([]Challenge, len(s.Challenges))
		for i, c := range s.Challenges {
			c.CompletedAt = cloneTime(c.CompletedAt)
			out.Challenges[i] = c
		}
	}
	if s.Goals != nil {
		out.Goals = make([]Goal, len(s.Goals))
		for i, g := range s.Goals {
			g.CompletedAt = cloneTime(g.CompletedAt)
			out.Goals[i] = g
		}
	}
	return out
}

// Clone returns a copy with its own TierUnlocks map.
func (t UserTrophy) Clone() UserTrophy {
	if t.TierUnlocks != nil {
		unlocks := make(map[TrophyTier]time.Time, len(t.TierUnlocks))
		for k, v := range t.TierUnlocks {
			unlocks[k] = v
		}
		t.TierUnlocks = unlocks
	}
	return t
}

func cloneActivities(in []ActivityItem) []ActivityItem {
	if in == nil {
		return nil
	}
	out := make([]ActivityItem, len(in))
	for i, a := range in {
		if a.Metadata != nil {
			md := make(map[string]any, len(a.Metadata))
			for k, v := range a.Metadata {
				md[k] = v
			}
			a.Metadata = md
		}
		out[i] = a
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
