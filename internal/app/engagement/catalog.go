package engagement

import (
	"fmt"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// ─── Trophy Catalog ─────────────────────────────────────────────────────────

// Metric names the counter a trophy is measured against.
type Metric string

const (
	MetricStreakDays        Metric = "streak_days"
	MetricTotalWorkouts     Metric = "total_workouts"
	MetricPerfectWeeks      Metric = "perfect_weeks"
	MetricPerfectMonths     Metric = "perfect_months"
	MetricWorkoutModalities Metric = "workout_modalities"
	MetricEarlyWorkouts     Metric = "early_workouts"
	MetricNightWorkouts     Metric = "night_workouts"
	MetricDietDays          Metric = "diet_days"
)

// TrophyCategory groups trophies by theme.
type TrophyCategory string

const (
	TrophyStreak      TrophyCategory = "streak"
	TrophyVolume      TrophyCategory = "volume"
	TrophyConsistency TrophyCategory = "consistency"
	TrophyVariety     TrophyCategory = "variety"
)

// TierRequirement is one step of a trophy.
type TierRequirement struct {
	Tier        domain.TrophyTier `json:"tier"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Requirement int               `json:"requirement"`
	XPReward    int               `json:"xpReward"`
}

// TrophyDef is a catalog trophy with bronze, silver and gold steps.
type TrophyDef struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Category TrophyCategory     `json:"category"`
	Metric   Metric             `json:"metric"`
	Tiers    [3]TierRequirement `json:"tiers"`
}

func tiers(b, s, g TierRequirement) [3]TierRequirement {
	b.Tier, s.Tier, g.Tier = domain.TierBronze, domain.TierSilver, domain.TierGold
	return [3]TierRequirement{b, s, g}
}

// AllTrophies returns the trophy catalog in display order.
func AllTrophies() []TrophyDef {
	return []TrophyDef{
		{
			ID: "streak_fire", Name: "Steady Energy", Category: TrophyStreak, Metric: MetricStreakDays,
			Tiers: tiers(
				TierRequirement{Name: "Steady Energy I", Description: "7 consecutive training days", Requirement: 7, XPReward: 100},
				TierRequirement{Name: "Steady Energy II", Description: "30 consecutive training days", Requirement: 30, XPReward: 300},
				TierRequirement{Name: "Steady Energy III", Description: "100 consecutive training days", Requirement: 100, XPReward: 1000},
			),
		},
		{
			ID: "volume_marathon", Name: "Marathoner", Category: TrophyVolume, Metric: MetricTotalWorkouts,
			Tiers: tiers(
				TierRequirement{Name: "Marathoner Bronze", Description: "Complete 25 workouts", Requirement: 25, XPReward: 150},
				TierRequirement{Name: "Marathoner Silver", Description: "Complete 100 workouts", Requirement: 100, XPReward: 500},
				TierRequirement{Name: "Marathoner Gold", Description: "Complete 500 workouts", Requirement: 500, XPReward: 2000},
			),
		},
		{
			ID: "consistency_week", Name: "Perfect Week", Category: TrophyConsistency, Metric: MetricPerfectWeeks,
			Tiers: tiers(
				TierRequirement{Name: "Perfect Week I", Description: "1 perfect week", Requirement: 1, XPReward: 100},
				TierRequirement{Name: "Perfect Week II", Description: "5 perfect weeks", Requirement: 5, XPReward: 250},
				TierRequirement{Name: "Perfect Week III", Description: "20 perfect weeks", Requirement: 20, XPReward: 750},
			),
		},
		{
			ID: "consistency_month", Name: "Iron Month", Category: TrophyConsistency, Metric: MetricPerfectMonths,
			Tiers: tiers(
				TierRequirement{Name: "Iron Month I", Description: "1 perfect month", Requirement: 1, XPReward: 200},
				TierRequirement{Name: "Iron Month II", Description: "3 perfect months", Requirement: 3, XPReward: 500},
				TierRequirement{Name: "Iron Month III", Description: "12 perfect months", Requirement: 12, XPReward: 1500},
			),
		},
		{
			ID: "variety_explorer", Name: "Explorer", Category: TrophyVariety, Metric: MetricWorkoutModalities,
			Tiers: tiers(
				TierRequirement{Name: "Explorer Bronze", Description: "Train 3 different modalities", Requirement: 3, XPReward: 100},
				TierRequirement{Name: "Explorer Silver", Description: "Train 5 different modalities", Requirement: 5, XPReward: 250},
				TierRequirement{Name: "Explorer Gold", Description: "Train 8 different modalities", Requirement: 8, XPReward: 500},
			),
		},
		{
			ID: "variety_early", Name: "Early Riser", Category: TrophyVariety, Metric: MetricEarlyWorkouts,
			Tiers: tiers(
				TierRequirement{Name: "Early Riser Bronze", Description: "5 workouts before 7am", Requirement: 5, XPReward: 75},
				TierRequirement{Name: "Early Riser Silver", Description: "20 workouts before 7am", Requirement: 20, XPReward: 200},
				TierRequirement{Name: "Early Riser Gold", Description: "50 workouts before 7am", Requirement: 50, XPReward: 500},
			),
		},
		{
			ID: "variety_night", Name: "Night Owl", Category: TrophyVariety, Metric: MetricNightWorkouts,
			Tiers: tiers(
				TierRequirement{Name: "Night Owl Bronze", Description: "5 workouts after 9pm", Requirement: 5, XPReward: 75},
				TierRequirement{Name: "Night Owl Silver", Description: "20 workouts after 9pm", Requirement: 20, XPReward: 200},
				TierRequirement{Name: "Night Owl Gold", Description: "50 workouts after 9pm", Requirement: 50, XPReward: 500},
			),
		},
		{
			ID: "variety_diet", Name: "Diet on Track", Category: TrophyVariety, Metric: MetricDietDays,
			Tiers: tiers(
				TierRequirement{Name: "Diet on Track I", Description: "7 days following the diet", Requirement: 7, XPReward: 100},
				TierRequirement{Name: "Diet on Track II", Description: "30 days following the diet", Requirement: 30, XPReward: 300},
				TierRequirement{Name: "Diet on Track III", Description: "90 days following the diet", Requirement: 90, XPReward: 750},
			),
		},
	}
}

// trophyByID returns the catalog trophy with the given id.
func trophyByID(id string) (TrophyDef, bool) {
	for _, def := range AllTrophies() {
		if def.ID == id {
			return def, true
		}
	}
	return TrophyDef{}, false
}

// MetricValue reads the counter behind a trophy metric.
func MetricValue(s domain.GamificationState, m Metric) int {
	switch m {
	case MetricStreakDays:
		return s.Streak.CurrentStreak
	case MetricTotalWorkouts:
		return s.TotalWorkoutsCompleted
	case MetricPerfectWeeks:
		return s.PerfectWeeks
	case MetricPerfectMonths:
		return s.PerfectMonths
	case MetricWorkoutModalities:
		return len(s.WorkoutModalities)
	case MetricEarlyWorkouts:
		return s.EarlyWorkouts
	case MetricNightWorkouts:
		return s.NightWorkouts
	case MetricDietDays:
		return s.DietDaysFollowed
	default:
		return 0
	}
}

// ─── Unique Badge Catalog ───────────────────────────────────────────────────

// BadgeCategory groups unique badges. Hidden badges are masked until unlocked.
type BadgeCategory string

const (
	BadgeMilestone BadgeCategory = "milestone"
	BadgeSpecial   BadgeCategory = "special"
	BadgeHidden    BadgeCategory = "hidden"
)

// BadgeRarity is a display hint.
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// BadgeContext is what badge predicates are evaluated against.
type BadgeContext struct {
	State domain.GamificationState
	// PriorLongestStreak is the record held before the current transaction.
	PriorLongestStreak int
}

// BadgeDef is a one-shot badge with its eligibility predicate.
type BadgeDef struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Category    BadgeCategory           `json:"category"`
	Rarity      BadgeRarity             `json:"rarity"`
	XPReward    int                     `json:"xpReward"`
	Hint        string                  `json:"hint,omitempty"`
	Eligible    func(BadgeContext) bool `json:"-"`
}

func never(BadgeContext) bool { return false }

// AllUniqueBadges returns the unique badge catalog.
func AllUniqueBadges() []BadgeDef {
	return []BadgeDef{
		// Milestones
		{
			ID: "first_workout", Name: "First Step", Description: "Complete your first workout",
			Category: BadgeMilestone, Rarity: RarityCommon, XPReward: 100,
			Eligible: func(c BadgeContext) bool { return c.State.TotalWorkoutsCompleted >= 1 },
		},
		{
			ID: "profile_complete", Name: "Complete Profile", Description: "Fill in every profile field",
			Category: BadgeMilestone, Rarity: RarityCommon, XPReward: 50,
			Eligible: never,
		},
		{
			ID: "legendary_streak", Name: "Legendary", Description: "365 consecutive training days",
			Category: BadgeMilestone, Rarity: RarityLegendary, XPReward: 5000,
			Eligible: func(c BadgeContext) bool { return c.State.Streak.CurrentStreak >= 365 },
		},
		{
			ID: "supreme_master", Name: "Supreme Master", Description: "Reach gold on every trophy",
			Category: BadgeMilestone, Rarity: RarityLegendary, XPReward: 10000,
			Eligible: func(c BadgeContext) bool { return allTrophiesGold(c.State) },
		},

		// Special
		{
			ID: "comeback", Name: "Triumphant Return", Description: "Train again after 30 days away",
			Category: BadgeSpecial, Rarity: RarityRare, XPReward: 150,
			Eligible: never,
		},
		{
			ID: "beat_record", Name: "Personal Best", Description: "Beat your longest streak",
			Category: BadgeSpecial, Rarity: RarityRare, XPReward: 100,
			Eligible: func(c BadgeContext) bool {
				// A first streak has no record to beat.
				cur := c.State.Streak.CurrentStreak
				return c.PriorLongestStreak > 0 && cur > 0 && cur > c.PriorLongestStreak
			},
		},
		{
			ID: "anniversary", Name: "Fitness Anniversary", Description: "One year with the app",
			Category: BadgeSpecial, Rarity: RarityEpic, XPReward: 1000,
			Eligible: never,
		},

		// Hidden
		{
			ID: "seven_days", Name: "7 of 7", Description: "Train every day of a week",
			Category: BadgeHidden, Rarity: RarityRare, XPReward: 200,
			Hint:     "Train every single day of one week...",
			Eligible: func(c BadgeContext) bool { return c.State.Streak.CurrentStreak >= 7 },
		},
		{
			ID: "combo_perfect", Name: "Perfect Combo", Description: "3 perfect weeks in a row",
			Category: BadgeHidden, Rarity: RarityEpic, XPReward: 500,
			Hint:     "Keep it perfect for several weeks...",
			Eligible: func(c BadgeContext) bool { return c.State.ConsecutivePerfectWeeks >= 3 },
		},
	}
}

// UniqueBadgeIDs returns the ids of every catalog badge.
func UniqueBadgeIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, b := range AllUniqueBadges() {
		ids[b.ID] = true
	}
	return ids
}

// allTrophiesGold requires the full catalog to be present in state so a
// partially initialized trophy list never qualifies.
func allTrophiesGold(s domain.GamificationState) bool {
	catalog := AllTrophies()
	if len(s.Trophies) < len(catalog) {
		return false
	}
	for _, def := range catalog {
		t, ok := s.Trophy(def.ID)
		if !ok || t.CurrentTier != domain.TierGold {
			return false
		}
	}
	return true
}

// ─── Challenge Templates ────────────────────────────────────────────────────

// ChallengeTemplate generates one challenge per rotation window.
type ChallengeTemplate struct {
	ID          string
	Type        domain.ChallengeType
	Title       string
	Description string // %d is replaced by the target
	XPReward    int
	Target      func(weeklyDays int) int
}

func fixed(n int) func(int) int { return func(int) int { return n } }

// DailyTemplates returns the daily rotation.
func DailyTemplates() []ChallengeTemplate {
	return []ChallengeTemplate{
		{ID: "daily_workout", Type: domain.ChallengeDaily, Title: "Daily workout", Description: "Complete %d workout today", XPReward: RewardChallengeDaily, Target: fixed(1)},
		{ID: "daily_hydration", Type: domain.ChallengeDaily, Title: "Stay hydrated", Description: "Drink water %d time with intent", XPReward: 15, Target: fixed(1)},
		{ID: "daily_diet", Type: domain.ChallengeDaily, Title: "Follow the diet", Description: "Follow your meal plan %d day", XPReward: RewardDietFollowed, Target: fixed(1)},
	}
}

// WeeklyTemplates returns the weekly rotation.
func WeeklyTemplates() []ChallengeTemplate {
	return []ChallengeTemplate{
		{
			ID: "weekly_workouts", Type: domain.ChallengeWeekly, Title: "Weekly workouts",
			Description: "Complete %d workouts this week", XPReward: RewardChallengeWeekly,
			Target: func(days int) int { return max(days, 2) },
		},
		{
			ID: "weekly_consistency", Type: domain.ChallengeWeekly, Title: "Consistency",
			Description: "Train on %d different days", XPReward: 75, Target: fixed(3),
		},
		{
			ID: "weekly_perfect", Type: domain.ChallengeWeekly, Title: "Perfect week",
			Description: "Hit all %d planned training days", XPReward: 150,
			Target: func(days int) int { return days },
		},
	}
}

// ─── Goal Templates ─────────────────────────────────────────────────────────

// GoalTemplate describes an auto-generated goal.
type GoalTemplate struct {
	Prefix      string
	Title       string
	Description string // %d is replaced by the target
	Category    domain.GoalCategory
	Unit        string
}

var (
	weeklyWorkoutGoal = GoalTemplate{
		Prefix: "weekly_workout_", Title: "Weekly goal", Description: "Complete %d workouts this week",
		Category: domain.GoalWorkout, Unit: "workouts",
	}
	monthlyWorkoutGoal = GoalTemplate{
		Prefix: "monthly_workout_", Title: "Monthly goal", Description: "Complete %d workouts this month",
		Category: domain.GoalWorkout, Unit: "workouts",
	}
	streakGoal = GoalTemplate{
		Prefix: "streak_goal_", Title: "Streak goal", Description: "Reach a %d day streak",
		Category: domain.GoalConsistency, Unit: "days",
	}
)

// StreakGoalMilestones are the targets of the rolling streak goal.
var StreakGoalMilestones = []int{7, 14, 30, 60, 100, 200, 365}

// ─── Validation ─────────────────────────────────────────────────────────────

// ValidateCatalog checks every template and threshold for every supported
// weekly training day count. It runs once at startup.
func ValidateCatalog() error {
	for _, def := range AllTrophies() {
		prev := 0
		for _, tr := range def.Tiers {
			if tr.Requirement <= prev {
				return fmt.Errorf("%w: trophy %s tier %s requirement %d not ascending",
					domain.ErrInvalidCatalog, def.ID, tr.Tier, tr.Requirement)
			}
			if tr.XPReward < 0 {
				return fmt.Errorf("%w: trophy %s tier %s has negative reward", domain.ErrInvalidCatalog, def.ID, tr.Tier)
			}
			prev = tr.Requirement
		}
	}

	templates := append(DailyTemplates(), WeeklyTemplates()...)
	for days := 1; days <= 7; days++ {
		for _, tpl := range templates {
			if n := tpl.Target(days); n <= 0 {
				return fmt.Errorf("%w: challenge %s yields target %d for %d training days",
					domain.ErrInvalidCatalog, tpl.ID, n, days)
			}
		}
	}

	seen := make(map[string]bool)
	for _, b := range AllUniqueBadges() {
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate badge %s", domain.ErrInvalidCatalog, b.ID)
		}
		if b.Eligible == nil {
			return fmt.Errorf("%w: badge %s has no predicate", domain.ErrInvalidCatalog, b.ID)
		}
		seen[b.ID] = true
	}

	prev := 0
	for _, m := range StreakGoalMilestones {
		if m <= prev {
			return fmt.Errorf("%w: streak milestones not ascending at %d", domain.ErrInvalidCatalog, m)
		}
		prev = m
	}
	return nil
}
