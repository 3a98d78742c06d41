package engagement

import (
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// legacyTrophyMap maps flat-schema badge ids to a trophy tier.
var legacyTrophyMap = map[string]struct {
	TrophyID string
	Tier     domain.TrophyTier
}{
	"streak_7":   {"streak_fire", domain.TierBronze},
	"streak_30":  {"streak_fire", domain.TierSilver},
	"streak_100": {"streak_fire", domain.TierGold},

	// Old volume thresholds were 10/50/100/500
	"workouts_10":  {"volume_marathon", domain.TierBronze},
	"workouts_50":  {"volume_marathon", domain.TierBronze},
	"workouts_100": {"volume_marathon", domain.TierSilver},
	"workouts_500": {"volume_marathon", domain.TierGold},

	"perfect_week":    {"consistency_week", domain.TierBronze},
	"perfect_week_5":  {"consistency_week", domain.TierSilver},
	"perfect_month":   {"consistency_month", domain.TierBronze},
	"perfect_month_3": {"consistency_month", domain.TierSilver},
}

// legacyUniqueMap maps flat-schema badge ids to unique badge ids. An empty
// target means the badge is recognized but has no successor.
var legacyUniqueMap = map[string]string{
	"first_workout":    "first_workout",
	"profile_complete": "profile_complete",
	"early_bird":       "first_workout",
	"night_owl":        "",
	"comeback":         "comeback",
}

// MigrationReport describes what Migrate did.
type MigrationReport struct {
	FromVersion    int
	ToVersion      int
	MigratedBadges int
}

// Applied reports whether any step ran.
func (r MigrationReport) Applied() bool { return r.FromVersion != r.ToVersion }

type migrationStep struct {
	from  int
	apply func(domain.GamificationState, *MigrationReport) domain.GamificationState
}

// migrations is keyed by the version a step upgrades from.
var migrations = []migrationStep{
	{from: 0, apply: normalizeShape},
	{from: 1, apply: migrateLegacyBadges},
}

// Migrate runs every step above the state's schema version and stamps
// CurrentSchemaVersion. It does not read the clock, so the same input always
// yields the same output, and an already current state is returned as is.
func Migrate(s domain.GamificationState) (domain.GamificationState, MigrationReport) {
	report := MigrationReport{FromVersion: s.SchemaVersion, ToVersion: s.SchemaVersion}
	if s.SchemaVersion >= domain.CurrentSchemaVersion {
		return s, report
	}

	s = s.Clone()
	for _, step := range migrations {
		if s.SchemaVersion > step.from {
			continue
		}
		s = step.apply(s, &report)
		s.SchemaVersion = step.from + 1
	}
	report.ToVersion = s.SchemaVersion
	return s, report
}

// normalizeShape replaces absent lists with empty ones and rederives the
// level fields from total XP.
func normalizeShape(s domain.GamificationState, _ *MigrationReport) domain.GamificationState {
	if s.Badges == nil {
		s.Badges = []domain.LegacyBadge{}
	}
	if s.UniqueBadges == nil {
		s.UniqueBadges = []domain.UniqueBadge{}
	}
	if s.Challenges == nil {
		s.Challenges = []domain.Challenge{}
	}
	if s.Goals == nil {
		s.Goals = []domain.Goal{}
	}
	if s.Activities == nil {
		s.Activities = []domain.ActivityItem{}
	}
	if s.WorkoutModalities == nil {
		s.WorkoutModalities = []string{}
	}
	s.XP = LevelOf(s.XP.TotalXP).XPData()
	return s
}

// NeedsLegacyMigration is true when legacy badges exist, no trophy has been
// stored yet, and at least one legacy id is recognized.
func NeedsLegacyMigration(s domain.GamificationState) bool {
	if len(s.Badges) == 0 || len(s.Trophies) > 0 {
		return false
	}
	for _, b := range s.Badges {
		if _, ok := legacyTrophyMap[b.BadgeID]; ok {
			return true
		}
		if _, ok := legacyUniqueMap[b.BadgeID]; ok {
			return true
		}
	}
	return false
}

// migrateLegacyBadges converts flat badges into trophy tiers and unique
// badges. Unknown ids are skipped.
func migrateLegacyBadges(s domain.GamificationState, report *MigrationReport) domain.GamificationState {
	if !NeedsLegacyMigration(s) {
		return s
	}

	catalog := AllTrophies()
	byID := make(map[string]*domain.UserTrophy, len(catalog))
	trophies := make([]domain.UserTrophy, len(catalog))
	for i, def := range catalog {
		trophies[i] = domain.UserTrophy{
			TrophyID:    def.ID,
			CurrentTier: domain.TierNone,
			TierUnlocks: map[domain.TrophyTier]time.Time{},
			Notified:    true,
		}
		byID[def.ID] = &trophies[i]
	}

	unique := s.UniqueBadges
	uniqueIdx := make(map[string]int, len(unique))
	for i, b := range unique {
		uniqueIdx[b.BadgeID] = i
	}

	for _, old := range s.Badges {
		if m, ok := legacyTrophyMap[old.BadgeID]; ok {
			t := byID[m.TrophyID]
			if m.Tier.Ordinal() > t.CurrentTier.Ordinal() {
				t.CurrentTier = m.Tier
			}
			for _, tier := range domain.UnlockableTiers[:m.Tier.Ordinal()] {
				if _, set := t.TierUnlocks[tier]; !set {
					t.TierUnlocks[tier] = old.UnlockedAt
				}
			}
			report.MigratedBadges++
		}

		newID, ok := legacyUniqueMap[old.BadgeID]
		if !ok || newID == "" {
			continue
		}
		if i, dup := uniqueIdx[newID]; dup {
			// Keep the earliest unlock when two legacy ids collapse into one
			if old.UnlockedAt.Before(unique[i].UnlockedAt) {
				unique[i].UnlockedAt = old.UnlockedAt
			}
			continue
		}
		uniqueIdx[newID] = len(unique)
		unique = append(unique, domain.UniqueBadge{BadgeID: newID, UnlockedAt: old.UnlockedAt, Notified: true})
		report.MigratedBadges++
	}

	// Seed progress from live counters for every trophy the legacy schema covered
	seeded := make(map[string]bool)
	for _, m := range legacyTrophyMap {
		seeded[m.TrophyID] = true
	}
	for _, def := range catalog {
		if seeded[def.ID] {
			byID[def.ID].Progress = MetricValue(s, def.Metric)
		}
	}

	s.Trophies = trophies
	s.UniqueBadges = unique
	return s
}
