package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// Compile-time check.
var _ domain.StateStore = (*DB)(nil)

// profileRow is one gamification_profiles record.
type profileRow struct {
	UserID        string `db:"user_id"`
	SchemaVersion int    `db:"schema_version"`

	CurrentStreak    int            `db:"current_streak"`
	LongestStreak    int            `db:"longest_streak"`
	LastActivityDate sql.NullString `db:"last_activity_date"`
	TotalActiveDays  int            `db:"total_active_days"`

	TotalXP      int64 `db:"total_xp"`
	CurrentLevel int   `db:"current_level"`

	TotalWorkouts           int            `db:"total_workouts"`
	EarlyWorkouts           int            `db:"early_workouts"`
	NightWorkouts           int            `db:"night_workouts"`
	DietDaysFollowed        int            `db:"diet_days_followed"`
	PerfectWeeks            int            `db:"perfect_weeks"`
	PerfectMonths           int            `db:"perfect_months"`
	ConsecutivePerfectWeeks int            `db:"consecutive_perfect_weeks"`
	WeeklyTrainingDays      int            `db:"weekly_training_days"`
	LastDietDate            sql.NullString `db:"last_diet_date"`

	WorkoutModalities sql.NullString `db:"workout_modalities"`
	Badges            sql.NullString `db:"badges"`
	Trophies          sql.NullString `db:"trophies"`
	UniqueBadges      sql.NullString `db:"unique_badges"`
	Challenges        sql.NullString `db:"challenges"`
	Goals             sql.NullString `db:"goals"`
	Activities        sql.NullString `db:"activities"`

	UpdatedAt int64 `db:"updated_at"` // unix milliseconds
}

const upsertProfile = `
	INSERT INTO gamification_profiles (
		user_id, schema_version,
		current_streak, longest_streak, last_activity_date, total_active_days,
		total_xp, current_level,
		total_workouts, early_workouts, night_workouts, diet_days_followed,
		perfect_weeks, perfect_months, consecutive_perfect_weeks,
		weekly_training_days, last_diet_date,
		workout_modalities, badges, trophies, unique_badges, challenges, goals, activities,
		updated_at
	) VALUES (
		:user_id, :schema_version,
		:current_streak, :longest_streak, :last_activity_date, :total_active_days,
		:total_xp, :current_level,
		:total_workouts, :early_workouts, :night_workouts, :diet_days_followed,
		:perfect_weeks, :perfect_months, :consecutive_perfect_weeks,
		:weekly_training_days, :last_diet_date,
		:workout_modalities, :badges, :trophies, :unique_badges, :challenges, :goals, :activities,
		:updated_at
	)
	ON CONFLICT (user_id) DO UPDATE SET
		schema_version            = excluded.schema_version,
		current_streak            = excluded.current_streak,
		longest_streak            = excluded.longest_streak,
		last_activity_date        = excluded.last_activity_date,
		total_active_days         = excluded.total_active_days,
		total_xp                  = excluded.total_xp,
		current_level             = excluded.current_level,
		total_workouts            = excluded.total_workouts,
		early_workouts            = excluded.early_workouts,
		night_workouts            = excluded.night_workouts,
		diet_days_followed        = excluded.diet_days_followed,
		perfect_weeks             = excluded.perfect_weeks,
		perfect_months            = excluded.perfect_months,
		consecutive_perfect_weeks = excluded.consecutive_perfect_weeks,
		weekly_training_days      = excluded.weekly_training_days,
		last_diet_date            = excluded.last_diet_date,
		workout_modalities        = excluded.workout_modalities,
		badges                    = excluded.badges,
		trophies                  = excluded.trophies,
		unique_badges             = excluded.unique_badges,
		challenges                = excluded.challenges,
		goals                     = excluded.goals,
		activities                = excluded.activities,
		updated_at                = excluded.updated_at`

// ─── State Store ────────────────────────────────────────────────────────────

// Load reads a user's state. Unknown users return domain.ErrStateNotFound.
// List fields that fail to decode come back empty rather than failing the
// whole load.
func (d *DB) Load(ctx context.Context, userID string) (domain.GamificationState, error) {
	var row profileRow
	err := d.db.GetContext(ctx, &row,
		d.db.Rebind(`SELECT * FROM gamification_profiles WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GamificationState{}, domain.ErrStateNotFound
	}
	if err != nil {
		return domain.GamificationState{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return d.rowToState(row), nil
}

// Save replaces the whole stored document for userID.
func (d *DB) Save(ctx context.Context, userID string, s domain.GamificationState) error {
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	row, err := stateToRow(userID, s)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", userID, err)
	}
	if _, err := d.db.NamedExecContext(ctx, upsertProfile, row); err != nil {
		return fmt.Errorf("save profile %s: %w", userID, err)
	}
	return nil
}

// Delete removes a user's stored state.
func (d *DB) Delete(ctx context.Context, userID string) error {
	result, err := d.db.ExecContext(ctx,
		d.db.Rebind(`DELETE FROM gamification_profiles WHERE user_id = ?`), userID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrStateNotFound
	}
	return nil
}

// UserIDs lists stored users, most recently updated first.
func (d *DB) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM gamification_profiles ORDER BY updated_at DESC`)
	return ids, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (d *DB) rowToState(r profileRow) domain.GamificationState {
	s := domain.GamificationState{
		SchemaVersion: r.SchemaVersion,
		Streak: domain.StreakData{
			CurrentStreak:    r.CurrentStreak,
			LongestStreak:    r.LongestStreak,
			LastActivityDate: r.LastActivityDate.String,
			TotalActiveDays:  r.TotalActiveDays,
		},
		XP: domain.XPData{
			TotalXP:      int(r.TotalXP),
			CurrentLevel: r.CurrentLevel,
		},
		LastDietDate:       r.LastDietDate.String,
		WeeklyTrainingDays: r.WeeklyTrainingDays,
	}
	s.TotalWorkoutsCompleted = r.TotalWorkouts
	s.EarlyWorkouts = r.EarlyWorkouts
	s.NightWorkouts = r.NightWorkouts
	s.DietDaysFollowed = r.DietDaysFollowed
	s.PerfectWeeks = r.PerfectWeeks
	s.PerfectMonths = r.PerfectMonths
	s.ConsecutivePerfectWeeks = r.ConsecutivePerfectWeeks
	if r.UpdatedAt > 0 {
		s.LastUpdated = time.UnixMilli(r.UpdatedAt)
	}

	log := d.log.With("user_id", r.UserID)
	s.WorkoutModalities = decodeBlob[string](r.WorkoutModalities, "workout_modalities", log)
	s.Badges = decodeBlob[domain.LegacyBadge](r.Badges, "badges", log)
	s.Trophies = decodeBlob[domain.UserTrophy](r.Trophies, "trophies", log)
	s.UniqueBadges = decodeBlob[domain.UniqueBadge](r.UniqueBadges, "unique_badges", log)
	s.Challenges = decodeBlob[domain.Challenge](r.Challenges, "challenges", log)
	s.Goals = decodeBlob[domain.Goal](r.Goals, "goals", log)
	s.Activities = decodeBlob[domain.ActivityItem](r.Activities, "activities", log)
	return s
}

func stateToRow(userID string, s domain.GamificationState) (profileRow, error) {
	r := profileRow{
		UserID:                  userID,
		SchemaVersion:           s.SchemaVersion,
		CurrentStreak:           s.Streak.CurrentStreak,
		LongestStreak:           s.Streak.LongestStreak,
		LastActivityDate:        nullableString(s.Streak.LastActivityDate),
		TotalActiveDays:         s.Streak.TotalActiveDays,
		TotalXP:                 int64(s.XP.TotalXP),
		CurrentLevel:            s.XP.CurrentLevel,
		TotalWorkouts:           s.TotalWorkoutsCompleted,
		EarlyWorkouts:           s.EarlyWorkouts,
		NightWorkouts:           s.NightWorkouts,
		DietDaysFollowed:        s.DietDaysFollowed,
		PerfectWeeks:            s.PerfectWeeks,
		PerfectMonths:           s.PerfectMonths,
		ConsecutivePerfectWeeks: s.ConsecutivePerfectWeeks,
		WeeklyTrainingDays:      s.WeeklyTrainingDays,
		LastDietDate:            nullableString(s.LastDietDate),
		UpdatedAt:               updatedAt(s.LastUpdated),
	}

	var err error
	blobs := []struct {
		dst    *sql.NullString
		encode func() (sql.NullString, error)
	}{
		{&r.WorkoutModalities, func() (sql.NullString, error) { return encodeBlob(s.WorkoutModalities) }},
		{&r.Badges, func() (sql.NullString, error) { return encodeBlob(s.Badges) }},
		{&r.Trophies, func() (sql.NullString, error) { return encodeBlob(s.Trophies) }},
		{&r.UniqueBadges, func() (sql.NullString, error) { return encodeBlob(s.UniqueBadges) }},
		{&r.Challenges, func() (sql.NullString, error) { return encodeBlob(s.Challenges) }},
		{&r.Goals, func() (sql.NullString, error) { return encodeBlob(s.Goals) }},
		{&r.Activities, func() (sql.NullString, error) { return encodeBlob(s.Activities) }},
	}
	for _, b := range blobs {
		if *b.dst, err = b.encode(); err != nil {
			return profileRow{}, err
		}
	}
	return r, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func updatedAt(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}
