package engagement_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
	"github.com/myeasy-ai/fitquest/internal/domain"
)

// memStore is an in-memory domain.StateStore.
type memStore struct {
	mu      sync.Mutex
	states  map[string]domain.GamificationState
	saves   int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]domain.GamificationState)}
}

func (m *memStore) Load(_ context.Context, userID string) (domain.GamificationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.GamificationState{}, m.loadErr
	}
	s, ok := m.states[userID]
	if !ok {
		return domain.GamificationState{}, domain.ErrStateNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) Save(_ context.Context, userID string, s domain.GamificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = s.Clone()
	m.saves++
	return nil
}

func (m *memStore) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) stored(userID string) domain.GamificationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T, store *memStore, days int, start time.Time) (*engagement.Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: start}
	svc := engagement.NewService("u1", store, engagement.Config{
		Location:           time.UTC,
		WeeklyTrainingDays: days,
		SaveDebounce:       time.Hour,
		Clock:              clock.Now,
	})
	require.NoError(t, svc.Load(context.Background()))
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc, clock
}

func hourPtr(h int) *int { return &h }

// ═══════════════════════════════════════════════════════════════════════════
// Workout Scenarios
// ═══════════════════════════════════════════════════════════════════════════

func TestService_WorkoutScenarios(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, clock := newTestService(t, store, 3, friday)

	// New user, first workout on 2024-03-01
	out, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.True(t, out.StreakAdvanced)
	assert.Equal(t, domain.StreakData{
		CurrentStreak: 1, LongestStreak: 1, LastActivityDate: "2024-03-01", TotalActiveDays: 1,
	}, out.Streak)
	// workout + first workout bonus + daily_workout challenge + first_workout badge
	assert.Equal(t, 50+100+25+100, out.XPGained)
	assert.Equal(t, []string{"first_workout"}, out.BadgesUnlocked)
	assert.Equal(t, []string{"daily_workout_2024-03-01"}, out.ChallengesCompleted)
	assert.True(t, out.Saved)

	snap := svc.Snapshot()
	assert.Equal(t, 1, snap.TotalWorkoutsCompleted)
	assert.Equal(t, 1, store.stored("u1").TotalWorkoutsCompleted, "record operations save immediately")

	// Same day again: streak unchanged, no first-workout bonus
	out, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.False(t, out.StreakAdvanced)
	assert.Equal(t, snap.Streak, out.Streak)
	assert.Equal(t, engagement.RewardWorkoutCompleted, out.XPGained)
	assert.Equal(t, 2, svc.Snapshot().TotalWorkoutsCompleted)

	// Two days later: streak resets, longest is kept
	clock.Set(time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC))
	out, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Streak.CurrentStreak)
	assert.Equal(t, 1, out.Streak.LongestStreak)
	assert.Equal(t, 2, out.Streak.TotalActiveDays)
	assert.Equal(t, "2024-03-03", out.Streak.LastActivityDate)
}

func TestService_WorkoutCounters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{Hour: hourPtr(6), Modality: " Yoga "})
	require.NoError(t, err)
	_, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{Hour: hourPtr(22), Modality: "yoga"})
	require.NoError(t, err)
	_, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{Hour: hourPtr(12), Modality: "Running"})
	require.NoError(t, err)

	s := svc.Snapshot()
	assert.Equal(t, 1, s.EarlyWorkouts)
	assert.Equal(t, 1, s.NightWorkouts)
	assert.Equal(t, []string{"yoga", "running"}, s.WorkoutModalities)

	_, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{Hour: hourPtr(24)})
	assert.ErrorIs(t, err, domain.ErrInvalidHour)
}

func TestService_StreakMilestone(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed := domain.DefaultState()
	seed.Streak = domain.StreakData{CurrentStreak: 6, LongestStreak: 6, LastActivityDate: "2024-02-29", TotalActiveDays: 6}
	seed.TotalWorkoutsCompleted = 6
	// Early in level 6 so none of the grants below is relabelled as a level-up
	seed.XP = engagement.LevelOf(1318).XPData()
	seed.UniqueBadges = []domain.UniqueBadge{{BadgeID: "first_workout", Notified: true}}
	store.states["u1"] = seed

	svc, _ := newTestService(t, store, 3, friday)
	out, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)

	assert.Equal(t, 7, out.Streak.CurrentStreak)
	require.Len(t, out.TrophyUnlocks, 1)
	assert.Equal(t, "streak_fire", out.TrophyUnlocks[0].TrophyID)
	assert.Contains(t, out.BadgesUnlocked, "seven_days")
	assert.Contains(t, out.BadgesUnlocked, "beat_record", "the run overtakes the previous record of 6")
	assert.Contains(t, out.GoalsCompleted, "streak_goal_7")

	var milestone bool
	for _, a := range svc.Activities(0) {
		if a.Type == domain.ActivityStreakMilestone {
			milestone = true
			assert.Equal(t, engagement.RewardStreak7, a.XPEarned)
		}
	}
	assert.True(t, milestone)
}

// ═══════════════════════════════════════════════════════════════════════════
// Perfect Week / Month
// ═══════════════════════════════════════════════════════════════════════════

func TestService_PerfectWeeks(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, newMemStore(), 1, friday)

	out, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.Contains(t, out.ChallengesCompleted, "weekly_perfect_week_2024-03-01")
	require.NotEmpty(t, out.TrophyUnlocks)
	assert.Equal(t, "consistency_week", out.TrophyUnlocks[0].TrophyID)
	s := svc.Snapshot()
	assert.Equal(t, 1, s.PerfectWeeks)
	assert.Equal(t, 1, s.ConsecutivePerfectWeeks)

	// Following Monday extends the run
	clock.Set(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	_, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	s = svc.Snapshot()
	assert.Equal(t, 2, s.PerfectWeeks)
	assert.Equal(t, 2, s.ConsecutivePerfectWeeks)

	// A week passes with its perfect challenge generated but never completed
	clock.Set(time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, svc.Refresh(ctx))
	clock.Set(time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, svc.Refresh(ctx))
	assert.Zero(t, svc.Snapshot().ConsecutivePerfectWeeks)

	_, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	s = svc.Snapshot()
	assert.Equal(t, 3, s.PerfectWeeks)
	assert.Equal(t, 1, s.ConsecutivePerfectWeeks)
}

func TestService_MonthlyGoalCountsPerfectMonth(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 1, friday)

	var last engagement.Outcome
	for i := 0; i < 4; i++ {
		out, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
		require.NoError(t, err)
		last = out
	}
	assert.Contains(t, last.GoalsCompleted, "monthly_workout_2024-03")
	assert.Equal(t, 1, svc.Snapshot().PerfectMonths)

	var unlocked bool
	for _, u := range last.TrophyUnlocks {
		unlocked = unlocked || u.TrophyID == "consistency_month"
	}
	assert.True(t, unlocked)
}

// ═══════════════════════════════════════════════════════════════════════════
// Diet / Challenge / XP Entry Points
// ═══════════════════════════════════════════════════════════════════════════

func TestService_DietOncePerDay(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	out, err := svc.RecordDietFollowed(ctx)
	require.NoError(t, err)
	assert.Equal(t, engagement.RewardDietFollowed, out.XPGained)
	assert.Equal(t, []string{"daily_diet_2024-03-01"}, out.ChallengesCompleted)

	out, err = svc.RecordDietFollowed(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.XPGained)
	assert.Empty(t, out.ChallengesCompleted)
	assert.Equal(t, 1, svc.Snapshot().DietDaysFollowed)
}

func TestService_CompleteChallengeErrors(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.CompleteDailyChallenge(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)

	_, err = svc.CompleteDailyChallenge(ctx, "weekly_workouts_week_2024-03-01")
	assert.ErrorIs(t, err, domain.ErrChallengeTypeMismatch)

	out, err := svc.CompleteDailyChallenge(ctx, "daily_hydration_2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 15, out.XPGained)

	out, err = svc.CompleteDailyChallenge(ctx, "daily_hydration_2024-03-01")
	require.NoError(t, err, "completing twice is a no-op")
	assert.Zero(t, out.XPGained)

	clock.Set(friday.AddDate(0, 0, 1))
	_, err = svc.CompleteDailyChallenge(ctx, "daily_workout_2024-03-01")
	assert.ErrorIs(t, err, domain.ErrChallengeExpired)
}

func TestService_CompleteWeeklyChallenge(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	out, err := svc.CompleteWeeklyChallenge(ctx, "weekly_consistency_week_2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 75, out.XPGained)

	sum := svc.Challenges()
	assert.Equal(t, 1, sum.CompletedWeekly)
}

func TestService_AddXP(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.AddXP(ctx, 0, "nothing")
	assert.ErrorIs(t, err, domain.ErrInvalidXPAmount)

	out, err := svc.AddXP(ctx, 120, "event bonus")
	require.NoError(t, err)
	assert.Equal(t, 120, out.XPGained)
	assert.Equal(t, []int{2}, out.LevelUps)
	assert.Equal(t, 2, svc.Level().CurrentLevel)

	feed := svc.Activities(1)
	require.Len(t, feed, 1)
	assert.Equal(t, domain.ActivityLevelUp, feed[0].Type)
	assert.Equal(t, "event bonus", feed[0].Metadata["reason"])
}

func TestService_AddXPSaturates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.AddXP(ctx, math.MaxInt, "jackpot")
	require.NoError(t, err)
	out, err := svc.AddXP(ctx, 10, "more")
	require.NoError(t, err)

	assert.Zero(t, out.XPGained)
	assert.Equal(t, math.MaxInt, svc.Snapshot().XP.TotalXP)
	assert.Greater(t, svc.Level().CurrentLevel, 1)
}

func TestService_SetWeeklyTrainingDays(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.SetWeeklyTrainingDays(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrInvalidTrainingDays)

	_, err = svc.SetWeeklyTrainingDays(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, svc.Snapshot().WeeklyTrainingDays)
	assert.Equal(t, 5, svc.Summary().WeeklyTrainingDays)
}

// ═══════════════════════════════════════════════════════════════════════════
// Load / Save
// ═══════════════════════════════════════════════════════════════════════════

func TestService_LoadFailureStartsFromDefaults(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.states["u1"] = domain.GamificationState{
		SchemaVersion:      domain.CurrentSchemaVersion,
		XP:                 domain.XPData{TotalXP: 675},
		Counters:           domain.Counters{TotalWorkoutsCompleted: 5},
		UniqueBadges:       []domain.UniqueBadge{{BadgeID: "first_workout", UnlockedAt: friday, Notified: true}},
		WeeklyTrainingDays: 3,
	}
	store.setLoadErr(errors.New("disk on fire"))
	svc, _ := newTestService(t, store, 3, friday)

	s := svc.Snapshot()
	assert.True(t, svc.Degraded())
	assert.Zero(t, s.XP.TotalXP)
	assert.NotEmpty(t, s.Challenges, "rotations are generated even without stored state")
	assert.False(t, svc.ForceSave(ctx))

	// Changes made while the store is unreachable stay in memory.
	_, err := svc.AddXP(ctx, 10, "")
	require.NoError(t, err)
	assert.False(t, svc.SaveStatus().Pending)
	out, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Zero(t, store.saveCount(), "defaults never overwrite a document that failed to load")

	// The next mutation reads the stored document again before applying.
	store.setLoadErr(nil)
	out, err = svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)
	assert.True(t, out.Saved)
	assert.False(t, svc.Degraded())
	stored := store.stored("u1")
	assert.Equal(t, 6, stored.TotalWorkoutsCompleted)
	assert.Greater(t, stored.XP.TotalXP, 675)
	assert.NotContains(t, out.BadgesUnlocked, "first_workout")
}

func TestService_RefreshKeepsStateWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newTestService(t, store, 3, friday)
	for range 3 {
		_, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
		require.NoError(t, err)
	}

	store.setLoadErr(errors.New("connection reset"))
	err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrStateUnavailable)
	assert.False(t, svc.Degraded())
	assert.Equal(t, 3, svc.Snapshot().TotalWorkoutsCompleted)

	store.setLoadErr(nil)
	out, err := svc.RecordDietFollowed(ctx)
	require.NoError(t, err)
	assert.True(t, out.Saved)
	assert.Equal(t, 3, store.stored("u1").TotalWorkoutsCompleted)
	assert.Equal(t, 1, store.stored("u1").DietDaysFollowed)
}

func TestService_NewUserIsPersisted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newTestService(t, store, 3, friday)

	assert.True(t, svc.SaveStatus().Pending)
	assert.True(t, svc.ForceSave(ctx))
	stored := store.stored("u1")
	assert.Equal(t, domain.CurrentSchemaVersion, stored.SchemaVersion)
	assert.Len(t, stored.Trophies, len(engagement.AllTrophies()))
}

func TestService_LoadMigratesLegacyState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ts := time.Date(2023, 11, 5, 8, 30, 0, 0, time.UTC)
	store.states["u1"] = domain.GamificationState{
		SchemaVersion: 1,
		Badges:        []domain.LegacyBadge{{BadgeID: "streak_7", UnlockedAt: ts}},
	}

	svc, _ := newTestService(t, store, 3, friday)
	fire, ok := svc.Snapshot().Trophy("streak_fire")
	require.True(t, ok)
	assert.Equal(t, domain.TierBronze, fire.CurrentTier)

	require.True(t, svc.ForceSave(ctx))
	assert.Equal(t, domain.CurrentSchemaVersion, store.stored("u1").SchemaVersion)
	assert.Empty(t, svc.Celebrations(), "migrated trophies are not celebrated")
}

func TestService_LoadRaisesTrophiesAfterMigration(t *testing.T) {
	store := newMemStore()
	ts := time.Date(2023, 11, 5, 8, 30, 0, 0, time.UTC)
	store.states["u1"] = domain.GamificationState{
		SchemaVersion: 1,
		Counters:      domain.Counters{TotalWorkoutsCompleted: 30},
		Badges:        []domain.LegacyBadge{{BadgeID: "streak_7", UnlockedAt: ts}},
	}

	svc, _ := newTestService(t, store, 3, friday)
	marathon, ok := svc.Snapshot().Trophy("volume_marathon")
	require.True(t, ok)
	assert.Equal(t, domain.TierBronze, marathon.CurrentTier)
	assert.Equal(t, 30, marathon.Progress)
	assert.True(t, marathon.Notified)
	assert.GreaterOrEqual(t, svc.Snapshot().XP.TotalXP, 150)
	assert.Empty(t, svc.Celebrations(), "tiers reached before migration are not celebrated")
}

func TestService_RefreshReloads(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc, _ := newTestService(t, store, 3, friday)

	_, err := svc.AddXP(ctx, 40, "pending")
	require.NoError(t, err)
	require.NoError(t, svc.Refresh(ctx))
	assert.Equal(t, 40, svc.Snapshot().XP.TotalXP, "pending changes are written before reloading")
	assert.Equal(t, 40, store.stored("u1").XP.TotalXP)
}

func TestService_Celebrations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	_, err := svc.RecordWorkoutCompleted(ctx, engagement.Workout{})
	require.NoError(t, err)

	pending := svc.Celebrations()
	require.Len(t, pending, 1)
	assert.Equal(t, "first_workout", pending[0].ID)

	shown := svc.AcknowledgeCelebrations(ctx)
	assert.Len(t, shown, 1)
	assert.Empty(t, svc.Celebrations())
}

func TestService_ConcurrentEntryPoints(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newMemStore(), 3, friday)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddXP(ctx, 5, "parallel")
			_ = svc.Summary()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, svc.Snapshot().XP.TotalXP)
}
